// Package messaging defines order lifecycle events and the publishers that ship them to a broker.
package messaging

import (
	"context"
)

const (
	OrdersPlacedSubject    = "orders.placed"
	OrdersDeclinedSubject  = "orders.declined"
	OrdersDeliveredSubject = "orders.delivered"

	// OrdersSubjects matches every order lifecycle subject.
	OrdersSubjects = "orders.>"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
