package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	BrokerNone  = "none"
	BrokerNATS  = "nats"
	BrokerKafka = "kafka"
)

// EventsConfig selects where order lifecycle events are published.
type EventsConfig struct {
	Broker string      `koanf:"broker"`
	Kafka  KafkaConfig `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers      string        `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	WriteTimeout time.Duration `koanf:"writetimeout"`
}

// BrokerList splits the comma separated broker list.
func (c *KafkaConfig) BrokerList() []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(c.Brokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// String returns a string representation of the events configuration.
func (c *EventsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Events ---\n")
	b.WriteString(fmt.Sprintf("  broker: %s\n", c.Broker))
	if c.Broker == BrokerKafka {
		b.WriteString(fmt.Sprintf("  kafka.brokers: %s\n", c.Kafka.Brokers))
		b.WriteString(fmt.Sprintf("  kafka.topic: %s\n", c.Kafka.Topic))
		b.WriteString(fmt.Sprintf("  kafka.writetimeout: %s\n", c.Kafka.WriteTimeout))
	}
	return b.String()
}

func (c *EventsConfig) Validate() error {
	if c.Broker == "" {
		c.Broker = BrokerNone
	}
	switch c.Broker {
	case BrokerNone, BrokerNATS:
		return nil
	case BrokerKafka:
		if len(c.Kafka.BrokerList()) == 0 {
			return fmt.Errorf("kafka brokers are not configured")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is not configured")
		}
		if c.Kafka.WriteTimeout <= 0 {
			return fmt.Errorf("kafka write timeout must be greater than 0")
		}
		return nil
	default:
		return fmt.Errorf("unsupported events broker: %s", c.Broker)
	}
}
