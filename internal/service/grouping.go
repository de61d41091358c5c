package service

import (
	"fmt"
	"time"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/store/db"
)

// groupByOrder groups lines by order id. Lines must arrive newest first; groups keep
// the order in which their first line was seen, so they are newest first as well.
func groupByOrder(lines []db.OrderLine) []OrderGroupDto {
	index := make(map[int32]int)
	groups := make([]OrderGroupDto, 0)
	for _, line := range lines {
		i, ok := index[line.OrderID]
		if !ok {
			i = len(groups)
			index[line.OrderID] = i
			groups = append(groups, OrderGroupDto{
				OrderID:   line.OrderID,
				CreatedAt: line.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		groups[i].Lines = append(groups[i].Lines, toOrderLineDto(line))
	}
	return groups
}

// groupUnseen groups unseen lines by order id the same way as groupByOrder.
// Status, shop and total amount are taken from the first line of each group.
func groupUnseen(lines []db.OrderLine) []UnseenOrderDto {
	index := make(map[int32]int)
	orders := make([]UnseenOrderDto, 0)
	for _, line := range lines {
		i, ok := index[line.OrderID]
		if !ok {
			i = len(orders)
			index[line.OrderID] = i
			orders = append(orders, UnseenOrderDto{
				OrderID:     line.OrderID,
				Status:      line.Status,
				ShopID:      line.ShopID,
				TotalAmount: line.LineTotal,
				CreatedAt:   line.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		orders[i].Products = append(orders[i].Products, UnseenProductDto{
			LineID:      line.ID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			Status:      line.Status,
		})
	}
	return orders
}

// reportRange returns the closed interval a monthly report covers: midnight UTC of the first day
// up to midnight UTC of day 31. For shorter months day 31 rolls over into the next month.
func reportRange(month, year int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("month %d: %w", month, marketerrors.ErrInvalidMonth)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.Month(month), 31, 0, 0, 0, 0, time.UTC)
	return from, to, nil
}
