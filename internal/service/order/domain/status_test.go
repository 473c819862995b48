package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

	allowed := map[Status]map[Status]bool{
		StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
		StatusShipped:   {StatusDelivered: true},
		StatusDelivered: {},
		StatusCancelled: {},
	}

	for _, from := range all {
		for _, to := range all {
			got := from.CanTransitionTo(to)
			assert.Equal(t, allowed[from][to], got, "transition %s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("PAID").Valid())
	assert.False(t, Status("").Valid())
}

func TestOrderTransitionTo(t *testing.T) {
	order, err := NewOrder(1, "u@example.com", []OrderItem{
		{ProductID: 10, ProductName: "widget", Quantity: 2, PriceAtTime: 9.5},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)

	// 跳过 CONFIRMED 直接发货必须被拒绝，且订单保持原状
	err = order.TransitionTo(StatusShipped)
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPending, invalid.From)
	assert.Equal(t, StatusShipped, invalid.To)
	assert.Equal(t, StatusPending, order.Status)

	assert.NoError(t, order.TransitionTo(StatusConfirmed))
	assert.NoError(t, order.TransitionTo(StatusShipped))
	assert.NoError(t, order.TransitionTo(StatusDelivered))

	// 终态没有出边
	err = order.TransitionTo(StatusCancelled)
	assert.ErrorAs(t, err, &invalid)
}

func TestOrderCancellable(t *testing.T) {
	order, _ := NewOrder(1, "u@example.com", []OrderItem{
		{ProductID: 10, ProductName: "widget", Quantity: 1, PriceAtTime: 5},
	})
	assert.True(t, order.Cancellable())

	assert.NoError(t, order.TransitionTo(StatusConfirmed))
	assert.True(t, order.Cancellable())

	assert.NoError(t, order.TransitionTo(StatusShipped))
	assert.False(t, order.Cancellable())
}

func TestNewOrderComputesTotal(t *testing.T) {
	order, err := NewOrder(7, "u@example.com", []OrderItem{
		{ProductID: 1, ProductName: "a", Quantity: 2, PriceAtTime: 10.0},
		{ProductID: 2, ProductName: "b", Quantity: 1, PriceAtTime: 3.5},
	})
	assert.NoError(t, err)
	assert.InDelta(t, 23.5, order.TotalAmount, 1e-9)
}

func TestNewOrderRejectsEmptyAndInvalid(t *testing.T) {
	_, err := NewOrder(7, "u@example.com", nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = NewOrder(7, "u@example.com", []OrderItem{
		{ProductID: 1, Quantity: 0, PriceAtTime: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidOrderItem)
}
