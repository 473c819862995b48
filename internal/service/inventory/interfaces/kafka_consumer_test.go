package interfaces

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bazaar/internal/events"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

type reservationCall struct {
	op         string
	orderID    int64
	quantities map[int64]int
}

type fakeInventory struct {
	calls []reservationCall
	err   error
}

func (f *fakeInventory) Reserve(_ context.Context, orderID int64, quantities map[int64]int, _ string) error {
	f.calls = append(f.calls, reservationCall{op: "reserve", orderID: orderID, quantities: quantities})
	return f.err
}

func (f *fakeInventory) ConfirmReservation(_ context.Context, orderID int64, _ string) error {
	f.calls = append(f.calls, reservationCall{op: "confirm", orderID: orderID})
	return f.err
}

func (f *fakeInventory) CancelReservation(_ context.Context, orderID int64, _ string) error {
	f.calls = append(f.calls, reservationCall{op: "cancel", orderID: orderID})
	return f.err
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) MarkProcessed(_ context.Context, eventID, _ string) (bool, error) {
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

// fakeTx 在 fn 失败时撤销本次写入的去重标记，模拟事务回滚。
type fakeTx struct {
	dedup *fakeDedup
}

func (t *fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	before := make(map[string]bool, len(t.dedup.seen))
	for k, v := range t.dedup.seen {
		before[k] = v
	}
	if err := fn(ctx); err != nil {
		t.dedup.seen = before
		return err
	}
	return nil
}

func newTestConsumer() (*Consumer, *fakeInventory, *fakeDedup) {
	inventory := &fakeInventory{}
	dedup := &fakeDedup{seen: map[string]bool{}}
	c := &Consumer{
		inventory:   inventory,
		dedup:       dedup,
		tx:          &fakeTx{dedup: dedup},
		maxAttempts: 3,
	}
	return c, inventory, dedup
}

func orderCreatedPayload(t *testing.T, orderID int64, status string, items []events.OrderItemSnapshot) (events.Envelope, []byte) {
	t.Helper()
	event := events.OrderCreatedEvent{
		Envelope: events.NewEnvelope(events.TypeOrderCreated, "1"),
		Order:    events.OrderSnapshot{ID: orderID, Status: status, Items: items},
	}
	payload, err := json.Marshal(event)
	assert.NoError(t, err)
	return event.Envelope, payload
}

func statusChangedPayload(t *testing.T, orderID int64, newStatus, oldStatus string) (events.Envelope, []byte) {
	t.Helper()
	event := events.OrderStatusChangedEvent{
		Envelope:  events.NewEnvelope(events.TypeOrderStatusChanged, "1"),
		Order:     events.OrderSnapshot{ID: orderID, Status: newStatus},
		OldStatus: oldStatus,
	}
	payload, err := json.Marshal(event)
	assert.NoError(t, err)
	return event.Envelope, payload
}

func TestHandleOrderCreatedReserves(t *testing.T) {
	c, inventory, _ := newTestConsumer()
	env, payload := orderCreatedPayload(t, 100, "PENDING", []events.OrderItemSnapshot{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 3}, // 同一商品多行，数量必须合并
	})

	dup, err := c.handle(context.Background(), env, payload)
	assert.NoError(t, err)
	assert.False(t, dup)

	assert.Len(t, inventory.calls, 1)
	assert.Equal(t, "reserve", inventory.calls[0].op)
	assert.Equal(t, int64(100), inventory.calls[0].orderID)
	assert.Equal(t, map[int64]int{1: 5, 2: 1}, inventory.calls[0].quantities)
}

func TestHandleDuplicateEventIsNoOp(t *testing.T) {
	c, inventory, _ := newTestConsumer()
	env, payload := orderCreatedPayload(t, 100, "PENDING", []events.OrderItemSnapshot{
		{ProductID: 1, Quantity: 2},
	})

	dup, err := c.handle(context.Background(), env, payload)
	assert.NoError(t, err)
	assert.False(t, dup)

	// 同一 eventId 第二次到达：标记命中，不触碰库存
	dup, err = c.handle(context.Background(), env, payload)
	assert.NoError(t, err)
	assert.True(t, dup)
	assert.Len(t, inventory.calls, 1)
}

func TestHandleNonPendingOrderCreatedSkips(t *testing.T) {
	c, inventory, _ := newTestConsumer()
	env, payload := orderCreatedPayload(t, 100, "CONFIRMED", []events.OrderItemSnapshot{
		{ProductID: 1, Quantity: 2},
	})

	dup, err := c.handle(context.Background(), env, payload)
	assert.NoError(t, err)
	assert.False(t, dup)
	assert.Empty(t, inventory.calls)
}

func TestHandleStatusChangedDispatch(t *testing.T) {
	cases := []struct {
		newStatus string
		wantOp    string
	}{
		{"CANCELLED", "cancel"},
		{"SHIPPED", "confirm"},
		{"CONFIRMED", ""},
		{"DELIVERED", ""},
	}

	for _, tc := range cases {
		c, inventory, _ := newTestConsumer()
		env, payload := statusChangedPayload(t, 200, tc.newStatus, "PENDING")

		_, err := c.handle(context.Background(), env, payload)
		assert.NoError(t, err, "status %s", tc.newStatus)

		if tc.wantOp == "" {
			assert.Empty(t, inventory.calls, "status %s must not touch inventory", tc.newStatus)
		} else {
			assert.Len(t, inventory.calls, 1)
			assert.Equal(t, tc.wantOp, inventory.calls[0].op)
			assert.Equal(t, int64(200), inventory.calls[0].orderID)
		}
	}
}

func TestHandleUnknownTypeRollsBackDedupMark(t *testing.T) {
	c, _, dedup := newTestConsumer()
	env := events.NewEnvelope("SomethingElseEvent", "1")
	payload, _ := json.Marshal(map[string]string{"eventId": env.EventID, "eventType": env.EventType})

	_, err := c.handle(context.Background(), env, payload)
	assert.ErrorIs(t, err, errUnknownEventType)
	assert.False(t, dedup.seen[env.EventID], "failed dispatch must not leave a dedup mark")
}

func TestHandlePoisonPayload(t *testing.T) {
	c, inventory, _ := newTestConsumer()
	env := events.NewEnvelope(events.TypeOrderCreated, "1")
	payload := []byte(`{"eventId":"` + env.EventID + `","eventType":"OrderCreatedEvent","order":"not-an-object"}`)

	_, err := c.handle(context.Background(), env, payload)
	assert.Error(t, err)
	assert.True(t, isPoisonPayload(err))
	assert.Empty(t, inventory.calls)
}

func TestHandleBusinessErrorPropagates(t *testing.T) {
	c, inventory, dedup := newTestConsumer()
	inventory.err = assert.AnError

	env, payload := orderCreatedPayload(t, 100, "PENDING", []events.OrderItemSnapshot{
		{ProductID: 1, Quantity: 2},
	})

	_, err := c.handle(context.Background(), env, payload)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, dedup.seen[env.EventID])
}

// flakyProducer 先失败 failures 次，之后写入成功。
type flakyProducer struct {
	failures int
	attempts int
	written  []kafka.Message
}

func (p *flakyProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.attempts++
	if p.attempts <= p.failures {
		return assert.AnError
	}
	p.written = append(p.written, msgs...)
	return nil
}

func TestSendToDLQRetriesUntilWritten(t *testing.T) {
	producer := &flakyProducer{failures: 2}
	c, _, _ := newTestConsumer()
	c.dlqWriter = producer
	c.backoff = time.Millisecond

	msg := kafka.Message{Topic: "order.events", Partition: 1, Offset: 42, Key: []byte("100"), Value: []byte("{}")}
	env := events.NewEnvelope(events.TypeOrderCreated, "100")
	c.sendToDLQ(context.Background(), msg, env, assert.AnError)

	assert.Equal(t, 3, producer.attempts)
	assert.Len(t, producer.written, 1)
	assert.Equal(t, []byte("100"), producer.written[0].Key)
}

func TestSendToDLQGivesUpAfterMaxAttempts(t *testing.T) {
	producer := &flakyProducer{failures: 10}
	c, _, _ := newTestConsumer()
	c.dlqWriter = producer
	c.backoff = time.Millisecond

	msg := kafka.Message{Topic: "order.events", Key: []byte("100"), Value: []byte("{}")}
	env := events.NewEnvelope(events.TypeOrderCreated, "100")
	c.sendToDLQ(context.Background(), msg, env, assert.AnError)

	assert.Equal(t, c.maxAttempts, producer.attempts)
	assert.Empty(t, producer.written)
}

func TestPeekEnvelopeRejectsGarbage(t *testing.T) {
	_, err := events.PeekEnvelope([]byte("not json at all"))
	assert.Error(t, err)

	env, err := events.PeekEnvelope([]byte(`{"eventId":"e1","eventType":"OrderCreatedEvent"}`))
	assert.NoError(t, err)
	assert.Equal(t, "e1", env.EventID)
}
