package application

import (
	"context"
	"testing"

	"bazaar/internal/events"
	"bazaar/internal/outbox"
	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/port"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeOrderRepo struct {
	orders map[int64]*domain.Order
	nextID int64

	// stale 模拟被并发事务读到的过期快照：设置后 FindByID 返回它，
	// FindForUpdate 始终返回已提交的最新状态
	stale *domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*domain.Order{}, nextID: 1}
}

func (r *fakeOrderRepo) Save(_ context.Context, order *domain.Order) error {
	if order.ID == 0 {
		order.ID = r.nextID
		r.nextID++
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	if r.stale != nil && r.stale.ID == id {
		cp := *r.stale
		return &cp, nil
	}
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *fakeOrderRepo) FindForUpdate(_ context.Context, id int64) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *fakeOrderRepo) FindByUserID(_ context.Context, userID int64, _ paging.Request) ([]*domain.Order, int64, error) {
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) List(_ context.Context, status domain.Status, _ paging.Request) ([]*domain.Order, int64, error) {
	var out []*domain.Order
	for _, o := range r.orders {
		if status == "" || o.Status == status {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

type fakeCart struct {
	lines   []port.CartLine
	cleared bool
}

func (c *fakeCart) Snapshot(_ context.Context, _ int64) ([]port.CartLine, error) {
	return c.lines, nil
}

func (c *fakeCart) Clear(_ context.Context, _ int64) error {
	c.cleared = true
	return nil
}

type fakeAvailability struct {
	unavailable map[int64]bool
}

func (f *fakeAvailability) CheckAvailability(_ context.Context, lines []port.AvailabilityLine) (bool, error) {
	for _, line := range lines {
		if f.unavailable[line.ProductID] {
			return false, nil
		}
	}
	return true, nil
}

type publishedEvent struct {
	event      outbox.DomainEvent
	exchange   string
	routingKey string
}

type fakePublisher struct {
	published []publishedEvent
}

func (p *fakePublisher) Publish(_ context.Context, event outbox.DomainEvent, exchange, routingKey string) error {
	p.published = append(p.published, publishedEvent{event: event, exchange: exchange, routingKey: routingKey})
	return nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func newOrderService(cart *fakeCart, availability *fakeAvailability) (*OrderApplicationService, *fakeOrderRepo, *fakePublisher) {
	repo := newFakeOrderRepo()
	publisher := &fakePublisher{}
	svc := NewOrderApplicationService(
		repo,
		cart,
		availability,
		publisher,
		passthroughTx{},
		noop.NewTracerProvider().Tracer("test"),
	)
	return svc, repo, publisher
}

func TestCreateOrderFreezesCartAndPublishes(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{
		{ProductID: 1, ProductName: "widget", Quantity: 2, UnitPrice: 10},
		{ProductID: 2, ProductName: "gadget", Quantity: 1, UnitPrice: 5.5},
	}}
	svc, repo, publisher := newOrderService(cart, &fakeAvailability{})

	order, err := svc.CreateOrder(context.Background(), 7, CreateOrderRequest{UserEmail: "u@example.com"})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.InDelta(t, 25.5, order.TotalAmount, 1e-9)
	assert.True(t, cart.cleared)

	saved, err := repo.FindByID(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Len(t, saved.Items, 2)
	assert.Equal(t, 10.0, saved.Items[0].PriceAtTime)

	assert.Len(t, publisher.published, 1)
	assert.Equal(t, events.OrderEventsExchange, publisher.published[0].exchange)
	assert.Equal(t, events.RoutingKeyOrderCreated, publisher.published[0].routingKey)
	created, ok := publisher.published[0].event.(*events.OrderCreatedEvent)
	assert.True(t, ok)
	assert.Equal(t, order.ID, created.Order.ID)
	assert.Equal(t, "PENDING", created.Order.Status)
	assert.Len(t, created.Order.Items, 2)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc, _, publisher := newOrderService(&fakeCart{}, &fakeAvailability{})

	_, err := svc.CreateOrder(context.Background(), 7, CreateOrderRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)
	assert.Empty(t, publisher.published)
}

func TestCreateOrderUnavailableProduct(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{
		{ProductID: 1, Quantity: 2, UnitPrice: 10},
		{ProductID: 2, Quantity: 1, UnitPrice: 5},
	}}
	svc, _, publisher := newOrderService(cart, &fakeAvailability{unavailable: map[int64]bool{2: true}})

	_, err := svc.CreateOrder(context.Background(), 7, CreateOrderRequest{})
	var unavailable *domain.ProductUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, int64(2), unavailable.ProductID)
	assert.Empty(t, publisher.published)
	assert.False(t, cart.cleared)
}

func TestUpdateStatusPublishesOldStatus(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 10}}}
	svc, _, publisher := newOrderService(cart, &fakeAvailability{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, 7, CreateOrderRequest{})
	assert.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, order.ID, domain.StatusConfirmed, "admin")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)

	assert.Len(t, publisher.published, 2)
	changed, ok := publisher.published[1].event.(*events.OrderStatusChangedEvent)
	assert.True(t, ok)
	assert.Equal(t, "PENDING", changed.OldStatus)
	assert.Equal(t, "CONFIRMED", changed.Order.Status)
	assert.Equal(t, events.RoutingKeyOrderStatusChanged, publisher.published[1].routingKey)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 10}}}
	svc, repo, publisher := newOrderService(cart, &fakeAvailability{})
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, 7, CreateOrderRequest{})

	_, err := svc.UpdateStatus(ctx, order.ID, domain.StatusDelivered, "admin")
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)

	// 状态不变，也没有发布变更事件
	saved, _ := repo.FindByID(ctx, order.ID)
	assert.Equal(t, domain.StatusPending, saved.Status)
	assert.Len(t, publisher.published, 1)
}

func TestUpdateStatusConcurrentTransitionsOnlyOneWins(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 10}}}
	svc, repo, publisher := newOrderService(cart, &fakeAvailability{})
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, 7, CreateOrderRequest{})
	_, err := svc.UpdateStatus(ctx, order.ID, domain.StatusConfirmed, "admin")
	assert.NoError(t, err)

	// 两个事务同时从 CONFIRMED 出发（发货 vs 取消）。无锁读下两边都会
	// 通过守卫；行锁让后到的事务读到已提交的 SHIPPED 并被拒绝
	confirmedSnapshot, _ := repo.FindByID(ctx, order.ID)
	repo.stale = confirmedSnapshot

	_, err = svc.UpdateStatus(ctx, order.ID, domain.StatusShipped, "admin")
	assert.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, order.ID, domain.StatusCancelled, "user:7")
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatusShipped, invalid.From)
	assert.Equal(t, domain.StatusCancelled, invalid.To)

	// 只发布了一个状态变更事件，库存侧不会同时收到 SHIPPED 和 CANCELLED
	saved, _ := repo.FindForUpdate(ctx, order.ID)
	assert.Equal(t, domain.StatusShipped, saved.Status)
	assert.Len(t, publisher.published, 3)
	last, ok := publisher.published[2].event.(*events.OrderStatusChangedEvent)
	assert.True(t, ok)
	assert.Equal(t, "SHIPPED", last.Order.Status)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	svc, _, _ := newOrderService(&fakeCart{}, &fakeAvailability{})
	_, err := svc.UpdateStatus(context.Background(), 1, domain.Status("PAID"), "admin")
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)
}

func TestCloseOrderChecksOwnership(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 10}}}
	svc, _, _ := newOrderService(cart, &fakeAvailability{})
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, 7, CreateOrderRequest{})

	_, err := svc.CloseOrder(ctx, 8, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotOrderOwner)

	closed, err := svc.CloseOrder(ctx, 7, order.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, closed.Status)
}

func TestCloseOrderAfterShipmentRejected(t *testing.T) {
	cart := &fakeCart{lines: []port.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 10}}}
	svc, _, _ := newOrderService(cart, &fakeAvailability{})
	ctx := context.Background()

	order, _ := svc.CreateOrder(ctx, 7, CreateOrderRequest{})
	_, err := svc.UpdateStatus(ctx, order.ID, domain.StatusConfirmed, "admin")
	assert.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, order.ID, domain.StatusShipped, "admin")
	assert.NoError(t, err)

	_, err = svc.CloseOrder(ctx, 7, order.ID)
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}
