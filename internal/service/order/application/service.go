// internal/service/order/application/service.go
package application

import (
	"context"
	"strconv"

	"bazaar/internal/events"
	"bazaar/internal/outbox"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventPublisher 是 outbox 发布器的抽象，事件行与业务变更同事务落库。
type EventPublisher interface {
	Publish(ctx context.Context, event outbox.DomainEvent, exchange, routingKey string) error
}

// TxRunner 在一个数据库事务中执行 fn；事务句柄随 ctx 向下传递。
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// CreateOrderRequest 是下单请求。商品行来自购物车快照而非请求体。
type CreateOrderRequest struct {
	UserEmail string
	Comment   string
}

// OrderPage 是分页的订单查询结果。
type OrderPage struct {
	Content []*domain.Order
	Page    paging.Info
}

// OrderApplicationService 编排订单用例。
// 每个写用例在一个事务里完成订单写入和 outbox 事件写入；
// 库存侧的预留/释放/确认由事件流异步驱动，不在这里直接调用。
type OrderApplicationService struct {
	repo      domain.OrderRepository
	cart      port.CartSnapshotter
	inventory port.AvailabilityChecker
	publisher EventPublisher
	tx        TxRunner
	tracer    trace.Tracer
}

func NewOrderApplicationService(
	repo domain.OrderRepository,
	cart port.CartSnapshotter,
	inventory port.AvailabilityChecker,
	publisher EventPublisher,
	tx TxRunner,
	tracer trace.Tracer,
) *OrderApplicationService {
	return &OrderApplicationService{
		repo:      repo,
		cart:      cart,
		inventory: inventory,
		publisher: publisher,
		tx:        tx,
		tracer:    tracer,
	}
}

// CreateOrder 从用户购物车创建订单。
// 商品名与单价在此刻冻结；订单行与 OrderCreatedEvent 在同一事务提交。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	lines, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	// 快速失败预检。真正的扣减由库存引擎在消费事件时以行锁裁决，
	// 这里放过的竞争请求会在那一侧被拒绝。
	for _, line := range lines {
		ok, err := s.inventory.CheckAvailability(ctx, []port.AvailabilityLine{
			{ProductID: line.ProductID, Quantity: line.Quantity},
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !ok {
			return nil, &domain.ProductUnavailableError{ProductID: line.ProductID}
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			PriceAtTime: line.UnitPrice,
		})
	}

	order, err := domain.NewOrder(userID, req.UserEmail, items)
	if err != nil {
		return nil, err
	}
	order.Comment = req.Comment

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Save(txCtx, order); err != nil {
			return err
		}

		event := &events.OrderCreatedEvent{
			Envelope: events.NewEnvelope(events.TypeOrderCreated, strconv.FormatInt(order.ID, 10)),
			Order:    toSnapshot(order),
		}
		return s.publisher.Publish(txCtx, event, events.OrderEventsExchange, events.RoutingKeyOrderCreated)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		return nil, err
	}

	// 订单已提交，清空购物车失败不回滚订单
	if err := s.cart.Clear(ctx, userID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("failed to clear cart after order creation")
	}

	logger.Ctx(ctx).Info().Int64("order_id", order.ID).Int64("user_id", userID).
		Float64("total", order.TotalAmount).Msg("✅ order created")
	return order, nil
}

// UpdateStatus 执行一次管理端状态流转，并在同一事务发布状态变更事件。
func (s *OrderApplicationService) UpdateStatus(ctx context.Context, orderID int64, target domain.Status, actor string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.String("status.target", string(target)))

	if !target.Valid() {
		return nil, domain.ErrUnknownStatus
	}

	var result *domain.Order
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// 行锁读取：并发流转在这里串行化，后到的事务看到已提交的新状态，
		// 由状态机守卫拒绝，订单状态才不会与库存侧结算脱节
		order, err := s.repo.FindForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}

		oldStatus := order.Status
		if err := order.TransitionTo(target); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, order); err != nil {
			return err
		}

		event := &events.OrderStatusChangedEvent{
			Envelope:  events.NewEnvelope(events.TypeOrderStatusChanged, strconv.FormatInt(order.ID, 10)),
			Order:     toSnapshot(order),
			OldStatus: string(oldStatus),
		}
		if err := s.publisher.Publish(txCtx, event, events.OrderEventsExchange, events.RoutingKeyOrderStatusChanged); err != nil {
			return err
		}

		logger.Ctx(txCtx).Info().Int64("order_id", order.ID).
			Str("from", string(oldStatus)).Str("to", string(target)).
			Str("actor", actor).Msg("order status changed")
		result = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status transition failed")
		return nil, err
	}
	return result, nil
}

// CloseOrder 是用户侧取消：校验归属后走 CANCELLED 流转。
// 状态机保证只有 PENDING/CONFIRMED 的订单能走到这里。
func (s *OrderApplicationService) CloseOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CloseOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int64("user.id", userID))

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrNotOrderOwner
	}

	return s.UpdateStatus(ctx, orderID, domain.StatusCancelled, "user:"+strconv.FormatInt(userID, 10))
}

// GetOrder 读取单个订单。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// GetUserOrders 分页返回某用户的订单。
func (s *OrderApplicationService) GetUserOrders(ctx context.Context, userID int64, page paging.Request) (*OrderPage, error) {
	page = page.Normalize()
	rows, total, err := s.repo.FindByUserID(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Content: rows, Page: paging.NewInfo(page, total)}, nil
}

// ListOrders 分页返回全部订单，status 为空表示不过滤。
func (s *OrderApplicationService) ListOrders(ctx context.Context, status domain.Status, page paging.Request) (*OrderPage, error) {
	if status != "" && !status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, status, page)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Content: rows, Page: paging.NewInfo(page, total)}, nil
}

// toSnapshot 把订单聚合冻结成事件载荷。
func toSnapshot(order *domain.Order) events.OrderSnapshot {
	items := make([]events.OrderItemSnapshot, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, events.OrderItemSnapshot{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
		})
	}
	return events.OrderSnapshot{
		ID:          order.ID,
		UserID:      order.UserID,
		UserEmail:   order.UserEmail,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Items:       items,
		CreatedAt:   order.CreatedAt,
	}
}
