// internal/events/events.go
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// 事件交换机与路由键。Kafka 部署下交换机名即 topic，
// 路由键随消息头携带，消费组按通配语义订阅整个 topic。
const (
	OrderEventsExchange = "order.events"
	UserEventsExchange  = "user.events"
	CartEventsExchange  = "cart.events"

	RoutingKeyOrderCreated       = "order.created"
	RoutingKeyOrderStatusChanged = "order.status.changed"
	RoutingKeyUserRegistered     = "user.registered"
	RoutingKeyCartAbandoned      = "cart.abandoned"
)

// 事件类型名，同时作为消费端的分发键。
const (
	TypeOrderCreated       = "OrderCreatedEvent"
	TypeOrderStatusChanged = "OrderStatusChangedEvent"
	TypeUserRegistered     = "UserRegisteredEvent"
	TypeCartAbandoned      = "CartAbandonedEvent"
)

// DeadLetterTopic 返回某个消费队列对应的死信 topic。
func DeadLetterTopic(queue string) string {
	return queue + ".dlq"
}

// Envelope 是所有领域事件共享的信封字段。
// EventID 同时是消费端的幂等键。
type Envelope struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateID string    `json:"aggregateId"`
	Version     int       `json:"version"`
}

// Env 返回信封自身；嵌入 Envelope 的事件借此满足 outbox 的发布约束。
func (e Envelope) Env() Envelope {
	return e
}

// NewEnvelope 生成一个新事件的信封。
func NewEnvelope(eventType, aggregateID string) Envelope {
	return Envelope{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		Timestamp:   time.Now(),
		AggregateID: aggregateID,
		Version:     1,
	}
}

// PeekEnvelope 只解析信封字段，不触碰具体载荷。
// 消费端用它做幂等预检和类型分发。
func PeekEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// OrderItemSnapshot 是下单时刻冻结的商品行。
// 价格与名称在此后不再随目录变化。
type OrderItemSnapshot struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	PriceAtTime float64 `json:"priceAtTime"`
}

// OrderSnapshot 是事件中携带的订单快照。
type OrderSnapshot struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"userId"`
	UserEmail   string              `json:"userEmail"`
	Status      string              `json:"status"`
	TotalAmount float64             `json:"totalAmount"`
	Items       []OrderItemSnapshot `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// OrderCreatedEvent 在订单创建事务提交后（经由 outbox）对外发布。
type OrderCreatedEvent struct {
	Envelope
	Order OrderSnapshot `json:"order"`
}

// OrderStatusChangedEvent 在订单状态流转后发布，携带旧状态。
type OrderStatusChangedEvent struct {
	Envelope
	Order     OrderSnapshot `json:"order"`
	OldStatus string        `json:"oldStatus"`
}

// UserRegisteredEvent 由用户子系统发布（本模块只消费其契约）。
type UserRegisteredEvent struct {
	Envelope
	UserID    int64  `json:"userId"`
	UserEmail string `json:"userEmail"`
	FirstName string `json:"firstName"`
}

// CartAbandonedEvent 由购物车子系统发布（本模块只消费其契约）。
type CartAbandonedEvent struct {
	Envelope
	CartID int64 `json:"cartId"`
	UserID int64 `json:"userId"`
}
