// internal/outbox/publisher.go
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"bazaar/internal/events"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mysql"

	"github.com/pkg/errors"
)

// ErrNoActiveTransaction 表示调用方没有在数据库事务内调用 Publish。
// outbox 的全部价值在于事件行与业务变更同生共死，脱离事务的写入一律拒绝。
var ErrNoActiveTransaction = errors.New("outbox: publish requires an active database transaction")

// DomainEvent 是可进入 outbox 的事件约束：能给出自己的信封。
// 所有嵌入 events.Envelope 的事件自动满足。
type DomainEvent interface {
	Env() events.Envelope
}

// Publisher 把领域事件写入调用方当前事务中的 outbox 表。
type Publisher struct {
	maxRetries int
}

// NewPublisher 创建发布器。maxRetries 写入每行，供中继端判定放弃。
func NewPublisher(maxRetries int) *Publisher {
	return &Publisher{maxRetries: maxRetries}
}

// Publish 序列化事件并在 ctx 携带的事务中插入一行。
// 业务事务回滚时该行随之消失；提交时恰好存在一行。
func (p *Publisher) Publish(ctx context.Context, event DomainEvent, exchange, routingKey string) error {
	tx, ok := mysql.TxFromContext(ctx)
	if !ok {
		return ErrNoActiveTransaction
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "outbox: failed to serialize event payload")
	}

	env := event.Env()
	row := &Event{
		ID:           env.EventID,
		AggregateID:  env.AggregateID,
		EventType:    env.EventType,
		Payload:      string(payload),
		ExchangeName: exchange,
		RoutingKey:   routingKey,
		CreatedAt:    time.Now(),
		Processed:    false,
		MaxRetries:   p.maxRetries,
	}
	if err := tx.Create(row).Error; err != nil {
		return errors.Wrap(err, "outbox: failed to insert event row")
	}

	logger.Ctx(ctx).Info().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Str("aggregate_id", env.AggregateID).
		Msg("event staged in outbox")
	return nil
}
