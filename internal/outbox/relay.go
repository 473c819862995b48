// internal/outbox/relay.go
package outbox

import (
	"context"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// Sender 负责把一条 outbox 事件真正送达 broker。
type Sender interface {
	Send(ctx context.Context, event *Event) error
}

// KafkaSender 按交换机名路由到对应 topic 的 Writer。
// 消息 key 取聚合 ID，保证同一聚合的事件进同一分区。
type KafkaSender struct {
	writers map[string]*kafka.Writer
}

func NewKafkaSender(writers map[string]*kafka.Writer) *KafkaSender {
	return &KafkaSender{writers: writers}
}

func (s *KafkaSender) Send(ctx context.Context, event *Event) error {
	writer, ok := s.writers[event.ExchangeName]
	if !ok {
		return errUnknownExchange(event.ExchangeName)
	}
	return mq.ProduceMessage(ctx, writer,
		[]byte(event.AggregateID),
		[]byte(event.Payload),
		kafka.Header{Key: mq.HeaderRoutingKey, Value: []byte(event.RoutingKey)},
		kafka.Header{Key: mq.HeaderEventType, Value: []byte(event.EventType)},
	)
}

type errUnknownExchange string

func (e errUnknownExchange) Error() string {
	return "outbox: no writer configured for exchange " + string(e)
}

// Relay 周期性轮询 outbox 并投递事件。
// 多实例部署时必须只有一个活跃实例（由 zookeeper 主节点锁保证）。
type Relay struct {
	store    Store
	sender   Sender
	interval time.Duration
	batch    int
}

func NewRelay(store Store, sender Sender, interval time.Duration, batchLimit int) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Relay{store: store, sender: sender, interval: interval, batch: batchLimit}
}

// Run 阻塞运行轮询循环，直到 ctx 取消。
func (r *Relay) Run(ctx context.Context) {
	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("✅ Outbox relay started.")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("🛑 Outbox relay shutting down.")
			return
		case <-ticker.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 执行一轮投递。每条事件的结果独立落库：
// 一条失败绝不阻塞同批次后续事件。
func (r *Relay) DrainOnce(ctx context.Context) {
	rows, err := r.store.FindUnprocessed(ctx, r.batch)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("outbox poll failed")
		return
	}
	if len(rows) == 0 {
		return
	}

	logger.Ctx(ctx).Info().Int("count", len(rows)).Msg("processing events from outbox")

	for _, event := range rows {
		if err := r.sender.Send(ctx, event); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("event_id", event.ID).
				Int("retry_count", event.RetryCount+1).
				Msg("failed to publish outbox event")

			gaveUp, recErr := r.store.RecordFailure(ctx, event.ID, err.Error())
			if recErr != nil {
				logger.Ctx(ctx).Error().Err(recErr).Str("event_id", event.ID).Msg("failed to record delivery failure")
				continue
			}
			if gaveUp {
				metrics.OutboxDead.Inc()
				logger.Ctx(ctx).Error().
					Str("event_id", event.ID).
					Str("event_type", event.EventType).
					Msg("🚨 outbox event reached the maximum number of retries, giving up")
			} else {
				metrics.OutboxRetries.Inc()
			}
			continue
		}

		if err := r.store.MarkProcessed(ctx, event.ID); err != nil {
			// 标记失败会导致下个周期重发；幂等消费端会吸收这次重复
			logger.Ctx(ctx).Error().Err(err).Str("event_id", event.ID).Msg("failed to mark event processed")
			continue
		}
		metrics.OutboxPublished.Inc()
	}
}
