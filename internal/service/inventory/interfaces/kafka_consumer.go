// internal/service/inventory/interfaces/kafka_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"bazaar/internal/events"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/inventory/domain"
	orderdomain "bazaar/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

const consumerActor = "inventory-worker"

// errUnknownEventType 标记无法分发的事件类型，按毒丸处理。
var errUnknownEventType = errors.New("consumer: unknown event type")

// InventoryOps 是消费端需要的库存操作子集。
type InventoryOps interface {
	Reserve(ctx context.Context, orderID int64, quantities map[int64]int, actor string) error
	ConfirmReservation(ctx context.Context, orderID int64, actor string) error
	CancelReservation(ctx context.Context, orderID int64, actor string) error
}

// DedupStore 是持久去重表。标记与业务变更同事务写入。
type DedupStore interface {
	MarkProcessed(ctx context.Context, eventID, eventType string) (duplicate bool, err error)
}

// DedupCache 是去重表前的快路径，只影响性能不影响正确性。
type DedupCache interface {
	Seen(ctx context.Context, eventID string) bool
	Remember(ctx context.Context, eventID string)
}

// TxRunner 与领域层定义一致，消费端用它把去重标记和库存变更绑进同一事务。
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Consumer 订阅订单事件流并驱动库存预留引擎。
// 每条消息的处理结果只有三种：成功提交、确认为重复后提交、写入死信后提交。
// 瞬时故障在提交前原地重试，重试耗尽后同样进入死信。
type Consumer struct {
	reader    *kafka.Reader
	dlqWriter mq.Producer
	inventory InventoryOps
	dedup     DedupStore
	cache     DedupCache
	tx        TxRunner

	maxAttempts int
	backoff     time.Duration
}

type ConsumerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

func NewConsumer(
	reader *kafka.Reader,
	dlqWriter mq.Producer,
	inventory InventoryOps,
	dedup DedupStore,
	cache DedupCache,
	tx TxRunner,
	cfg ConsumerConfig,
) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Consumer{
		reader:      reader,
		dlqWriter:   dlqWriter,
		inventory:   inventory,
		dedup:       dedup,
		cache:       cache,
		tx:          tx,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Run 拉取消息直到 ctx 取消。offset 手动提交：
// 一条消息只有在达成终态（成功/重复/死信）后才会被提交。
func (c *Consumer) Run(ctx context.Context) error {
	logger.Logger.Info().Str("topic", c.reader.Config().Topic).Msg("✅ inventory consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("🚨 failed to commit offset")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctx = mq.ExtractContext(ctx, msg)

	env, err := events.PeekEnvelope(msg.Value)
	if err != nil || env.EventID == "" || env.EventType == "" {
		// 连信封都解析不出来的消息没有重试价值
		logger.Ctx(ctx).Error().Err(err).Str("topic", msg.Topic).Msg("🛑 malformed event, sending to dlq")
		c.sendToDLQ(ctx, msg, env, errors.New("malformed event envelope"))
		return
	}

	log := logger.Ctx(ctx).With().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Logger()

	if c.cache.Seen(ctx, env.EventID) {
		metrics.ConsumerDuplicates.Inc()
		log.Info().Msg("duplicate event skipped (cache)")
		return
	}

	for attempt := 1; ; attempt++ {
		duplicate, err := c.handle(ctx, env, msg.Value)
		if err == nil {
			if duplicate {
				metrics.ConsumerDuplicates.Inc()
				log.Info().Msg("duplicate event skipped (store)")
			} else {
				metrics.ConsumerProcessed.WithLabelValues(env.EventType).Inc()
				log.Info().Msg("✅ event processed")
			}
			c.cache.Remember(ctx, env.EventID)
			return
		}

		if domain.IsBusinessError(err) || errors.Is(err, errUnknownEventType) || isPoisonPayload(err) {
			// 业务性拒绝重试多少次结果都一样，直接死信
			log.Warn().Err(err).Msg("🛑 event rejected, sending to dlq")
			c.sendToDLQ(ctx, msg, env, err)
			return
		}

		if attempt >= c.maxAttempts {
			log.Error().Err(err).Int("attempts", attempt).Msg("🚨 retries exhausted, sending to dlq")
			c.sendToDLQ(ctx, msg, env, err)
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("transient failure, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

// handle 在一个事务里写入去重标记并应用库存变更。
// 返回 duplicate=true 表示标记已存在，本次不做任何业务变更。
func (c *Consumer) handle(ctx context.Context, env events.Envelope, payload []byte) (duplicate bool, err error) {
	err = c.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dup, err := c.dedup.MarkProcessed(txCtx, env.EventID, env.EventType)
		if err != nil {
			return err
		}
		if dup {
			duplicate = true
			return nil
		}
		return c.dispatch(txCtx, env, payload)
	})
	return duplicate, err
}

func (c *Consumer) dispatch(ctx context.Context, env events.Envelope, payload []byte) error {
	switch env.EventType {
	case events.TypeOrderCreated:
		var event events.OrderCreatedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return poisonPayload(err)
		}
		return c.onOrderCreated(ctx, &event)

	case events.TypeOrderStatusChanged:
		var event events.OrderStatusChangedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return poisonPayload(err)
		}
		return c.onOrderStatusChanged(ctx, &event)

	default:
		return errUnknownEventType
	}
}

// onOrderCreated 为新订单预留库存。
func (c *Consumer) onOrderCreated(ctx context.Context, event *events.OrderCreatedEvent) error {
	if event.Order.Status != string(orderdomain.StatusPending) {
		logger.Ctx(ctx).Warn().Str("status", event.Order.Status).Msg("order not pending, skip reservation")
		return nil
	}

	quantities := make(map[int64]int, len(event.Order.Items))
	for _, item := range event.Order.Items {
		quantities[item.ProductID] += item.Quantity
	}
	if len(quantities) == 0 {
		return nil
	}
	return c.inventory.Reserve(ctx, event.Order.ID, quantities, consumerActor)
}

// onOrderStatusChanged 在取消时释放预留、发货时确认预留，其余流转不触碰库存。
func (c *Consumer) onOrderStatusChanged(ctx context.Context, event *events.OrderStatusChangedEvent) error {
	switch orderdomain.Status(event.Order.Status) {
	case orderdomain.StatusCancelled:
		return c.inventory.CancelReservation(ctx, event.Order.ID, consumerActor)
	case orderdomain.StatusShipped:
		return c.inventory.ConfirmReservation(ctx, event.Order.ID, consumerActor)
	default:
		return nil
	}
}

// sendToDLQ 把消息连同定位头写入死信 topic。
// offset 无论如何都会被提交，死信是这条消息最后的去处，
// 所以写入失败时原地重试，耗尽后才放弃并大声记日志。
func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, env events.Envelope, cause error) {
	headers := []kafka.Header{
		{Key: mq.HeaderOriginalTopic, Value: []byte(msg.Topic)},
		{Key: mq.HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		{Key: mq.HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		{Key: mq.HeaderExceptionMessage, Value: []byte(cause.Error())},
		{Key: mq.HeaderEventType, Value: []byte(env.EventType)},
	}

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = mq.ProduceMessage(ctx, c.dlqWriter, msg.Key, msg.Value, headers...)
		if err == nil {
			metrics.ConsumerDeadLettered.Inc()
			return
		}
		if attempt == c.maxAttempts {
			break
		}
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", env.EventID).
			Int("attempt", attempt).Msg("dead letter write failed, retrying")
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Error().Err(ctx.Err()).Str("event_id", env.EventID).Msg("🚨 dead letter write abandoned")
			return
		case <-time.After(c.backoff):
		}
	}
	logger.Ctx(ctx).Error().Err(err).Str("event_id", env.EventID).
		Int("attempts", c.maxAttempts).Msg("🚨 failed to write dead letter, message dropped")
}

type poisonError struct{ cause error }

func (e poisonError) Error() string { return "consumer: poison payload: " + e.cause.Error() }
func (e poisonError) Unwrap() error { return e.cause }

func poisonPayload(cause error) error { return poisonError{cause: cause} }

func isPoisonPayload(err error) bool {
	var p poisonError
	return errors.As(err, &p)
}
