// internal/service/inventory/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"errors"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// DLTConsumer 消费死信 topic，把每条死信连同来源元数据落日志，
// 供人工排查与重放。死信只记录不重试。
type DLTConsumer struct {
	reader *kafka.Reader
}

func NewDLTConsumer(reader *kafka.Reader) *DLTConsumer {
	return &DLTConsumer{reader: reader}
}

func (c *DLTConsumer) Run(ctx context.Context) error {
	logger.Logger.Info().Str("topic", c.reader.Config().Topic).Msg("✅ dead letter consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		msgCtx := mq.ExtractContext(ctx, msg)
		log := logger.Ctx(msgCtx).With().
			Str("dlq_topic", msg.Topic).
			Str("original_topic", headerValue(msg, mq.HeaderOriginalTopic)).
			Str("original_partition", headerValue(msg, mq.HeaderOriginalPartition)).
			Str("original_offset", headerValue(msg, mq.HeaderOriginalOffset)).
			Str("event_type", headerValue(msg, mq.HeaderEventType)).
			Logger()

		log.Error().
			Str("exception", headerValue(msg, mq.HeaderExceptionMessage)).
			Str("payload", string(msg.Value)).
			Msg("🚨 dead letter received")

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Msg("failed to commit dead letter offset")
		}
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
