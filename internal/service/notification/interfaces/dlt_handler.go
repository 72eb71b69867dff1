package interfaces

import (
	"context"
	"time"

	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// DltConsumer 监听死信队列并记录日志
type DltConsumer struct {
	reader mq.MessageSource
}

func NewDltConsumer(reader mq.MessageSource) *DltConsumer {
	return &DltConsumer{reader: reader}
}

func (a *DltConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Msg("✅ DLT consumer started.")
	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("🛑 DLT consumer shutting down.")
				return nil
			}
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		logDeadLetter(ctx, msg)

		// DLT 中的消息记录日志后即视为已处理
		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit dead letter")
		}
	}
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	h := func(key string) string { return mq.HeaderValue(msg.Headers, key) }

	// 使用结构化日志记录，便于后续分析
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", h(mq.HeaderOriginalTopic)).
		Str("original_partition", h(mq.HeaderOriginalPartition)).
		Str("original_offset", h(mq.HeaderOriginalOffset)).
		Str("exception_fqcn", h(mq.HeaderExceptionFqcn)).
		Str("exception_message", h(mq.HeaderExceptionMessage)).
		Str("attempts", h(mq.HeaderAttempts)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
