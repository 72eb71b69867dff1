package mq

import (
	"context"
	"fmt"
	"strconv"

	"nexus-commerce/internal/pkg/logger"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// 死信消息头，记录原始位置与失败原因。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
	HeaderAttempts          = "x-attempts"
)

// FailureHandler 把处理失败的消息转投到死信 topic。
type FailureHandler struct {
	dltWriter MessageWriter
}

func NewFailureHandler(dltWriter MessageWriter) *FailureHandler {
	return &FailureHandler{dltWriter: dltWriter}
}

// Handle 把原始消息连同失败信息写入死信 topic。
// 返回错误时调用方不能提交原消息的 offset。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error, attempts int) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+6)
	for _, hd := range msg.Headers {
		switch hd.Key {
		case HeaderOriginalTopic, HeaderOriginalPartition, HeaderOriginalOffset,
			HeaderExceptionFqcn, HeaderExceptionMessage, HeaderAttempts:
			continue
		}
		headers = append(headers, hd)
	}
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", errors.Cause(cause)))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
	)

	dlt := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := h.dltWriter.WriteMessages(ctx, dlt); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("topic", msg.Topic).
			Int64("offset", msg.Offset).
			Msg("❌ Failed to publish message to dead letter topic")
		return errors.Wrap(err, "publish to dead letter topic")
	}

	logger.Ctx(ctx).Warn().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Int("attempts", attempts).
		Err(cause).
		Msg("☠️ Message moved to dead letter topic")
	return nil
}
