package interfaces

import (
	"context"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/metrics"
	"nexus-commerce/internal/pkg/mq"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventHandler 处理一条已解析的订单事件，返回错误表示需要重投。
type EventHandler interface {
	Process(ctx context.Context, event *contract.OrderEvent) error
}

type ConsumerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// backoff 返回第 attempt 次失败后的等待时间，指数增长并封顶。
func (c ConsumerConfig) backoff(attempt int) time.Duration {
	d := c.Backoff
	for i := 1; i < attempt && d < c.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// OrderEventConsumer 是一个驱动适配器，它监听 order-events 并驱动事件处理器。
// 逐条处理：成功才提交 offset；失败原地重试，超过上限或无法解析的消息转入死信后提交。
type OrderEventConsumer struct {
	reader         mq.MessageSource
	handler        EventHandler
	failureHandler *mq.FailureHandler
	tracer         trace.Tracer
	cfg            ConsumerConfig
}

func NewOrderEventConsumer(reader mq.MessageSource, handler EventHandler, failureHandler *mq.FailureHandler, tracer trace.Tracer, cfg ConsumerConfig) *OrderEventConsumer {
	return &OrderEventConsumer{
		reader:         reader,
		handler:        handler,
		failureHandler: failureHandler,
		tracer:         tracer,
		cfg:            cfg.withDefaults(),
	}
}

// Run 持续消费直到 ctx 取消。
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Int("max_attempts", c.cfg.MaxAttempts).Msg("✅ Order event consumer started.")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("🛑 Order event consumer shutting down.")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		if c.handle(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
			}
		}
	}
}

// handle 返回 true 表示这条消息可以提交。
func (c *OrderEventConsumer) handle(ctx context.Context, msg kafka.Message) bool {
	msgCtx := mq.ExtractTraceContext(ctx, msg)
	msgCtx, span := c.tracer.Start(msgCtx, "notification-service.ConsumeOrderEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		))
	defer span.End()

	event, err := contract.DecodeOrderEvent(msg.Value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable message")
		metrics.EventsConsumedTotal.WithLabelValues("unknown", "dead_letter").Inc()
		return c.deadLetter(msgCtx, msg, err, 1)
	}
	span.SetAttributes(attribute.String("order.id", event.OrderID), attribute.String("event.type", string(event.EventType)))

	for attempt := 1; ; attempt++ {
		err = c.handler.Process(msgCtx, event)
		if err == nil {
			metrics.EventsConsumedTotal.WithLabelValues(string(event.EventType), "ok").Inc()
			logger.Ctx(msgCtx).Info().Str("order_id", event.OrderID).Str("event_type", string(event.EventType)).
				Int("attempt", attempt).Msg("✅ Order event processed")
			return true
		}
		span.RecordError(err)
		if ctx.Err() != nil {
			// 关闭中，不提交，重启后从同一 offset 继续
			return false
		}

		if errors.Is(err, apperr.ErrUnrecoverable) || attempt >= c.cfg.MaxAttempts {
			span.SetStatus(codes.Error, "processing exhausted")
			metrics.EventsConsumedTotal.WithLabelValues(string(event.EventType), "dead_letter").Inc()
			return c.deadLetter(msgCtx, msg, err, attempt)
		}

		wait := c.cfg.backoff(attempt)
		metrics.EventsConsumedTotal.WithLabelValues(string(event.EventType), "retry").Inc()
		logger.Ctx(msgCtx).Warn().Err(err).Str("order_id", event.OrderID).Int("attempt", attempt).
			Dur("backoff", wait).Msg("🔁 Order event processing failed, redelivering")
		if !sleep(ctx, wait) {
			return false
		}
	}
}

// deadLetter 一直重试写入死信直到成功或关闭；写不进去的消息不能提交。
func (c *OrderEventConsumer) deadLetter(ctx context.Context, msg kafka.Message, cause error, attempts int) bool {
	for try := 1; ; try++ {
		err := c.failureHandler.Handle(ctx, msg, cause, attempts)
		if err == nil {
			return true
		}
		if !sleep(ctx, c.cfg.backoff(try)) {
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
