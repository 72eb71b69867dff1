package adapter

import (
	"context"
	"time"

	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/metrics"
	"nexus-commerce/internal/pkg/mq"
	"nexus-commerce/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const headerEventType = "eventType"

// OrderEventKafkaAdapter 实现了 port.EventPublisher 接口，消息 key 为订单 ID。
type OrderEventKafkaAdapter struct {
	writer  mq.MessageWriter
	timeout time.Duration
}

var _ port.EventPublisher = (*OrderEventKafkaAdapter)(nil)

func NewOrderEventKafkaAdapter(writer mq.MessageWriter, timeout time.Duration) *OrderEventKafkaAdapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OrderEventKafkaAdapter{writer: writer, timeout: timeout}
}

// Publish 等待 broker 确认后返回，失败由调用方记录，不回滚已提交的订单。
func (a *OrderEventKafkaAdapter) Publish(ctx context.Context, event *contract.OrderEvent) error {
	payload, err := event.Encode()
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.EventType), "error").Inc()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err = mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), payload,
		kafka.Header{Key: headerEventType, Value: []byte(event.EventType)})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.EventType), "error").Inc()
		return errors.Wrapf(err, "publish %s for order %s", event.EventType, event.OrderID)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.EventType), "ok").Inc()
	return nil
}

// Close 关闭底层的 Kafka writer。
func (a *OrderEventKafkaAdapter) Close() error {
	if c, ok := a.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
