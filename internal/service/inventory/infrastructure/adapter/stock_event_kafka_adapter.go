// internal/service/inventory/infrastructure/adapter/stock_event_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/pkg/mq"
	"stockpile/internal/service/inventory/domain"
)

// StockEventKafkaAdapter 是 port.StockEventPublisher 接口的 Kafka 实现。
// 以 productId 作为分区键，同一商品的事件保持有序。
type StockEventKafkaAdapter struct {
	writer *kafka.Writer
}

// NewStockEventKafkaAdapter 创建一个新的库存事件发布适配器实例。
func NewStockEventKafkaAdapter(brokers []string, topic string) *StockEventKafkaAdapter {
	return &StockEventKafkaAdapter{writer: mq.NewKafkaWriter(brokers, topic)}
}

// PublishStockChanged 发布库存变动事件，并把当前 trace 上下文注入消息头。
func (a *StockEventKafkaAdapter) PublishStockChanged(ctx context.Context, event *domain.StockChanged) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := mq.ProduceMessage(ctx, a.writer, []byte(event.ProductID), payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("product_id", event.ProductID).
			Str("kind", string(event.Kind)).
			Msg("⚠️ failed to publish stock event")
		return err
	}
	return nil
}

// Close 关闭底层 writer。
func (a *StockEventKafkaAdapter) Close() error {
	return a.writer.Close()
}
