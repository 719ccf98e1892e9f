// internal/service/inventory/port/events.go
package port

import (
	"context"

	"stockpile/internal/service/inventory/domain"
)

// StockEventPublisher 是库存变动事件的出站端口。
// 发布是尽力而为的: 事件丢失不影响台账正确性，只影响看板时效。
type StockEventPublisher interface {
	PublishStockChanged(ctx context.Context, event *domain.StockChanged) error
}
