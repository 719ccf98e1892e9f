// internal/service/inventory/port/orders.go
package port

import (
	"context"
	"time"
)

// PendingOrder 是上游订单服务中一笔等待支付的订单。
type PendingOrder struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderWorkflow 是订单服务的出站端口，超时清扫器依赖它。
type OrderWorkflow interface {
	// FindPaymentPendingBefore 返回支付挂起时间早于 cutoff 的订单。
	FindPaymentPendingBefore(ctx context.Context, cutoff time.Time) ([]PendingOrder, error)

	// MarkAbandoned 通知订单服务将订单标记为已放弃（库存已归还）。
	MarkAbandoned(ctx context.Context, orderID string) error
}
