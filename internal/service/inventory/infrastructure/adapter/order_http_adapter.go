// internal/service/inventory/infrastructure/adapter/order_http_adapter.go
package adapter

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"stockpile/internal/pkg/httpclient"
	"stockpile/internal/service/inventory/port"
)

const (
	pendingPaymentPath = "/api/orders/pending-payment"
	abandonOrderPath   = "/api/orders/abandon"
)

// OrderHTTPAdapter 是 port.OrderWorkflow 接口的HTTP实现，
// 超时清扫器通过它询问订单服务并回写放弃状态。
type OrderHTTPAdapter struct {
	client      *httpclient.Client
	serviceName string
}

// NewOrderHTTPAdapter 创建一个新的订单服务适配器实例。
func NewOrderHTTPAdapter(client *httpclient.Client, serviceName string) *OrderHTTPAdapter {
	return &OrderHTTPAdapter{client: client, serviceName: serviceName}
}

// FindPaymentPendingBefore 返回支付挂起时间早于 cutoff 的订单列表。
func (a *OrderHTTPAdapter) FindPaymentPendingBefore(ctx context.Context, cutoff time.Time) ([]port.PendingOrder, error) {
	params := url.Values{}
	params.Set("before", cutoff.UTC().Format(time.RFC3339))

	var out struct {
		Orders []port.PendingOrder `json:"orders"`
	}
	if err := a.client.GetJSON(ctx, a.serviceName, pendingPaymentPath, params, &out); err != nil {
		return nil, errors.Wrap(err, "list payment-pending orders")
	}
	return out.Orders, nil
}

// MarkAbandoned 通知订单服务该订单的库存已经归还。
func (a *OrderHTTPAdapter) MarkAbandoned(ctx context.Context, orderID string) error {
	body := map[string]string{"orderId": orderID}
	if err := a.client.PostJSON(ctx, a.serviceName, abandonOrderPath, body, nil); err != nil {
		return errors.Wrapf(err, "mark order %s abandoned", orderID)
	}
	return nil
}
