// internal/service/inventory/domain/event.go
package domain

import "time"

// StockChangeKind 区分库存变动事件的种类。
type StockChangeKind string

const (
	StockReserved  StockChangeKind = "RESERVED"
	StockReleased  StockChangeKind = "RELEASED"
	StockConfirmed StockChangeKind = "CONFIRMED"
	StockRestocked StockChangeKind = "RESTOCKED"
	StockSynced    StockChangeKind = "SYNCED"
)

// StockChanged 是库存计数器发生变化后发布的领域事件。
// 推送网关消费它向订阅了对应商品的看板实时广播。
type StockChanged struct {
	EventID   string          `json:"eventId"`
	TraceID   string          `json:"traceId,omitempty"`
	Kind      StockChangeKind `json:"kind"`
	ProductID string          `json:"productId"`
	OrderID   string          `json:"orderId,omitempty"`
	Quantity  int             `json:"quantity"`

	// 变动后的计数器快照
	OnHand    int `json:"onHand"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`

	OccurredAt time.Time `json:"occurredAt"`
}
