// internal/service/inventory/domain/repository.go
package domain

import "context"

// LedgerRepository 是库存台账的持久化接口。
// 它位于领域层，但由基础设施层实现。
//
// Reserve/Release/Confirm/Restock 必须对同一 productId 的并发调用保持原子:
// GORM 实现用带条件的 UPDATE（影响行数为 0 即失败）表达行级 CAS，
// 内存实现用每商品互斥锁。不同商品之间不得相互阻塞。
type LedgerRepository interface {
	// Get 返回商品的库存档案，不存在时返回 ErrUnknownProduct。
	Get(ctx context.Context, productID string) (*InventoryItem, error)

	// Upsert 创建或整体覆盖库存档案（建档/重置用，不用于计数器变更）。
	Upsert(ctx context.Context, item *InventoryItem) error

	// Reserve 原子地预占库存，成功时返回更新后的档案。
	// 可售量不足返回 InsufficientStockError，无档案返回 ErrUnknownProduct。
	Reserve(ctx context.Context, productID string, quantity int) (*InventoryItem, error)

	// Release 原子地释放预占。超出当前预占量时是无操作（applied=false），
	// 与领域实体的 Release 语义一致。
	Release(ctx context.Context, productID string, quantity int) (item *InventoryItem, applied bool, err error)

	// Confirm 原子地把预占转为实扣。超出预占量返回 ErrExceedsReserved。
	Confirm(ctx context.Context, productID string, quantity int) (*InventoryItem, error)

	// Restock 原子地入库；档案不存在时自动建档。
	Restock(ctx context.Context, productID, warehouseLocation string, quantity int) (*InventoryItem, error)

	// SyncOnHand 按外部绝对值重算 onHand/available，保持 reserved 不变。
	SyncOnHand(ctx context.Context, productID string, newOnHand int) (*InventoryItem, error)

	// FindLowStock / FindOutOfStock 供管理端巡检。
	FindLowStock(ctx context.Context) ([]*InventoryItem, error)
	FindOutOfStock(ctx context.Context) ([]*InventoryItem, error)

	// List 分页返回全部库存档案及总数。
	List(ctx context.Context, page, size int) ([]*InventoryItem, int64, error)
}

// ReservationRepository 是预占记录的持久化接口。
//
// 终态幂等由仓储保证: MarkReleased/MarkConfirmed 只转移仍处于 RESERVED
// 的记录，返回实际发生转移的记录，已终态的记录静默跳过。
type ReservationRepository interface {
	// Record 插入一条 RESERVED 记录。同一 (orderId, productId) 已存在
	// RESERVED 记录时视为幂等成功（created=false），不产生重复行。
	Record(ctx context.Context, reservation *OrderReservation) (created bool, err error)

	// FindOpen 返回 (orderId, productId) 当前的 RESERVED 记录，没有则返回 nil。
	FindOpen(ctx context.Context, orderID, productID string) (*OrderReservation, error)

	// FindOpenForOrder 返回订单下全部 RESERVED 记录，
	// 整单回滚与超时清扫都以它为事实来源。
	FindOpenForOrder(ctx context.Context, orderID string) ([]*OrderReservation, error)

	// MarkReleased 将 (orderId, productId) 的 RESERVED 记录转为 RELEASED。
	// 返回发生转移的记录；记录不存在或已终态时返回 nil, nil。
	MarkReleased(ctx context.Context, orderID, productID string) (*OrderReservation, error)

	// MarkConfirmed 同上，转为 CONFIRMED。
	MarkConfirmed(ctx context.Context, orderID, productID string) (*OrderReservation, error)

	// Reopen 把一条已终态的记录退回 RESERVED。
	// 认领成功但随后的台账变更失败时调用，两边要么一起走完，
	// 要么一起退回，预占量不允许悄悄消失。
	Reopen(ctx context.Context, reservationID uint64) error

	// MarkOrderReleased 释放订单下所有 RESERVED 记录，返回发生转移的记录。
	MarkOrderReleased(ctx context.Context, orderID string) ([]*OrderReservation, error)

	// MarkOrderConfirmed 确认订单下所有 RESERVED 记录，返回发生转移的记录。
	MarkOrderConfirmed(ctx context.Context, orderID string) ([]*OrderReservation, error)
}
