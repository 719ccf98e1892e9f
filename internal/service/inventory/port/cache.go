// internal/service/inventory/port/cache.go
package port

import "context"

// StockCache 是可售量的读侧缓存端口，加速 check-stock 热路径。
// 缓存只是建议性的: 未命中或出错时调用方必须回源台账，
// 台账每次变更后刷新对应键。
type StockCache interface {
	// SetAvailable 写入商品当前可售量。
	SetAvailable(ctx context.Context, productID string, available int) error

	// GetAvailable 读取可售量，第二个返回值指示是否命中。
	GetAvailable(ctx context.Context, productID string) (available int, hit bool, err error)

	// CheckStock 原子地判断缓存中的可售量是否满足请求量。
	// 未命中时 hit=false，由调用方回源。
	CheckStock(ctx context.Context, productID string, quantity int) (inStock bool, hit bool, err error)

	// Invalidate 删除缓存键，用于无法计算新值的异常路径。
	Invalidate(ctx context.Context, productID string) error
}
