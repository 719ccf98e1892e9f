// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity 表示数量不是正整数。
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrUnknownProduct 表示该商品还没有库存档案。
	// 调用方可以按配置选择自动建档或直接拒绝。
	ErrUnknownProduct = errors.New("product has no inventory record")

	// ErrExceedsReserved 表示确认/同步的数量超过了当前预占量，
	// 继续执行会把计数器推成负数，因此拒绝而不是截断。
	ErrExceedsReserved = errors.New("quantity exceeds reserved stock")
)

// InsufficientStockError 是业务层面的失败，不是异常:
// 携带请求量与可售量，供调用方给用户展示精确的缺口。
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// IsInsufficientStock 判断 err 链上是否存在库存不足失败。
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
