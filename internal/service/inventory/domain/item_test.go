// internal/service/inventory/domain/item_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(t *testing.T, available int) *InventoryItem {
	t.Helper()
	item, err := NewInventoryItem("product-1", "Main Warehouse", available)
	require.NoError(t, err)
	return item
}

func assertInvariant(t *testing.T, item *InventoryItem) {
	t.Helper()
	assert.Equal(t, item.QuantityOnHand, item.QuantityAvailable+item.QuantityReserved,
		"onHand must equal available+reserved")
}

func TestNewInventoryItem(t *testing.T) {
	item := newTestItem(t, 100)

	assert.Equal(t, 100, item.QuantityOnHand)
	assert.Equal(t, 100, item.QuantityAvailable)
	assert.Equal(t, 0, item.QuantityReserved)
	assert.Equal(t, DefaultMinStockLevel, item.MinStockLevel)
	assert.Equal(t, DefaultMaxStockLevel, item.MaxStockLevel)
	assert.Equal(t, DefaultReorderPoint, item.ReorderPoint)
	assert.Equal(t, DefaultReorderQuantity, item.ReorderQuantity)
	assertInvariant(t, item)
}

func TestNewInventoryItem_Invalid(t *testing.T) {
	_, err := NewInventoryItem("", "wh", 10)
	assert.Error(t, err)

	_, err = NewInventoryItem("p", "wh", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReserve(t *testing.T) {
	item := newTestItem(t, 100)

	require.NoError(t, item.Reserve(30))
	assert.Equal(t, 100, item.QuantityOnHand)
	assert.Equal(t, 30, item.QuantityReserved)
	assert.Equal(t, 70, item.QuantityAvailable)
	assertInvariant(t, item)
}

func TestReserve_Insufficient(t *testing.T) {
	item := newTestItem(t, 10)

	err := item.Reserve(11)
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 11, insufficient.Requested)
	assert.Equal(t, 10, insufficient.Available)

	// 计数器必须原封不动
	assert.Equal(t, 10, item.QuantityAvailable)
	assert.Equal(t, 0, item.QuantityReserved)
	assertInvariant(t, item)
}

func TestReserve_ExactlyAvailable(t *testing.T) {
	item := newTestItem(t, 10)

	require.NoError(t, item.Reserve(10))
	assert.Equal(t, 0, item.QuantityAvailable)
	assert.Equal(t, 10, item.QuantityReserved)
	assert.True(t, item.IsOutOfStock())
	assertInvariant(t, item)
}

func TestReserve_InvalidQuantity(t *testing.T) {
	item := newTestItem(t, 10)
	assert.ErrorIs(t, item.Reserve(0), ErrInvalidQuantity)
	assert.ErrorIs(t, item.Reserve(-5), ErrInvalidQuantity)
}

func TestRelease(t *testing.T) {
	item := newTestItem(t, 100)
	require.NoError(t, item.Reserve(30))

	applied, err := item.Release(30)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 100, item.QuantityAvailable)
	assert.Equal(t, 0, item.QuantityReserved)
	assertInvariant(t, item)
}

func TestRelease_MoreThanReserved_IsNoop(t *testing.T) {
	item := newTestItem(t, 100)
	require.NoError(t, item.Reserve(10))

	applied, err := item.Release(11)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 10, item.QuantityReserved)
	assert.Equal(t, 90, item.QuantityAvailable)
	assertInvariant(t, item)
}

func TestConfirm(t *testing.T) {
	item := newTestItem(t, 100)
	require.NoError(t, item.Reserve(30))

	require.NoError(t, item.Confirm(30))
	assert.Equal(t, 70, item.QuantityOnHand)
	assert.Equal(t, 0, item.QuantityReserved)
	assert.Equal(t, 70, item.QuantityAvailable)
	assertInvariant(t, item)
}

func TestConfirm_ExceedsReserved(t *testing.T) {
	item := newTestItem(t, 100)
	require.NoError(t, item.Reserve(5))

	assert.ErrorIs(t, item.Confirm(6), ErrExceedsReserved)
	assert.Equal(t, 5, item.QuantityReserved)
	assertInvariant(t, item)
}

// 预占 -> 部分确认 -> 剩余释放的完整走账
func TestReserveConfirmReleaseSequence(t *testing.T) {
	item := newTestItem(t, 50)

	require.NoError(t, item.Reserve(20))
	require.NoError(t, item.Confirm(15))

	assert.Equal(t, 35, item.QuantityOnHand)
	assert.Equal(t, 5, item.QuantityReserved)
	assert.Equal(t, 30, item.QuantityAvailable)
	assertInvariant(t, item)

	applied, err := item.Release(5)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 35, item.QuantityOnHand)
	assert.Equal(t, 0, item.QuantityReserved)
	assert.Equal(t, 35, item.QuantityAvailable)
	assertInvariant(t, item)
}

func TestRestock(t *testing.T) {
	item := newTestItem(t, 5)

	require.NoError(t, item.Restock(45))
	assert.Equal(t, 50, item.QuantityOnHand)
	assert.Equal(t, 50, item.QuantityAvailable)
	assert.False(t, item.LastRestockDate.IsZero())
	assertInvariant(t, item)
}

func TestSyncOnHand(t *testing.T) {
	item := newTestItem(t, 100)
	require.NoError(t, item.Reserve(20))

	require.NoError(t, item.SyncOnHand(60))
	assert.Equal(t, 60, item.QuantityOnHand)
	assert.Equal(t, 20, item.QuantityReserved)
	assert.Equal(t, 40, item.QuantityAvailable)
	assertInvariant(t, item)

	// 新实物量吃不下现有预占时拒绝
	assert.ErrorIs(t, item.SyncOnHand(19), ErrExceedsReserved)
	assert.ErrorIs(t, item.SyncOnHand(-1), ErrInvalidQuantity)
}

func TestStockLevelPredicates(t *testing.T) {
	item := newTestItem(t, 100)
	assert.False(t, item.IsLowStock())
	assert.False(t, item.IsOutOfStock())
	assert.False(t, item.NeedsReorder())

	require.NoError(t, item.Reserve(85))
	assert.False(t, item.IsLowStock()) // available=15 > minStock=10
	assert.True(t, item.NeedsReorder()) // available=15 <= reorderPoint=20

	require.NoError(t, item.Reserve(10))
	assert.True(t, item.IsLowStock())

	require.NoError(t, item.Reserve(5))
	assert.True(t, item.IsOutOfStock())
}
