// internal/service/inventory/infrastructure/rule/cel_advisor_test.go
package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpile/internal/service/inventory/domain"
)

func newItem(t *testing.T, available int) *domain.InventoryItem {
	t.Helper()
	item, err := domain.NewInventoryItem("p1", "Main Warehouse", available)
	require.NoError(t, err)
	return item
}

func TestDefaultRules(t *testing.T) {
	advisor, err := NewCELAdvisor(DefaultLowStockRule, DefaultReorderRule)
	require.NoError(t, err)

	healthy := newItem(t, 100)
	advice, err := advisor.Evaluate(healthy)
	require.NoError(t, err)
	assert.False(t, advice.LowStock)
	assert.False(t, advice.SuggestReorder)
	assert.Zero(t, advice.ReorderQuantity)

	// available=15: 未到 minStock=10，但已过 reorderPoint=20
	low := newItem(t, 15)
	advice, err = advisor.Evaluate(low)
	require.NoError(t, err)
	assert.False(t, advice.LowStock)
	assert.True(t, advice.SuggestReorder)
	assert.Equal(t, domain.DefaultReorderQuantity, advice.ReorderQuantity)

	empty := newItem(t, 0)
	advice, err = advisor.Evaluate(empty)
	require.NoError(t, err)
	assert.True(t, advice.LowStock)
}

func TestReorderRule_FullyReservedStock(t *testing.T) {
	advisor, err := NewCELAdvisor(DefaultLowStockRule, DefaultReorderRule)
	require.NoError(t, err)

	// 在手量全部被预占、可售为零，照样要建议补货
	item := newItem(t, 5)
	require.NoError(t, item.Reserve(5))
	require.Zero(t, item.QuantityAvailable)

	advice, err := advisor.Evaluate(item)
	require.NoError(t, err)
	assert.True(t, advice.SuggestReorder)
	assert.Equal(t, domain.DefaultReorderQuantity, advice.ReorderQuantity)
}

func TestCustomRuleWithWarehouse(t *testing.T) {
	advisor, err := NewCELAdvisor(
		`available <= minStock && warehouse == "Main Warehouse"`,
		DefaultReorderRule,
	)
	require.NoError(t, err)

	item := newItem(t, 5)
	advice, err := advisor.Evaluate(item)
	require.NoError(t, err)
	assert.True(t, advice.LowStock)

	item.WarehouseLocation = "Backup Warehouse"
	advice, err = advisor.Evaluate(item)
	require.NoError(t, err)
	assert.False(t, advice.LowStock)
}

func TestInvalidRules(t *testing.T) {
	_, err := NewCELAdvisor(`available <=`, DefaultReorderRule)
	assert.Error(t, err)

	// 编译通过但不是布尔表达式也要拒绝
	_, err = NewCELAdvisor(`available + 1`, DefaultReorderRule)
	assert.Error(t, err)
}
