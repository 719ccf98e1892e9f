// internal/service/inventory/application/service_test.go
package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"stockpile/internal/service/inventory/domain"
	"stockpile/internal/service/inventory/infrastructure/adapter"
	"stockpile/internal/service/inventory/infrastructure/memory"
	"stockpile/internal/service/inventory/port"
)

type fakeCatalog struct {
	products map[string]int
	calls    int
}

func (f *fakeCatalog) FetchProduct(_ context.Context, productID string) (*port.CatalogProduct, error) {
	f.calls++
	qty, ok := f.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s not found in catalog", productID)
	}
	return &port.CatalogProduct{ProductID: productID, Name: "Product " + productID, StockQuantity: qty}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.StockChanged
}

func (f *fakePublisher) PublishStockChanged(_ context.Context, event *domain.StockChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) kinds() []domain.StockChangeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.StockChangeKind, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Kind)
	}
	return out
}

type testEnv struct {
	svc          *InventoryApplicationService
	ledger       *memory.LedgerRepository
	reservations *memory.ReservationRepository
	publisher    *fakePublisher
	catalog      *fakeCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ledger:       memory.NewLedgerRepository(),
		reservations: memory.NewReservationRepository(),
		publisher:    &fakePublisher{},
		catalog:      &fakeCatalog{products: map[string]int{}},
	}
	env.svc = NewInventoryApplicationService(
		env.ledger, env.reservations, adapter.NewKeyedMutexLocker(),
		nil, env.catalog, env.publisher, nil, otel.Tracer("test"),
		true, "Main Warehouse",
	)
	return env
}

func (e *testEnv) seed(t *testing.T, productID string, quantity int) {
	t.Helper()
	item, err := domain.NewInventoryItem(productID, "Main Warehouse", quantity)
	require.NoError(t, err)
	require.NoError(t, e.ledger.Upsert(context.Background(), item))
}

func (e *testEnv) counters(t *testing.T, productID string) (onHand, reserved, available int) {
	t.Helper()
	item, err := e.ledger.Get(context.Background(), productID)
	require.NoError(t, err)
	return item.QuantityOnHand, item.QuantityReserved, item.QuantityAvailable
}

// flakyLedger 让前 N 次 Release/Confirm 失败，模拟认领之后的存储故障。
type flakyLedger struct {
	*memory.LedgerRepository
	failReleases int
	failConfirms int
}

func (f *flakyLedger) Release(ctx context.Context, productID string, quantity int) (*domain.InventoryItem, bool, error) {
	if f.failReleases > 0 {
		f.failReleases--
		return nil, false, fmt.Errorf("driver: bad connection")
	}
	return f.LedgerRepository.Release(ctx, productID, quantity)
}

func (f *flakyLedger) Confirm(ctx context.Context, productID string, quantity int) (*domain.InventoryItem, error) {
	if f.failConfirms > 0 {
		f.failConfirms--
		return nil, fmt.Errorf("driver: bad connection")
	}
	return f.LedgerRepository.Confirm(ctx, productID, quantity)
}

// withFlakyLedger 返回一个共享同一存储、但台账会按计划失败的服务实例。
func (e *testEnv) withFlakyLedger(failReleases, failConfirms int) *InventoryApplicationService {
	flaky := &flakyLedger{LedgerRepository: e.ledger, failReleases: failReleases, failConfirms: failConfirms}
	return NewInventoryApplicationService(
		flaky, e.reservations, adapter.NewKeyedMutexLocker(),
		nil, nil, e.publisher, nil, otel.Tracer("test"),
		false, "Main Warehouse",
	)
}

func TestReserveBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	env.seed(t, "p2", 50)
	ctx := context.Background()

	err := env.svc.ReserveBatch(ctx, "order-1", []ReservationLine{
		{ProductID: "p2", Quantity: 5},
		{ProductID: "p1", Quantity: 10},
	})
	require.NoError(t, err)

	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{100, 10, 90}, []int{onHand, reserved, available})
	onHand, reserved, available = env.counters(t, "p2")
	assert.Equal(t, []int{50, 5, 45}, []int{onHand, reserved, available})

	open, err := env.reservations.FindOpenForOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestReserveBatch_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	env.seed(t, "p2", 3)
	ctx := context.Background()

	err := env.svc.ReserveBatch(ctx, "order-1", []ReservationLine{
		{ProductID: "p1", Quantity: 10},
		{ProductID: "p2", Quantity: 5}, // 超出 p2 的可售量
	})
	require.Error(t, err)
	assert.True(t, domain.IsInsufficientStock(err))

	// p1 先占后还，一无所得
	_, reserved, available := env.counters(t, "p1")
	assert.Equal(t, 0, reserved)
	assert.Equal(t, 100, available)
	_, reserved, _ = env.counters(t, "p2")
	assert.Equal(t, 0, reserved)

	open, err := env.reservations.FindOpenForOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReserveBatch_RetryIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	ctx := context.Background()
	lines := []ReservationLine{{ProductID: "p1", Quantity: 10}}

	require.NoError(t, env.svc.ReserveBatch(ctx, "order-1", lines))
	require.NoError(t, env.svc.ReserveBatch(ctx, "order-1", lines))

	// 第二次提交不再扣减
	_, reserved, available := env.counters(t, "p1")
	assert.Equal(t, 10, reserved)
	assert.Equal(t, 90, available)

	open, err := env.reservations.FindOpenForOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestReserveBatch_MergesDuplicateLines(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	ctx := context.Background()

	err := env.svc.ReserveBatch(ctx, "order-1", []ReservationLine{
		{ProductID: "p1", Quantity: 4},
		{ProductID: "p1", Quantity: 6},
	})
	require.NoError(t, err)

	_, reserved, _ := env.counters(t, "p1")
	assert.Equal(t, 10, reserved)
}

func TestReserveBatch_AutoCreateFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.products["p-new"] = 40
	ctx := context.Background()

	err := env.svc.ReserveBatch(ctx, "order-1", []ReservationLine{{ProductID: "p-new", Quantity: 8}})
	require.NoError(t, err)
	assert.Equal(t, 1, env.catalog.calls)

	onHand, reserved, available := env.counters(t, "p-new")
	assert.Equal(t, []int{40, 8, 32}, []int{onHand, reserved, available})
}

func TestReserveBatch_UnknownProductNotInCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.svc.ReserveBatch(ctx, "order-1", []ReservationLine{{ProductID: "ghost", Quantity: 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestRelease_DoubleReleaseIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	ctx := context.Background()

	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 10))
	require.NoError(t, env.svc.Release(ctx, "order-1", "p1"))
	require.NoError(t, env.svc.Release(ctx, "order-1", "p1"))

	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{100, 0, 100}, []int{onHand, reserved, available})
}

func TestRelease_LedgerFailureKeepsReservationOpen(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 10)
	ctx := context.Background()
	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 4))

	svc := env.withFlakyLedger(1, 0)
	require.Error(t, svc.Release(ctx, "order-1", "p1"))

	// 认领退回 RESERVED，台账分毫未动
	open, err := env.reservations.FindOpen(ctx, "order-1", "p1")
	require.NoError(t, err)
	require.NotNil(t, open)
	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{10, 4, 6}, []int{onHand, reserved, available})

	// 重试如数归还
	require.NoError(t, svc.Release(ctx, "order-1", "p1"))
	onHand, reserved, available = env.counters(t, "p1")
	assert.Equal(t, []int{10, 0, 10}, []int{onHand, reserved, available})
}

func TestRollback_SeesReservationAfterLedgerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 10)
	ctx := context.Background()
	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 4))

	svc := env.withFlakyLedger(1, 0)
	require.Error(t, svc.Release(ctx, "order-1", "p1"))

	// 整单回滚仍然看得到这笔预占
	result, err := svc.RollbackForOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, result.Released, 1)
	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{10, 0, 10}, []int{onHand, reserved, available})
}

func TestConfirm_LedgerFailureKeepsReservationOpen(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 10)
	ctx := context.Background()
	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 4))

	svc := env.withFlakyLedger(0, 1)
	require.Error(t, svc.Confirm(ctx, "order-1", "p1"))

	open, err := env.reservations.FindOpen(ctx, "order-1", "p1")
	require.NoError(t, err)
	require.NotNil(t, open)

	require.NoError(t, svc.Confirm(ctx, "order-1", "p1"))
	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{6, 0, 6}, []int{onHand, reserved, available})
}

func TestConfirmBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	ctx := context.Background()

	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 10))
	require.NoError(t, env.svc.ConfirmBatch(ctx, "order-1", []ReservationLine{{ProductID: "p1", Quantity: 10}}))

	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{90, 0, 90}, []int{onHand, reserved, available})

	// 再次确认是无操作
	require.NoError(t, env.svc.ConfirmBatch(ctx, "order-1", []ReservationLine{{ProductID: "p1", Quantity: 10}}))
	onHand, _, _ = env.counters(t, "p1")
	assert.Equal(t, 90, onHand)
}

func TestConfirm_AfterReleaseIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	ctx := context.Background()

	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 10))
	require.NoError(t, env.svc.Release(ctx, "order-1", "p1"))
	require.NoError(t, env.svc.Confirm(ctx, "order-1", "p1"))

	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{100, 0, 100}, []int{onHand, reserved, available})
}

func TestRollbackForOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	env.seed(t, "p2", 50)
	ctx := context.Background()

	require.NoError(t, env.svc.ReserveBatch(ctx, "order-1", []ReservationLine{
		{ProductID: "p1", Quantity: 10},
		{ProductID: "p2", Quantity: 5},
	}))
	// 其中一行已确认，回滚只应动未决的那行
	require.NoError(t, env.svc.Confirm(ctx, "order-1", "p1"))

	result, err := env.svc.RollbackForOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, result.Released, 1)
	assert.Equal(t, "p2", result.Released[0].ProductID)

	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{90, 0, 90}, []int{onHand, reserved, available})
	onHand, reserved, available = env.counters(t, "p2")
	assert.Equal(t, []int{50, 0, 50}, []int{onHand, reserved, available})

	// 再次回滚没有可释放的行
	result, err = env.svc.RollbackForOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, result.Released)
}

func TestConcurrentReserves_NeverOversell(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 10)
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderID := fmt.Sprintf("order-%d", i)
			if err := env.svc.Reserve(ctx, orderID, "p1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	onHand, reserved, available := env.counters(t, "p1")
	assert.Equal(t, []int{10, 10, 0}, []int{onHand, reserved, available})
}

func TestCheckStockAndQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 10)
	ctx := context.Background()

	inStock, err := env.svc.CheckStock(ctx, "p1", 10)
	require.NoError(t, err)
	assert.True(t, inStock)

	inStock, err = env.svc.CheckStock(ctx, "p1", 11)
	require.NoError(t, err)
	assert.False(t, inStock)

	available, err := env.svc.StockQuantity(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	_, err = env.svc.StockQuantity(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestCreateItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	status, err := env.svc.CreateItem(ctx, "p1", "", 25)
	require.NoError(t, err)
	assert.Equal(t, "Main Warehouse", status.WarehouseLocation)
	assert.Equal(t, 25, status.QuantityAvailable)

	_, err = env.svc.CreateItem(ctx, "p1", "", 10)
	assert.ErrorIs(t, err, ErrItemExists)
}

func TestRestockAndSyncStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 未知商品入库自动建档
	status, err := env.svc.Restock(ctx, "p1", "", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, status.QuantityOnHand)

	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 10))

	status, err = env.svc.SyncStock(ctx, "p1", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, status.QuantityOnHand)
	assert.Equal(t, 10, status.QuantityReserved)
	assert.Equal(t, 15, status.QuantityAvailable)

	_, err = env.svc.SyncStock(ctx, "p1", 9)
	assert.ErrorIs(t, err, domain.ErrExceedsReserved)
}

func TestStatus_DerivedFlags(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 5)
	ctx := context.Background()

	// 全部在手量被预占，可售归零: 三个派生标志同时成立
	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 5))
	status, err := env.svc.Status(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, status.IsLowStock)
	assert.True(t, status.IsOutOfStock)
	assert.True(t, status.NeedsReorder)

	require.NoError(t, env.svc.Release(ctx, "order-1", "p1"))
	_, err = env.svc.Restock(ctx, "p1", "", 100)
	require.NoError(t, err)
	status, err = env.svc.Status(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, status.IsLowStock)
	assert.False(t, status.IsOutOfStock)
	assert.False(t, status.NeedsReorder)
}

func TestEventsPublishedAfterChanges(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "p1", 100)
	ctx := context.Background()

	require.NoError(t, env.svc.Reserve(ctx, "order-1", "p1", 10))
	require.NoError(t, env.svc.Confirm(ctx, "order-1", "p1"))
	require.NoError(t, env.svc.Reserve(ctx, "order-2", "p1", 5))
	require.NoError(t, env.svc.Release(ctx, "order-2", "p1"))

	assert.Equal(t, []domain.StockChangeKind{
		domain.StockReserved, domain.StockConfirmed,
		domain.StockReserved, domain.StockReleased,
	}, env.publisher.kinds())
}
