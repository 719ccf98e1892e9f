// internal/service/inventory/infrastructure/memory/ledger.go
package memory

import (
	"context"
	"sort"
	"sync"

	"stockpile/internal/service/inventory/domain"
)

// LedgerRepository 是 domain.LedgerRepository 的内存实现，
// 本地开发与测试用。单把读写锁即可满足原子性要求。
type LedgerRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.InventoryItem
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{items: make(map[string]*domain.InventoryItem)}
}

func (r *LedgerRepository) Get(_ context.Context, productID string) (*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrUnknownProduct
	}
	return cloneItem(item), nil
}

func (r *LedgerRepository) Upsert(_ context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ProductID] = cloneItem(item)
	return nil
}

func (r *LedgerRepository) Reserve(_ context.Context, productID string, quantity int) (*domain.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrUnknownProduct
	}
	if err := item.Reserve(quantity); err != nil {
		return nil, err
	}
	return cloneItem(item), nil
}

func (r *LedgerRepository) Release(_ context.Context, productID string, quantity int) (*domain.InventoryItem, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, false, domain.ErrUnknownProduct
	}
	applied, err := item.Release(quantity)
	if err != nil {
		return nil, false, err
	}
	return cloneItem(item), applied, nil
}

func (r *LedgerRepository) Confirm(_ context.Context, productID string, quantity int) (*domain.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrUnknownProduct
	}
	if err := item.Confirm(quantity); err != nil {
		return nil, err
	}
	return cloneItem(item), nil
}

func (r *LedgerRepository) Restock(_ context.Context, productID, warehouseLocation string, quantity int) (*domain.InventoryItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[productID]
	if !ok {
		created, err := domain.NewInventoryItem(productID, warehouseLocation, 0)
		if err != nil {
			return nil, err
		}
		item = created
		r.items[productID] = item
	}
	if err := item.Restock(quantity); err != nil {
		return nil, err
	}
	return cloneItem(item), nil
}

func (r *LedgerRepository) SyncOnHand(_ context.Context, productID string, newOnHand int) (*domain.InventoryItem, error) {
	if newOnHand < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrUnknownProduct
	}
	if err := item.SyncOnHand(newOnHand); err != nil {
		return nil, err
	}
	return cloneItem(item), nil
}

func (r *LedgerRepository) FindLowStock(_ context.Context) ([]*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.InventoryItem
	for _, item := range r.items {
		if item.IsLowStock() {
			out = append(out, cloneItem(item))
		}
	}
	sortByProduct(out)
	return out, nil
}

func (r *LedgerRepository) FindOutOfStock(_ context.Context) ([]*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.InventoryItem
	for _, item := range r.items {
		if item.IsOutOfStock() {
			out = append(out, cloneItem(item))
		}
	}
	sortByProduct(out)
	return out, nil
}

func (r *LedgerRepository) List(_ context.Context, page, size int) ([]*domain.InventoryItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*domain.InventoryItem, 0, len(r.items))
	for _, item := range r.items {
		all = append(all, cloneItem(item))
	}
	sortByProduct(all)
	total := int64(len(all))
	start := (page - 1) * size
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func cloneItem(item *domain.InventoryItem) *domain.InventoryItem {
	cp := *item
	return &cp
}

func sortByProduct(items []*domain.InventoryItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
}
