// internal/service/inventory/infrastructure/adapter/keyed_mutex_locker.go
package adapter

import (
	"context"
	"sync"
)

// KeyedMutexLocker 是 port.ProductLocker 的进程内实现，
// 每个商品一把互斥锁，单实例部署的默认选择。
// 锁对象只增不减，商品数量有限，不做回收。
type KeyedMutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutexLocker() *KeyedMutexLocker {
	return &KeyedMutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *KeyedMutexLocker) Lock(_ context.Context, productID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[productID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[productID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
