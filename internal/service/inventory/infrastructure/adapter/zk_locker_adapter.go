// internal/service/inventory/infrastructure/adapter/zk_locker_adapter.go
package adapter

import (
	"context"
	"fmt"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/pkg/zookeeper"
)

// ZkProductLocker 是 port.ProductLocker 的 ZooKeeper 实现，
// 多副本部署时用它把同一商品的变更串行化到集群级别。
type ZkProductLocker struct {
	conn *zookeeper.Conn
}

func NewZkProductLocker(conn *zookeeper.Conn) *ZkProductLocker {
	return &ZkProductLocker{conn: conn}
}

func (l *ZkProductLocker) Lock(ctx context.Context, productID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, fmt.Sprintf("inventory-%s", productID))
	if err != nil {
		return nil, fmt.Errorf("create zk lock for %s: %w", productID, err)
	}
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire zk lock for %s: %w", productID, err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("product_id", productID).Msg("⚠️ failed to release zk lock")
		}
	}, nil
}
