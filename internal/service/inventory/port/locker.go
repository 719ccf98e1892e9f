// internal/service/inventory/port/locker.go
package port

import "context"

// ProductLocker 串行化对单个商品的库存变更。
// 单实例部署用进程内互斥锁，多副本部署切换为 ZooKeeper 分布式锁；
// 不同商品的锁相互独立，绝不退化为全局锁。
//
// 批量操作必须按 productId 升序逐个加锁，防止两个交叉批次互相等待。
type ProductLocker interface {
	// Lock 获取商品锁，返回解锁函数。解锁函数必须恰好调用一次。
	Lock(ctx context.Context, productID string) (unlock func(), err error)
}
