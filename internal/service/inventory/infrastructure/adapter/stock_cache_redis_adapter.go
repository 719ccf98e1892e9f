// internal/service/inventory/infrastructure/adapter/stock_cache_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"stockpile/internal/pkg/redis"
)

const (
	checkStockScriptName = "check_stock"

	// 缓存只是读侧加速，短 TTL 兜底脏数据
	stockCacheTTL = 5 * time.Minute
)

// StockCacheRedisAdapter 是 port.StockCache 接口的 Redis 实现。
type StockCacheRedisAdapter struct {
	redisClient *redis.Client
}

// NewStockCacheRedisAdapter 创建一个新的库存缓存适配器实例。
// 它在创建时会加载所需的 Lua 脚本。
func NewStockCacheRedisAdapter(redisClient *redis.Client) (*StockCacheRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(checkStockScriptName, checkStockScript); err != nil {
		return nil, fmt.Errorf("failed to load check_stock script: %w", err)
	}
	return &StockCacheRedisAdapter{redisClient: redisClient}, nil
}

func stockKey(productID string) string {
	return fmt.Sprintf("inventory:available:{%s}", productID)
}

// SetAvailable 在台账每次变更后刷新可售量缓存。
func (a *StockCacheRedisAdapter) SetAvailable(ctx context.Context, productID string, available int) error {
	return a.redisClient.GetClient().Set(ctx, stockKey(productID), available, stockCacheTTL).Err()
}

// GetAvailable 读取缓存中的可售量，未命中时 hit=false，由调用方回源台账。
func (a *StockCacheRedisAdapter) GetAvailable(ctx context.Context, productID string) (int, bool, error) {
	val, err := a.redisClient.GetClient().Get(ctx, stockKey(productID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock cache value %q: %w", val, err)
	}
	return available, true, nil
}

// CheckStock 在 Redis 侧原子地完成 "键存在且值 >= 请求量" 的判断。
func (a *StockCacheRedisAdapter) CheckStock(ctx context.Context, productID string, quantity int) (bool, bool, error) {
	result, err := a.redisClient.RunScript(ctx, checkStockScriptName, []string{stockKey(productID)}, quantity)
	if err != nil {
		return false, false, fmt.Errorf("check_stock script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return false, false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch code {
	case 1:
		return true, true, nil
	case 0:
		return false, true, nil
	default: // -1: 缓存未命中
		return false, false, nil
	}
}

// Invalidate 删除缓存键，用于算不出新值的异常路径。
func (a *StockCacheRedisAdapter) Invalidate(ctx context.Context, productID string) error {
	return a.redisClient.GetClient().Del(ctx, stockKey(productID)).Err()
}

var checkStockScript = `
-- KEYS[1]: 可售量缓存 Key, 例如: inventory:available:{product_123}
-- ARGV[1]: 请求的数量

local available = redis.call('get', KEYS[1])
if not available then
    return -1 -- 缓存未命中，调用方回源台账
end

if tonumber(available) >= tonumber(ARGV[1]) then
    return 1
else
    return 0
end
`
