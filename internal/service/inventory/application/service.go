// internal/service/inventory/application/service.go
package application

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/service/inventory/domain"
	"stockpile/internal/service/inventory/infrastructure/rule"
	"stockpile/internal/service/inventory/port"
)

// ErrItemExists 表示建档请求撞上了已存在的商品档案。
var ErrItemExists = errors.New("inventory item already exists")

// 请求级校验错误，接口层映射为 400。
var (
	ErrOrderRequired = errors.New("orderId is required")
	ErrEmptyBatch    = errors.New("batch contains no items")
)

// InventoryApplicationService 编排库存预占的完整流程:
// 台账变更、预占记录、缓存刷新与事件发布。
//
// 并发纪律: 每次计数器变更都在对应商品锁内完成，批量操作按
// productId 升序逐个加锁，两个交叉批次因此不会互相等待。
type InventoryApplicationService struct {
	ledger       domain.LedgerRepository
	reservations domain.ReservationRepository
	locker       port.ProductLocker
	cache        port.StockCache
	catalog      port.ProductCatalog
	publisher    port.StockEventPublisher
	advisor      *rule.CELAdvisor
	tracer       trace.Tracer

	// 未知商品是否允许从商品目录自动建档
	autoCreateUnknown bool
	defaultWarehouse  string
}

func NewInventoryApplicationService(
	ledger domain.LedgerRepository,
	reservations domain.ReservationRepository,
	locker port.ProductLocker,
	cache port.StockCache,
	catalog port.ProductCatalog,
	publisher port.StockEventPublisher,
	advisor *rule.CELAdvisor,
	tracer trace.Tracer,
	autoCreateUnknown bool,
	defaultWarehouse string,
) *InventoryApplicationService {
	return &InventoryApplicationService{
		ledger: ledger, reservations: reservations, locker: locker,
		cache: cache, catalog: catalog, publisher: publisher,
		advisor: advisor, tracer: tracer,
		autoCreateUnknown: autoCreateUnknown, defaultWarehouse: defaultWarehouse,
	}
}

// normalizeLines 校验、合并并按 productId 升序排列批量请求的行。
// 同一商品出现多行时数量相加，后续加锁顺序依赖这里的排序。
func normalizeLines(items []ReservationLine) ([]ReservationLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	merged := make(map[string]int, len(items))
	for _, line := range items {
		if line.ProductID == "" {
			return nil, domain.ErrUnknownProduct
		}
		if line.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		merged[line.ProductID] += line.Quantity
	}
	out := make([]ReservationLine, 0, len(merged))
	for productID, qty := range merged {
		out = append(out, ReservationLine{ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// ReserveBatch 为一个订单原子地预占一批商品。
// 任意一行失败时，本次调用已经预占的行全部回退，订单要么整单
// 占到库存，要么一无所得。重复提交同一订单是幂等的。
func (s *InventoryApplicationService) ReserveBatch(ctx context.Context, orderID string, items []ReservationLine) error {
	ctx, span := s.tracer.Start(ctx, "app.ReserveBatch")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("batch.size", len(items)))

	if orderID == "" {
		return ErrOrderRequired
	}
	lines, err := normalizeLines(items)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// 失败时逆序执行，风格同订单服务的 Saga 补偿
	var compensations []func(context.Context)
	rollback := func(cause error) {
		span.AddEvent("batch failed, rolling back reserved lines")
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i](ctx)
		}
		span.RecordError(cause)
		span.SetStatus(codes.Error, "reserve batch failed")
	}

	for _, line := range lines {
		line := line
		item, err := s.reserveLine(ctx, orderID, line)
		if errors.Is(err, domain.ErrUnknownProduct) && s.autoCreateUnknown {
			// 目录查询是网络调用，必须发生在商品锁之外
			if cerr := s.createFromCatalog(ctx, line.ProductID); cerr != nil {
				err = cerr
			} else {
				item, err = s.reserveLine(ctx, orderID, line)
			}
		}
		if err != nil {
			if domain.IsInsufficientStock(err) {
				reservationsTotal.WithLabelValues("insufficient").Inc()
			} else {
				reservationsTotal.WithLabelValues("error").Inc()
			}
			rollback(err)
			return err
		}
		if item != nil {
			s.afterChange(ctx, domain.StockReserved, orderID, line.Quantity, item)
			compensations = append(compensations, func(compCtx context.Context) {
				if err := s.releaseLine(compCtx, orderID, line.ProductID); err != nil {
					logger.Ctx(compCtx).Error().Err(err).
						Str("order_id", orderID).Str("product_id", line.ProductID).
						Msg("🛑 compensation failed, reservation may leak until reaper runs")
				}
			})
		}
	}

	reservationsTotal.WithLabelValues("reserved").Inc()
	span.AddEvent("all lines reserved")
	return nil
}

// reserveLine 在商品锁内完成单行预占。
// 返回 nil item 表示该行此前已预占过（重试），没有新的台账变更。
// 锁内只走存储，缓存刷新与事件发布由调用方在锁外完成。
func (s *InventoryApplicationService) reserveLine(ctx context.Context, orderID string, line ReservationLine) (*domain.InventoryItem, error) {
	unlock, err := s.locker.Lock(ctx, line.ProductID)
	if err != nil {
		return nil, errors.Wrapf(err, "lock product %s", line.ProductID)
	}
	defer unlock()

	existing, err := s.reservations.FindOpen(ctx, orderID, line.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// 上一次请求已经占到了，静默跳过
		return nil, nil
	}

	item, err := s.ledger.Reserve(ctx, line.ProductID, line.Quantity)
	if err != nil {
		return nil, err
	}

	reservation, err := domain.NewOrderReservation(orderID, line.ProductID, line.Quantity)
	if err != nil {
		return nil, err
	}
	if _, err := s.reservations.Record(ctx, reservation); err != nil {
		// 台账已扣，记录没落下: 立即归还，保持两边一致
		if _, _, rerr := s.ledger.Release(ctx, line.ProductID, line.Quantity); rerr != nil {
			logger.Ctx(ctx).Error().Err(rerr).
				Str("order_id", orderID).Str("product_id", line.ProductID).
				Msg("🛑 failed to undo ledger reserve after record failure")
		}
		return nil, err
	}
	return item, nil
}

// releaseLine 释放单行预占: 锁内先认领记录，再归还台账。
// 记录已终态或不存在时整行是无操作。
// 台账归还失败时认领退回 RESERVED，重试和超时清扫仍能看到这笔预占。
func (s *InventoryApplicationService) releaseLine(ctx context.Context, orderID, productID string) error {
	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return errors.Wrapf(err, "lock product %s", productID)
	}

	claimed, err := s.reservations.MarkReleased(ctx, orderID, productID)
	if err != nil || claimed == nil {
		unlock()
		return err
	}
	item, _, err := s.ledger.Release(ctx, productID, claimed.Quantity)
	if err != nil {
		s.reopenClaim(ctx, claimed)
		unlock()
		return err
	}
	unlock()
	releasesTotal.Inc()
	s.afterChange(ctx, domain.StockReleased, orderID, claimed.Quantity, item)
	return nil
}

// ReleaseBatch 释放订单中指定商品的预占。已终态的行静默跳过，
// 重复调用是幂等的。
func (s *InventoryApplicationService) ReleaseBatch(ctx context.Context, orderID string, items []ReservationLine) error {
	ctx, span := s.tracer.Start(ctx, "app.ReleaseBatch")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("batch.size", len(items)))

	if orderID == "" {
		return ErrOrderRequired
	}
	lines, err := normalizeLines(items)
	if err != nil {
		span.RecordError(err)
		return err
	}
	for _, line := range lines {
		if err := s.releaseLine(ctx, orderID, line.ProductID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "release batch failed")
			return err
		}
	}
	return nil
}

// ConfirmBatch 把订单的预占转为实扣（支付成功后调用）。
// 确认没有整批回退: 已确认的行不再是可逆资源，部分失败时返回错误，
// 由调用方重试剩余的行——重试因幂等而安全。
func (s *InventoryApplicationService) ConfirmBatch(ctx context.Context, orderID string, items []ReservationLine) error {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmBatch")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("batch.size", len(items)))

	if orderID == "" {
		return ErrOrderRequired
	}
	lines, err := normalizeLines(items)
	if err != nil {
		span.RecordError(err)
		return err
	}
	for _, line := range lines {
		if err := s.confirmLine(ctx, orderID, line.ProductID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "confirm batch failed")
			return err
		}
	}
	return nil
}

func (s *InventoryApplicationService) confirmLine(ctx context.Context, orderID, productID string) error {
	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return errors.Wrapf(err, "lock product %s", productID)
	}

	claimed, err := s.reservations.MarkConfirmed(ctx, orderID, productID)
	if err != nil || claimed == nil {
		// 已确认过或从未预占，重试路径上这里是无操作
		unlock()
		return err
	}
	item, err := s.ledger.Confirm(ctx, productID, claimed.Quantity)
	if err != nil {
		s.reopenClaim(ctx, claimed)
		unlock()
		return err
	}
	unlock()
	confirmsTotal.Inc()
	s.afterChange(ctx, domain.StockConfirmed, orderID, claimed.Quantity, item)
	return nil
}

// Reserve / Release / Confirm 是单商品入口，复用批量路径。
func (s *InventoryApplicationService) Reserve(ctx context.Context, orderID, productID string, quantity int) error {
	return s.ReserveBatch(ctx, orderID, []ReservationLine{{ProductID: productID, Quantity: quantity}})
}

func (s *InventoryApplicationService) Release(ctx context.Context, orderID, productID string) error {
	ctx, span := s.tracer.Start(ctx, "app.Release")
	defer span.End()
	if orderID == "" {
		return ErrOrderRequired
	}
	return s.releaseLine(ctx, orderID, productID)
}

func (s *InventoryApplicationService) Confirm(ctx context.Context, orderID, productID string) error {
	ctx, span := s.tracer.Start(ctx, "app.Confirm")
	defer span.End()
	if orderID == "" {
		return ErrOrderRequired
	}
	return s.confirmLine(ctx, orderID, productID)
}

// RollbackForOrder 释放订单名下的全部预占，预占记录本身是事实来源，
// 调用方无需重传明细。超时清扫与人工介入共用这个入口。
func (s *InventoryApplicationService) RollbackForOrder(ctx context.Context, orderID string) (*RollbackResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.RollbackForOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	open, err := s.reservations.FindOpenForOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &RollbackResult{OrderID: orderID, Released: []ReservationLine{}}
	for _, res := range open {
		if err := s.releaseLine(ctx, orderID, res.ProductID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rollback failed midway")
			return result, err
		}
		result.Released = append(result.Released, ReservationLine{ProductID: res.ProductID, Quantity: res.Quantity})
	}
	if len(result.Released) > 0 {
		rollbacksTotal.Inc()
		logger.Ctx(ctx).Info().Str("order_id", orderID).
			Int("lines", len(result.Released)).Msg("✅ order reservations rolled back")
	}
	return result, nil
}

// CheckStock 判断可售量是否满足请求。走缓存热路径，未命中回源台账并回填。
func (s *InventoryApplicationService) CheckStock(ctx context.Context, productID string, quantity int) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "app.CheckStock")
	defer span.End()

	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	if s.cache != nil {
		inStock, hit, err := s.cache.CheckStock(ctx, productID, quantity)
		if err == nil && hit {
			cacheLookups.WithLabelValues("hit").Inc()
			return inStock, nil
		}
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("⚠️ stock cache unavailable, falling back to ledger")
		}
	}
	cacheLookups.WithLabelValues("miss").Inc()

	item, err := s.ledger.Get(ctx, productID)
	if err != nil {
		return false, err
	}
	s.refreshCache(ctx, item)
	return item.QuantityAvailable >= quantity, nil
}

// StockQuantity 返回商品当前可售量。
func (s *InventoryApplicationService) StockQuantity(ctx context.Context, productID string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "app.StockQuantity")
	defer span.End()

	if s.cache != nil {
		available, hit, err := s.cache.GetAvailable(ctx, productID)
		if err == nil && hit {
			cacheLookups.WithLabelValues("hit").Inc()
			return available, nil
		}
	}
	cacheLookups.WithLabelValues("miss").Inc()

	item, err := s.ledger.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	s.refreshCache(ctx, item)
	return item.QuantityAvailable, nil
}

// Status 返回商品库存全景，并附带告警规则的评估结果。
func (s *InventoryApplicationService) Status(ctx context.Context, productID string) (*StockStatus, error) {
	ctx, span := s.tracer.Start(ctx, "app.Status")
	defer span.End()

	item, err := s.ledger.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	status := toStatus(item)
	if s.advisor != nil {
		advice, err := s.advisor.Evaluate(item)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("⚠️ alert rule evaluation failed")
		} else {
			status.Advice = advice
		}
	}
	return status, nil
}

// CreateItem 为商品建档。档案已存在时拒绝，避免静默覆盖计数器。
func (s *InventoryApplicationService) CreateItem(ctx context.Context, productID, warehouse string, initialQuantity int) (*StockStatus, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateItem")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.createItemLocked(ctx, productID, warehouse, initialQuantity)
	unlock()
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, item)
	return toStatus(item), nil
}

func (s *InventoryApplicationService) createItemLocked(ctx context.Context, productID, warehouse string, initialQuantity int) (*domain.InventoryItem, error) {
	if _, err := s.ledger.Get(ctx, productID); err == nil {
		return nil, ErrItemExists
	} else if !errors.Is(err, domain.ErrUnknownProduct) {
		return nil, err
	}

	if warehouse == "" {
		warehouse = s.defaultWarehouse
	}
	item, err := domain.NewInventoryItem(productID, warehouse, initialQuantity)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Upsert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Restock 入库，未知商品自动建档。
func (s *InventoryApplicationService) Restock(ctx context.Context, productID, warehouse string, quantity int) (*StockStatus, error) {
	ctx, span := s.tracer.Start(ctx, "app.Restock")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return nil, err
	}

	if warehouse == "" {
		warehouse = s.defaultWarehouse
	}
	item, err := s.ledger.Restock(ctx, productID, warehouse, quantity)
	unlock()
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, domain.StockRestocked, "", quantity, item)
	return toStatus(item), nil
}

// SyncStock 对齐外部系统给出的绝对在库量，预占量保持不变。
func (s *InventoryApplicationService) SyncStock(ctx context.Context, productID string, newOnHand int) (*StockStatus, error) {
	ctx, span := s.tracer.Start(ctx, "app.SyncStock")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.ledger.SyncOnHand(ctx, productID, newOnHand)
	unlock()
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, domain.StockSynced, "", newOnHand, item)
	return toStatus(item), nil
}

// LowStock / OutOfStock 供管理端巡检。
func (s *InventoryApplicationService) LowStock(ctx context.Context) ([]*StockStatus, error) {
	items, err := s.ledger.FindLowStock(ctx)
	if err != nil {
		return nil, err
	}
	return s.toStatusListWithAdvice(ctx, items), nil
}

func (s *InventoryApplicationService) OutOfStock(ctx context.Context) ([]*StockStatus, error) {
	items, err := s.ledger.FindOutOfStock(ctx)
	if err != nil {
		return nil, err
	}
	return s.toStatusListWithAdvice(ctx, items), nil
}

// ListItems 分页返回全部库存档案。
func (s *InventoryApplicationService) ListItems(ctx context.Context, page, size int) (*ItemPage, error) {
	items, total, err := s.ledger.List(ctx, page, size)
	if err != nil {
		return nil, err
	}
	out := make([]*StockStatus, 0, len(items))
	for _, item := range items {
		out = append(out, toStatus(item))
	}
	return &ItemPage{Items: out, Total: total, Page: page, Size: size}, nil
}

func (s *InventoryApplicationService) toStatusListWithAdvice(ctx context.Context, items []*domain.InventoryItem) []*StockStatus {
	out := make([]*StockStatus, 0, len(items))
	for _, item := range items {
		status := toStatus(item)
		if s.advisor != nil {
			if advice, err := s.advisor.Evaluate(item); err == nil {
				status.Advice = advice
			} else {
				logger.Ctx(ctx).Warn().Err(err).Str("product_id", item.ProductID).Msg("⚠️ alert rule evaluation failed")
			}
		}
		out = append(out, status)
	}
	return out
}

// reopenClaim 在台账变更失败后把已认领的记录退回 RESERVED。
// 认领和台账要么一起走完，要么一起退回；退回也失败时这笔预占
// 会从对账路径上消失，只能报警等人工修复。调用方持有商品锁。
func (s *InventoryApplicationService) reopenClaim(ctx context.Context, claimed *domain.OrderReservation) {
	if err := s.reservations.Reopen(ctx, claimed.ID); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", claimed.OrderID).Str("product_id", claimed.ProductID).
			Int("quantity", claimed.Quantity).
			Msg("🛑 failed to reopen claimed reservation, reserved quantity may leak")
	}
}

// createFromCatalog 从商品目录拉取初始库存为未知商品建档。
func (s *InventoryApplicationService) createFromCatalog(ctx context.Context, productID string) error {
	if s.catalog == nil {
		return domain.ErrUnknownProduct
	}
	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return errors.Wrap(domain.ErrUnknownProduct, err.Error())
	}
	item, err := domain.NewInventoryItem(productID, s.defaultWarehouse, product.StockQuantity)
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Str("product_id", productID).
		Int("initial_quantity", product.StockQuantity).
		Msg("auto-created inventory item from catalog")
	return s.ledger.Upsert(ctx, item)
}

// afterChange 在每次台账变更后刷新缓存并发布事件。
// 两者都是尽力而为，失败只记日志，不影响已提交的台账。
func (s *InventoryApplicationService) afterChange(ctx context.Context, kind domain.StockChangeKind, orderID string, quantity int, item *domain.InventoryItem) {
	s.refreshCache(ctx, item)
	if s.publisher == nil {
		return
	}
	event := &domain.StockChanged{
		Kind:       kind,
		ProductID:  item.ProductID,
		OrderID:    orderID,
		Quantity:   quantity,
		OnHand:     item.QuantityOnHand,
		Reserved:   item.QuantityReserved,
		Available:  item.QuantityAvailable,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.PublishStockChanged(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("product_id", item.ProductID).Str("kind", string(kind)).
			Msg("⚠️ stock event not published")
	}
}

func (s *InventoryApplicationService) refreshCache(ctx context.Context, item *domain.InventoryItem) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetAvailable(ctx, item.ProductID, item.QuantityAvailable); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("product_id", item.ProductID).Msg("⚠️ stock cache refresh failed")
	}
}
