// internal/service/inventory/application/reaper.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/service/inventory/port"
)

// TimeoutReaper 周期性扫描超过支付时限的订单并归还其预占库存。
// 支付时限默认 30 分钟，扫描间隔默认 10 分钟——比时限短，
// 一笔超时订单最多晚一个间隔被清理。
type TimeoutReaper struct {
	svc    *InventoryApplicationService
	orders port.OrderWorkflow
	tracer trace.Tracer

	interval        time.Duration
	paymentDeadline time.Duration
	concurrency     int
}

func NewTimeoutReaper(svc *InventoryApplicationService, orders port.OrderWorkflow, tracer trace.Tracer, interval, paymentDeadline time.Duration, concurrency int) *TimeoutReaper {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &TimeoutReaper{
		svc: svc, orders: orders, tracer: tracer,
		interval: interval, paymentDeadline: paymentDeadline, concurrency: concurrency,
	}
}

// Run 阻塞运行清扫循环直到 ctx 取消。启动后立即扫一次，
// 进程重启不会把上个周期欠下的清理再推迟一个间隔。
func (r *TimeoutReaper) Run(ctx context.Context) {
	logger.Ctx(ctx).Info().
		Dur("interval", r.interval).
		Dur("payment_deadline", r.paymentDeadline).
		Msg("✅ timeout reaper started")

	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("timeout reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep 执行一轮清扫。订单之间相互隔离: 单笔订单清理失败只记日志，
// 下一轮会再次捞到它。
func (r *TimeoutReaper) sweep(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "reaper.Sweep")
	defer span.End()
	reaperSweepsTotal.Inc()

	cutoff := time.Now().Add(-r.paymentDeadline)
	span.SetAttributes(attribute.String("cutoff", cutoff.Format(time.RFC3339)))

	pending, err := r.orders.FindPaymentPendingBefore(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list payment-pending orders")
		logger.Ctx(ctx).Error().Err(err).Msg("⚠️ reaper could not query order service, skipping sweep")
		return
	}
	if len(pending) == 0 {
		return
	}
	span.SetAttributes(attribute.Int("orders.pending", len(pending)))
	logger.Ctx(ctx).Info().Int("orders", len(pending)).Msg("reaper sweeping abandoned orders")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, order := range pending {
		order := order
		g.Go(func() error {
			r.reapOrder(gctx, order)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *TimeoutReaper) reapOrder(ctx context.Context, order port.PendingOrder) {
	ctx, span := r.tracer.Start(ctx, "reaper.ReapOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.OrderID))

	result, err := r.svc.RollbackForOrder(ctx, order.OrderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rollback failed")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.OrderID).
			Msg("⚠️ reaper failed to roll back order, will retry next sweep")
		return
	}
	if len(result.Released) == 0 {
		// 没有未决预占: 订单已确认、已释放或根本没占过
		return
	}

	reaperReleasedOrders.Inc()
	logger.Ctx(ctx).Info().
		Str("order_id", order.OrderID).
		Int("lines", len(result.Released)).
		Time("created_at", order.CreatedAt).
		Msg("✅ reaper returned stock for abandoned order")

	if err := r.orders.MarkAbandoned(ctx, order.OrderID); err != nil {
		// 库存已归还，标记失败只影响订单侧展示，重复标记是幂等的
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.OrderID).
			Msg("⚠️ failed to mark order abandoned")
	}
}
