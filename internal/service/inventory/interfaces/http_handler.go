// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/domain"
)

const serviceName = "inventory-service"

var tracer = otel.Tracer(serviceName)

// InventoryHandler 封装了库存服务的 HTTP 处理器。
type InventoryHandler struct {
	service *application.InventoryApplicationService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(service *application.InventoryApplicationService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/inventory/reserve", h.reserveHandler)
	mux.HandleFunc("/api/inventory/reserve-batch", h.reserveBatchHandler)
	mux.HandleFunc("/api/inventory/confirm", h.confirmHandler)
	mux.HandleFunc("/api/inventory/confirm-batch", h.confirmBatchHandler)
	mux.HandleFunc("/api/inventory/release", h.releaseHandler)
	mux.HandleFunc("/api/inventory/release-batch", h.releaseBatchHandler)
	mux.HandleFunc("/api/inventory/rollback", h.rollbackHandler)

	mux.HandleFunc("/api/inventory/check-stock", h.checkStockHandler)
	mux.HandleFunc("/api/inventory/stock-quantity", h.stockQuantityHandler)
	mux.HandleFunc("/api/inventory/status", h.statusHandler)

	mux.HandleFunc("/api/inventory/create-item", h.createItemHandler)
	mux.HandleFunc("/api/inventory/restock", h.restockHandler)
	mux.HandleFunc("/api/inventory/sync-stock", h.syncStockHandler)
	mux.HandleFunc("/api/inventory/low-stock", h.lowStockHandler)
	mux.HandleFunc("/api/inventory/out-of-stock", h.outOfStockHandler)
	mux.HandleFunc("/api/inventory/items", h.listItemsHandler)
}

// lineRequest 是单行操作的请求体。Body 为空时回落到 query 参数，
// 兼容只会拼 URL 的老调用方。
type lineRequest struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func decodeLineRequest(r *http.Request) lineRequest {
	var req lineRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	q := r.URL.Query()
	if req.OrderID == "" {
		req.OrderID = q.Get("orderId")
	}
	if req.ProductID == "" {
		req.ProductID = q.Get("productId")
	}
	if req.Quantity == 0 {
		req.Quantity, _ = strconv.Atoi(q.Get("quantity"))
	}
	return req
}

func (h *InventoryHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Reserve")
	defer span.End()

	req := decodeLineRequest(r)
	if err := h.service.Reserve(ctx, req.OrderID, req.ProductID, req.Quantity); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "RESERVED"})
}

func (h *InventoryHandler) reserveBatchHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.ReserveBatch")
	defer span.End()

	var req application.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.ReserveBatch(ctx, req.OrderID, req.Items); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "RESERVED", "orderId": req.OrderID})
}

func (h *InventoryHandler) confirmHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Confirm")
	defer span.End()

	req := decodeLineRequest(r)
	if err := h.service.Confirm(ctx, req.OrderID, req.ProductID); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "CONFIRMED"})
}

func (h *InventoryHandler) confirmBatchHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.ConfirmBatch")
	defer span.End()

	var req application.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.ConfirmBatch(ctx, req.OrderID, req.Items); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "CONFIRMED", "orderId": req.OrderID})
}

func (h *InventoryHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Release")
	defer span.End()

	req := decodeLineRequest(r)
	if err := h.service.Release(ctx, req.OrderID, req.ProductID); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "RELEASED"})
}

func (h *InventoryHandler) releaseBatchHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.ReleaseBatch")
	defer span.End()

	var req application.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.ReleaseBatch(ctx, req.OrderID, req.Items); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "RELEASED", "orderId": req.OrderID})
}

func (h *InventoryHandler) rollbackHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.RollbackForOrder")
	defer span.End()

	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}
	result, err := h.service.RollbackForOrder(ctx, orderID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *InventoryHandler) checkStockHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.CheckStock")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity <= 0 {
		// 缺失、非数字、非正数统一按非法数量拒绝
		writeError(ctx, w, domain.ErrInvalidQuantity)
		return
	}

	inStock, err := h.service.CheckStock(ctx, productID, quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"productId": productID, "inStock": inStock})
}

func (h *InventoryHandler) stockQuantityHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.StockQuantity")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	available, err := h.service.StockQuantity(ctx, productID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"productId": productID, "available": available})
}

func (h *InventoryHandler) statusHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Status")
	defer span.End()

	status, err := h.service.Status(ctx, r.URL.Query().Get("productId"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *InventoryHandler) createItemHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.CreateItem")
	defer span.End()

	var req struct {
		ProductID         string `json:"productId"`
		WarehouseLocation string `json:"warehouseLocation"`
		InitialQuantity   int    `json:"initialQuantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status, err := h.service.CreateItem(ctx, req.ProductID, req.WarehouseLocation, req.InitialQuantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (h *InventoryHandler) restockHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.Restock")
	defer span.End()

	var req struct {
		ProductID         string `json:"productId"`
		WarehouseLocation string `json:"warehouseLocation"`
		Quantity          int    `json:"quantity"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	q := r.URL.Query()
	if req.ProductID == "" {
		req.ProductID = q.Get("productId")
	}
	if req.WarehouseLocation == "" {
		req.WarehouseLocation = q.Get("warehouse")
	}
	if req.Quantity == 0 {
		req.Quantity, _ = strconv.Atoi(q.Get("quantity"))
	}

	status, err := h.service.Restock(ctx, req.ProductID, req.WarehouseLocation, req.Quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *InventoryHandler) syncStockHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.SyncStock")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		http.Error(w, "quantity is required", http.StatusBadRequest)
		return
	}
	status, err := h.service.SyncStock(ctx, productID, quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *InventoryHandler) lowStockHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.LowStock")
	defer span.End()

	items, err := h.service.LowStock(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *InventoryHandler) outOfStockHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.OutOfStock")
	defer span.End()

	items, err := h.service.OutOfStock(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *InventoryHandler) listItemsHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, "inventory-service.ListItems")
	defer span.End()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	result, err := h.service.ListItems(ctx, page, size)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError 把领域错误映射为合适的 HTTP 状态码。
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsInsufficientStock(err):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnknownProduct):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrExceedsReserved):
		status = http.StatusBadRequest
	case errors.Is(err, application.ErrOrderRequired), errors.Is(err, application.ErrEmptyBatch):
		status = http.StatusBadRequest
	case errors.Is(err, application.ErrItemExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Msg("inventory request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Logger.Error().Err(err).Msg("failed to encode response")
	}
}
