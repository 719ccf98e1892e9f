// internal/service/inventory/interfaces/http_handler_test.go
package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/domain"
	"stockpile/internal/service/inventory/infrastructure/adapter"
	"stockpile/internal/service/inventory/infrastructure/memory"
)

func newTestServer(t *testing.T, seed map[string]int) *httptest.Server {
	t.Helper()
	ledger := memory.NewLedgerRepository()
	for productID, qty := range seed {
		item, err := domain.NewInventoryItem(productID, "Main Warehouse", qty)
		require.NoError(t, err)
		require.NoError(t, ledger.Upsert(context.Background(), item))
	}

	svc := application.NewInventoryApplicationService(
		ledger, memory.NewReservationRepository(), adapter.NewKeyedMutexLocker(),
		nil, nil, nil, nil, otel.Tracer("test"),
		false, "Main Warehouse",
	)
	mux := http.NewServeMux()
	NewInventoryHandler(svc).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestReserveBatchEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 100, "p2": 50})

	resp := postJSON(t, server.URL+"/api/inventory/reserve-batch", application.BatchRequest{
		OrderID: "order-1",
		Items: []application.ReservationLine{
			{ProductID: "p1", Quantity: 10},
			{ProductID: "p2", Quantity: 5},
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "RESERVED", body["result"])
}

func TestReserveEndpoint_JSONBody(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 10})

	resp := postJSON(t, server.URL+"/api/inventory/reserve", map[string]interface{}{
		"productId": "p1",
		"quantity":  4,
		"orderId":   "order-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	statusResp, err := http.Get(server.URL + "/api/inventory/status?productId=p1")
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var status application.StockStatus
	decode(t, statusResp, &status)
	assert.Equal(t, 4, status.QuantityReserved)
	assert.Equal(t, 6, status.QuantityAvailable)
}

func TestReserveEndpoint_MissingOrderID(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 10})

	// 缺 orderId 是客户端错误，不是服务端错误
	resp := postJSON(t, server.URL+"/api/inventory/reserve", map[string]interface{}{
		"productId": "p1",
		"quantity":  1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRestockEndpoint_JSONBody(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 10})

	resp := postJSON(t, server.URL+"/api/inventory/restock", map[string]interface{}{
		"productId": "p1",
		"quantity":  20,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status application.StockStatus
	decode(t, resp, &status)
	assert.Equal(t, 30, status.QuantityOnHand)
}

func TestReserveEndpoint_InsufficientStock(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 3})

	resp := postJSON(t, server.URL+"/api/inventory/reserve?orderId=order-1&productId=p1&quantity=5", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["error"], "insufficient stock")
}

func TestReserveEndpoint_UnknownProduct(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postJSON(t, server.URL+"/api/inventory/reserve?orderId=order-1&productId=ghost&quantity=1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReserveConfirmStatusFlow(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 100})

	resp := postJSON(t, server.URL+"/api/inventory/reserve?orderId=order-1&productId=p1&quantity=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, server.URL+"/api/inventory/confirm?orderId=order-1&productId=p1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(server.URL + "/api/inventory/status?productId=p1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status application.StockStatus
	decode(t, resp, &status)
	assert.Equal(t, 90, status.QuantityOnHand)
	assert.Equal(t, 0, status.QuantityReserved)
	assert.Equal(t, 90, status.QuantityAvailable)
	assert.False(t, status.IsOutOfStock)
	assert.False(t, status.NeedsReorder)
}

func TestRollbackEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 100, "p2": 50})

	postJSON(t, server.URL+"/api/inventory/reserve-batch", application.BatchRequest{
		OrderID: "order-1",
		Items: []application.ReservationLine{
			{ProductID: "p1", Quantity: 10},
			{ProductID: "p2", Quantity: 5},
		},
	})

	resp := postJSON(t, server.URL+"/api/inventory/rollback?orderId=order-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result application.RollbackResult
	decode(t, resp, &result)
	assert.Len(t, result.Released, 2)

	// 回滚缺 orderId 是客户端错误
	resp = postJSON(t, server.URL+"/api/inventory/rollback", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckStockEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 10})

	resp, err := http.Get(server.URL + "/api/inventory/check-stock?productId=p1&quantity=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, true, body["inStock"])

	resp, err = http.Get(server.URL + "/api/inventory/check-stock?productId=p1&quantity=11")
	require.NoError(t, err)
	defer resp.Body.Close()
	decode(t, resp, &body)
	assert.Equal(t, false, body["inStock"])
}

func TestCheckStockEndpoint_InvalidQuantity(t *testing.T) {
	server := newTestServer(t, map[string]int{"p1": 10})

	// 缺失或非数字的 quantity 不默认成 1，直接拒绝
	for _, url := range []string{
		"/api/inventory/check-stock?productId=p1",
		"/api/inventory/check-stock?productId=p1&quantity=abc",
		"/api/inventory/check-stock?productId=p1&quantity=-2",
	} {
		resp, err := http.Get(server.URL + url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, url)
	}
}

func TestCreateItemAndListEndpoints(t *testing.T) {
	server := newTestServer(t, nil)

	resp := postJSON(t, server.URL+"/api/inventory/create-item", map[string]interface{}{
		"productId":       "p1",
		"initialQuantity": 25,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// 重复建档被拒
	resp = postJSON(t, server.URL+"/api/inventory/create-item", map[string]interface{}{
		"productId":       "p1",
		"initialQuantity": 5,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	listResp, err := http.Get(server.URL + "/api/inventory/items?page=1&size=10")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var page application.ItemPage
	decode(t, listResp, &page)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p1", page.Items[0].ProductID)
}

func TestLowStockEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]int{"p-low": 5, "p-full": 500})

	resp, err := http.Get(server.URL + "/api/inventory/low-stock")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Items []application.StockStatus `json:"items"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "p-low", body.Items[0].ProductID)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, nil)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
