package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-mall/internal/pkg/lock"
	"nexus-mall/internal/service/inventory/application"
	"nexus-mall/internal/service/inventory/infrastructure"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := infrastructure.NewMemoryProductRepository()
	_, err := application.SeedSampleProducts(context.Background(), repo)
	require.NoError(t, err)

	ledger := application.NewStockLedger(repo, lock.NewKeyedMutex(0), nil, noop.NewTracerProvider().Tracer("test"), nil)
	mux := http.NewServeMux()
	NewInventoryHandler(ledger).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postReduce(t *testing.T, srv *httptest.Server, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/products/reduce-stock", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestReduceStock(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOK     bool
		wantMsg    string
	}{
		{"success", `{"productId":1,"quantity":5}`, http.StatusOK, true, "Stock reduced successfully"},
		{"insufficient", `{"productId":1,"quantity":11}`, http.StatusBadRequest, false, "Insufficient stock. Available: 10, Requested: 11"},
		{"not found", `{"productId":99,"quantity":1}`, http.StatusNotFound, false, "Product not found with id: 99"},
		{"zero quantity", `{"productId":1,"quantity":0}`, http.StatusBadRequest, false, "quantity must be positive"},
		{"bad product id", `{"productId":0,"quantity":1}`, http.StatusBadRequest, false, "productId must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := postReduce(t, srv, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantOK, out["success"])
			assert.Equal(t, tt.wantMsg, out["message"])
		})
	}
}

func TestReduceStock_RemainingStockZeroIsRendered(t *testing.T) {
	srv := newTestServer(t)
	status, out := postReduce(t, srv, `{"productId":5,"quantity":20}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), out["remainingStock"])
}

func TestReduceStock_MalformedBody(t *testing.T) {
	srv := newTestServer(t)
	status, out := postReduce(t, srv, `{"productId":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, out["success"])
}

func TestGetProduct(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/products/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p application.ProductResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Laptop", p.Name)
	assert.Equal(t, "1299.99", p.Price.StringFixed(2))
	assert.Equal(t, 15, p.StockQuantity)
	assert.True(t, p.InStock)

	resp404, err := http.Get(srv.URL + "/api/products/404")
	require.NoError(t, err)
	resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)

	respBad, err := http.Get(srv.URL + "/api/products/abc")
	require.NoError(t, err)
	respBad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, respBad.StatusCode)
}

func TestListProductsAndAvailability(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	var list []application.ProductResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Len(t, list, 6)

	resp, err = http.Get(srv.URL + "/api/products/2/availability")
	require.NoError(t, err)
	var av application.AvailabilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&av))
	resp.Body.Close()
	assert.Equal(t, application.AvailabilityResponse{ProductID: 2, StockCount: 50, Exists: true}, av)

	resp, err = http.Get(srv.URL + "/api/products/42/availability")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&av))
	resp.Body.Close()
	assert.False(t, av.Exists)
}
