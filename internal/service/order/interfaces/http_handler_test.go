package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-mall/internal/service/order/application"
	"nexus-mall/internal/service/order/domain"
	"nexus-mall/internal/service/order/infrastructure"
	"nexus-mall/internal/service/order/port"
)

// stubInventory 只有 1 号商品，库存 5。
type stubInventory struct {
	stock int
	down  bool
}

func (s *stubInventory) FetchProduct(_ context.Context, id int64) (*port.ProductSnapshot, error) {
	if s.down {
		return nil, &port.GatewayError{Kind: port.FailureUnavailable, Op: "fetch_product", Err: errors.New("connection refused")}
	}
	if id != 1 {
		return nil, &port.GatewayError{Kind: port.FailureNotFound, Op: "fetch_product", StatusCode: 404}
	}
	return &port.ProductSnapshot{ID: 1, Name: "USB-C Hub", UnitPrice: decimal.RequireFromString("49.99"), StockCount: s.stock, InStock: s.stock > 0}, nil
}

func (s *stubInventory) ReserveStock(_ context.Context, id int64, qty int) (*port.ReservationConfirmation, error) {
	if s.stock < qty {
		return nil, &port.GatewayError{Kind: port.FailureInsufficientStock, Op: "reserve_stock", StatusCode: 400,
			Message: fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", s.stock, qty)}
	}
	s.stock -= qty
	return &port.ReservationConfirmation{ProductID: id, Quantity: qty, RemainingStock: s.stock}, nil
}

func newTestServer(t *testing.T, inv *stubInventory) *httptest.Server {
	t.Helper()
	svc := application.NewOrderApplicationService(infrastructure.NewMemoryOrderRepository(), inv,
		noop.NewTracerProvider().Tracer("test"), application.Options{ProcessingTimeout: time.Second})
	mux := http.NewServeMux()
	NewOrderHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCreateOrderEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubInventory{stock: 5})

	status, body := do(t, http.MethodPost, srv.URL+"/api/orders", `{"productId":1,"quantity":2}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Order placed successfully!", body["message"])
	assert.Equal(t, "99.98", body["totalAmount"])
	assert.Equal(t, "CONFIRMED", body["status"])

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"insufficient", `{"productId":1,"quantity":4}`, http.StatusConflict, "InsufficientStock"},
		{"unknown product", `{"productId":7,"quantity":1}`, http.StatusNotFound, "ProductNotFound"},
		{"zero quantity", `{"productId":1,"quantity":0}`, http.StatusBadRequest, "InvalidRequest"},
		{"malformed", `{"productId":`, http.StatusBadRequest, "InvalidRequest"},
		{"unknown field", `{"productId":1,"quantity":1,"coupon":"X"}`, http.StatusBadRequest, "InvalidRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodPost, srv.URL+"/api/orders", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, body["error"])
			assert.NotEmpty(t, body["details"])
		})
	}
}

func TestCreateOrderEndpoint_UpstreamDown(t *testing.T) {
	srv := newTestServer(t, &stubInventory{stock: 5, down: true})

	status, body := do(t, http.MethodPost, srv.URL+"/api/orders", `{"productId":1,"quantity":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "UpstreamUnavailable", body["error"])
}

type brokenAdmission struct{}

func (brokenAdmission) Admit(int64, int) (bool, error) {
	return false, errors.New("no such overload")
}

func TestCreateOrderEndpoint_AdmissionRuleBroken(t *testing.T) {
	svc := application.NewOrderApplicationService(infrastructure.NewMemoryOrderRepository(), &stubInventory{stock: 5},
		noop.NewTracerProvider().Tracer("test"), application.Options{ProcessingTimeout: time.Second, Admission: brokenAdmission{}})
	mux := http.NewServeMux()
	NewOrderHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	// 规则本身出错是服务端问题，不能让客户端以为请求不合法
	status, body := do(t, http.MethodPost, srv.URL+"/api/orders", `{"productId":1,"quantity":1}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "InternalError", body["error"])
}

func TestGetOrderEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubInventory{stock: 5})
	_, created := do(t, http.MethodPost, srv.URL+"/api/orders", `{"productId":1,"quantity":1}`)
	id := int64(created["id"].(float64))

	status, body := do(t, http.MethodGet, fmt.Sprintf("%s/api/orders/%d", srv.URL, id), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created["orderNumber"], body["orderNumber"])
	_, hasMessage := body["message"]
	assert.False(t, hasMessage)

	status, body = do(t, http.MethodGet, srv.URL+"/api/orders/999", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "OrderNotFound", body["error"])

	status, _ = do(t, http.MethodGet, srv.URL+"/api/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := http.Get(srv.URL + "/api/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 499, statusFor(domain.KindCancelled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindPersistence))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindInternal))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.KindInvalidRequest))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
