package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"nexus-mall/internal/pkg/httpclient"
	"nexus-mall/internal/pkg/lock"
	invapp "nexus-mall/internal/service/inventory/application"
	invdomain "nexus-mall/internal/service/inventory/domain"
	invinfra "nexus-mall/internal/service/inventory/infrastructure"
	invhttp "nexus-mall/internal/service/inventory/interfaces"
	"nexus-mall/internal/service/order/domain"
	"nexus-mall/internal/service/order/infrastructure"
	"nexus-mall/internal/service/order/infrastructure/adapter"
)

// 两个服务通过真实的 HTTP 连接起来：库存账本 -> httptest -> 适配器 -> 下单流程。
type stack struct {
	svc      *OrderApplicationService
	products *invinfra.MemoryProductRepository
	orders   *infrastructure.MemoryOrderRepository
	srv      *httptest.Server
}

func newStack(t *testing.T, stock int) *stack {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")

	products := invinfra.NewMemoryProductRepository()
	require.NoError(t, products.SaveAll(context.Background(), []*invdomain.Product{{
		Name:          "Mechanical Keyboard",
		Price:         decimal.RequireFromString("89.99"),
		StockQuantity: stock,
	}}))
	ledger := invapp.NewStockLedger(products, lock.NewKeyedMutex(0), nil, tracer, nil)
	mux := http.NewServeMux()
	invhttp.NewInventoryHandler(ledger).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gateway := adapter.NewInventoryHTTPAdapter(httpclient.NewClient(tracer), httpclient.StaticResolver(srv.URL), 2*time.Second, nil)
	orders := infrastructure.NewMemoryOrderRepository()
	svc := NewOrderApplicationService(orders, gateway, tracer, Options{ProcessingTimeout: 5 * time.Second})
	return &stack{svc: svc, products: products, orders: orders, srv: srv}
}

func (s *stack) stock(t *testing.T) int {
	t.Helper()
	p, err := s.products.FindByID(context.Background(), 1)
	require.NoError(t, err)
	return p.StockQuantity
}

func (s *stack) orderCount(t *testing.T) int {
	t.Helper()
	all, err := s.orders.FindAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestComponent_OrderReducesStock(t *testing.T) {
	s := newStack(t, 10)

	resp, err := s.svc.CreateOrder(context.Background(), &CreateOrderRequest{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, s.stock(t))
	assert.Equal(t, "269.97", resp.TotalAmount.StringFixed(2))
}

func TestComponent_InsufficientStock(t *testing.T) {
	s := newStack(t, 2)

	_, err := s.svc.CreateOrder(context.Background(), &CreateOrderRequest{ProductID: 1, Quantity: 5})
	assert.Equal(t, domain.KindInsufficientStock, domain.KindOf(err))
	assert.Equal(t, 2, s.stock(t))
	assert.Zero(t, s.orderCount(t))
}

func TestComponent_UnknownProduct(t *testing.T) {
	s := newStack(t, 10)

	_, err := s.svc.CreateOrder(context.Background(), &CreateOrderRequest{ProductID: 42, Quantity: 1})
	assert.Equal(t, domain.KindProductNotFound, domain.KindOf(err))
}

func TestComponent_InventoryDown(t *testing.T) {
	s := newStack(t, 10)
	s.srv.Close()

	_, err := s.svc.CreateOrder(context.Background(), &CreateOrderRequest{ProductID: 1, Quantity: 1})
	assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	assert.Zero(t, s.orderCount(t))
	assert.Equal(t, 10, s.stock(t))
}

func TestComponent_ConcurrentOrdersNeverOversell(t *testing.T) {
	const stock, workers = 25, 40
	s := newStack(t, stock)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.CreateOrder(context.Background(), &CreateOrderRequest{ProductID: 1, Quantity: 2})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				confirmed++
			} else if domain.KindOf(err) == domain.KindInsufficientStock {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock/2, confirmed)
	assert.Equal(t, workers-stock/2, rejected)
	assert.Equal(t, stock-2*confirmed, s.stock(t))
	assert.Equal(t, confirmed, s.orderCount(t))
}
