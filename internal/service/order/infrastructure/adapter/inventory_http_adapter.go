package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"nexus-mall/internal/pkg/httpclient"
	"nexus-mall/internal/pkg/metrics"
	"nexus-mall/internal/service/order/port"
)

const (
	opFetchProduct = "fetch_product"
	opReserveStock = "reserve_stock"

	reduceStockPath = "/api/products/reduce-stock"
)

// productResponse / stockRequest / stockResponse 是库存服务的 wire 格式。
type productResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	InStock       bool            `json:"inStock"`
}

type stockRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type stockResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RemainingStock *int   `json:"remainingStock"`
}

// InventoryHTTPAdapter 实现了 port.InventoryGateway 接口。
// 每次调用有独立的超时；所有失败都被归入 port.FailureKind 之一。
type InventoryHTTPAdapter struct {
	client   *httpclient.Client
	resolver httpclient.Resolver
	timeout  time.Duration
	metrics  *metrics.OrderMetrics
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client, resolver httpclient.Resolver, timeout time.Duration, m *metrics.OrderMetrics) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, resolver: resolver, timeout: timeout, metrics: m}
}

func (a *InventoryHTTPAdapter) FetchProduct(ctx context.Context, productID int64) (*port.ProductSnapshot, error) {
	start := time.Now()
	var resp productResponse
	err := a.call(ctx, opFetchProduct, http.MethodGet, fmt.Sprintf("/api/products/%d", productID), nil, &resp)
	if err == nil && (resp.ID != productID || resp.StockQuantity < 0 || resp.Price.IsNegative()) {
		err = &port.GatewayError{Kind: port.FailureUnavailable, Op: opFetchProduct, Message: "malformed product response"}
	}
	a.observe(opFetchProduct, err, start)
	if err != nil {
		return nil, err
	}
	return &port.ProductSnapshot{
		ID:         resp.ID,
		Name:       resp.Name,
		UnitPrice:  resp.Price,
		StockCount: resp.StockQuantity,
		InStock:    resp.InStock,
	}, nil
}

func (a *InventoryHTTPAdapter) ReserveStock(ctx context.Context, productID int64, quantity int) (*port.ReservationConfirmation, error) {
	start := time.Now()
	var resp stockResponse
	err := a.call(ctx, opReserveStock, http.MethodPost, reduceStockPath, stockRequest{ProductID: productID, Quantity: quantity}, &resp)
	if err == nil && !resp.Success {
		// 2xx 却没有确认，按协议异常处理
		err = &port.GatewayError{Kind: port.FailureUnavailable, Op: opReserveStock, Message: "reservation not confirmed: " + resp.Message, OutcomeUnknown: true}
	}
	a.observe(opReserveStock, err, start)
	if err != nil {
		return nil, err
	}

	remaining := 0
	if resp.RemainingStock != nil {
		remaining = *resp.RemainingStock
	}
	return &port.ReservationConfirmation{ProductID: productID, Quantity: quantity, RemainingStock: remaining}, nil
}

// call 在独立的超时内完成一次调用，并把任何失败翻译成 *port.GatewayError。
func (a *InventoryHTTPAdapter) call(ctx context.Context, op, method, path string, body, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	baseURL, err := a.resolver.BaseURL(callCtx)
	if err != nil {
		return a.classify(ctx, op, err)
	}
	if err := a.client.DoJSON(callCtx, method, baseURL+path, body, out); err != nil {
		return a.classify(ctx, op, err)
	}
	return nil
}

// classify 是完备的：任何错误都会落到 NotFound / InsufficientStock / Unavailable / Cancelled 之一。
func (a *InventoryHTTPAdapter) classify(parent context.Context, op string, err error) *port.GatewayError {
	// 调用方自己的 context 结束才算取消；单次调用超时属于下游不可用
	if parent.Err() != nil {
		return &port.GatewayError{Kind: port.FailureCancelled, Op: op, Err: parent.Err()}
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		ge := &port.GatewayError{Kind: port.FailureUnavailable, Op: op, StatusCode: se.StatusCode, Message: upstreamMessage(se.Body)}
		switch se.StatusCode {
		case http.StatusNotFound:
			ge.Kind = port.FailureNotFound
		case http.StatusBadRequest, http.StatusConflict, http.StatusPreconditionFailed, http.StatusUnprocessableEntity:
			if op == opReserveStock {
				ge.Kind = port.FailureInsufficientStock
			}
		}
		return ge
	}

	var de *httpclient.DecodeError
	if errors.As(err, &de) {
		// 2xx 已经收到，扣减写操作很可能已经生效
		return &port.GatewayError{Kind: port.FailureUnavailable, Op: op, Message: "malformed response", Err: err, OutcomeUnknown: op == opReserveStock}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &port.GatewayError{Kind: port.FailureUnavailable, Op: op, Message: "timeout", Err: err, OutcomeUnknown: op == opReserveStock}
	}
	return &port.GatewayError{Kind: port.FailureUnavailable, Op: op, Err: err}
}

func (a *InventoryHTTPAdapter) observe(op string, err error, start time.Time) {
	outcome := "ok"
	var ge *port.GatewayError
	if errors.As(err, &ge) {
		outcome = string(ge.Kind)
	}
	a.metrics.ObserveInventoryCall(op, outcome, time.Since(start))
}

// upstreamMessage 取出库存服务错误响应中的 message / details 字段。
func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Details
}
