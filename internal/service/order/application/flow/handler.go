// Package flow 把下单协议拆成一条责任链：
// 校验 -> 查询商品 -> 预占库存 -> 订单落库 -> 发送事件。
// 任一步骤失败立即中断，不做补偿。
package flow

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"nexus-mall/internal/service/order/domain"
	"nexus-mall/internal/service/order/port"
)

// State 是一次下单在协议中的位置。
type State string

const (
	StateStarted        State = "Started"
	StateProductChecked State = "ProductChecked"
	StateStockReserved  State = "StockReserved"
	StatePersisted      State = "Persisted"
	StateFailed         State = "Failed"
)

// Request 是经过解码的下单请求。
type Request struct {
	ProductID int64
	Quantity  int
}

// OrderContext 在责任链中传递一次下单的全部数据。
type OrderContext struct {
	Ctx     context.Context
	Tracer  trace.Tracer
	Request Request

	// 依赖出站端口
	Inventory port.InventoryGateway
	Publisher port.OrderEventPublisher // 可为 nil

	State       State
	FailedKind  domain.Kind
	Product     *port.ProductSnapshot
	Reservation *port.ReservationConfirmation
	Order       *domain.Order
}

// Fail 把上下文标记为失败并返回对应的领域错误。
func (c *OrderContext) Fail(kind domain.Kind, message string, cause error) error {
	c.State = StateFailed
	c.FailedKind = kind
	return domain.NewError(kind, message, cause)
}

// Handler 和 NextHandler 组成责任链。
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// failFromGateway 把库存调用的失败翻译成下单失败。
func failFromGateway(orderCtx *OrderContext, err error) error {
	var ge *port.GatewayError
	if !errors.As(err, &ge) {
		return orderCtx.Fail(domain.KindUpstreamUnavailable, "inventory call failed", err)
	}
	switch ge.Kind {
	case port.FailureNotFound:
		return orderCtx.Fail(domain.KindProductNotFound, "product not found", ge)
	case port.FailureInsufficientStock:
		return orderCtx.Fail(domain.KindInsufficientStock, ge.Message, ge)
	case port.FailureCancelled:
		return orderCtx.Fail(domain.KindCancelled, "request cancelled during "+ge.Op, ge)
	default:
		return orderCtx.Fail(domain.KindUpstreamUnavailable, "inventory service unavailable", ge)
	}
}
