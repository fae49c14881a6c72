package flow

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/pkg/metrics"
	"nexus-mall/internal/pkg/tracing"
	"nexus-mall/internal/service/order/domain"
)

const (
	// 订单号冲突时最多重新生成的次数
	maxOrderNumberAttempts = 3
	reportTimeout          = 2 * time.Second
)

// PersistOrderHandler 负责在预占成功后落库。
// 此时库存已经扣减，任何失败都会留下一笔没有订单的预占，只记录并上报，不回滚库存。
type PersistOrderHandler struct {
	NextHandler
	repo        domain.OrderRepository
	metrics     *metrics.OrderMetrics
	newOrderNum func() string
}

func NewPersistOrderHandler(repo domain.OrderRepository, m *metrics.OrderMetrics) *PersistOrderHandler {
	return &PersistOrderHandler{repo: repo, metrics: m, newOrderNum: domain.GenerateOrderNumber}
}

func (h *PersistOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "flow.PersistOrder")
	defer span.End()

	// 1. 调用方已经放弃：不落库，但库存已扣
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled before persisting")
		h.reportOrphan(orderCtx, "", err)
		return orderCtx.Fail(domain.KindCancelled, "request cancelled after stock was reserved", err)
	}

	// 2. 用预占时读到的名称与价格构造订单行
	line, err := domain.NewOrderLine(orderCtx.Request.ProductID, orderCtx.Product.Name, orderCtx.Request.Quantity, orderCtx.Product.UnitPrice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid order line")
		h.reportOrphan(orderCtx, "", err)
		return orderCtx.Fail(domain.KindPersistence, "could not build order", err)
	}

	var order *domain.Order
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order, err = domain.NewOrder(h.newOrderNum(), []domain.OrderLine{line})
		if err != nil {
			break
		}
		err = h.repo.Save(ctx, order)
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			break
		}
		span.AddEvent("order number collision, regenerating")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save order failed")
		orderNumber := ""
		if order != nil {
			orderNumber = order.OrderNumber
		}
		h.reportOrphan(orderCtx, orderNumber, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return orderCtx.Fail(domain.KindCancelled, "request cancelled while saving order", err)
		}
		return orderCtx.Fail(domain.KindPersistence, "failed to save order after stock was reserved", err)
	}

	orderCtx.Order = order
	orderCtx.State = StatePersisted
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.number", order.OrderNumber))
	span.AddEvent("order persisted")
	logger.Ctx(ctx).Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order confirmed")

	return h.executeNext(orderCtx)
}

// reportOrphan 记录一笔 已扣库存、无订单 的不一致：错误日志 + 指标 + 事件（尽力而为）。
func (h *PersistOrderHandler) reportOrphan(orderCtx *OrderContext, orderNumber string, cause error) {
	ctx := orderCtx.Ctx
	remaining := 0
	if orderCtx.Reservation != nil {
		remaining = orderCtx.Reservation.RemainingStock
	}

	logger.Ctx(ctx).Error().
		Err(cause).
		Str("priority", "inconsistency").
		Int64("product_id", orderCtx.Request.ProductID).
		Int("quantity", orderCtx.Request.Quantity).
		Str("order_number", orderNumber).
		Msg("stock reserved but order not persisted, manual reconciliation required")
	h.metrics.IncInconsistency()

	if orderCtx.Publisher == nil {
		return
	}
	// 原请求可能已经取消，上报使用独立的超时
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	event := domain.ReservationOrphaned{
		ProductID:      orderCtx.Request.ProductID,
		Quantity:       orderCtx.Request.Quantity,
		RemainingStock: remaining,
		OrderNumber:    orderNumber,
		Reason:         cause.Error(),
		TraceID:        tracing.GetTraceIDFromContext(ctx),
		DetectedAt:     time.Now().UTC(),
	}
	if err := orderCtx.Publisher.ReportOrphanedReservation(reportCtx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("priority", "inconsistency").Msg("failed to publish orphaned reservation report")
	}
}
