package flow

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/service/order/port"
)

// ReserveStockHandler 负责在库存服务上扣减库存，这是唯一的权威检查。
type ReserveStockHandler struct {
	NextHandler
}

func (h *ReserveStockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "flow.ReserveStock")
	defer span.End()

	req := orderCtx.Request
	span.SetAttributes(attribute.Int64("product.id", req.ProductID), attribute.Int("quantity", req.Quantity))

	confirmation, err := orderCtx.Inventory.ReserveStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock reservation failed")
		var ge *port.GatewayError
		if errors.As(err, &ge) && ge.OutcomeUnknown {
			// 库存可能已经扣减而订单不会落库，需要人工核对
			span.SetAttributes(attribute.Bool("reservation.outcome_unknown", true))
			logger.Ctx(ctx).Error().Err(err).
				Str("priority", "inconsistency").
				Int64("product_id", req.ProductID).
				Int("quantity", req.Quantity).
				Msg("reservation outcome unknown, stock may have been reduced")
		} else {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", req.ProductID).Int("quantity", req.Quantity).Msg("stock reservation failed")
		}
		return failFromGateway(orderCtx, err)
	}

	orderCtx.Reservation = confirmation
	orderCtx.State = StateStockReserved
	span.SetAttributes(attribute.Int("stock.remaining", confirmation.RemainingStock))
	span.AddEvent("stock reserved")
	return h.executeNext(orderCtx)
}
