package flow

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/service/order/domain"
)

// ProductCheckHandler 读取商品快照并做一次预检。
// 预检只用于尽早拒绝明显不满足的请求，是否真的有货以预占结果为准。
type ProductCheckHandler struct {
	NextHandler
}

func (h *ProductCheckHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "flow.ProductCheck")
	defer span.End()

	req := orderCtx.Request
	product, err := orderCtx.Inventory.FetchProduct(ctx, req.ProductID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch product failed")
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", req.ProductID).Msg("product check failed")
		return failFromGateway(orderCtx, err)
	}
	span.SetAttributes(attribute.Int("stock.observed", product.StockCount))

	if !product.InStock || product.StockCount < req.Quantity {
		span.SetStatus(codes.Error, "insufficient stock (advisory)")
		return orderCtx.Fail(domain.KindInsufficientStock,
			fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", product.StockCount, req.Quantity), nil)
	}

	orderCtx.Product = product
	orderCtx.State = StateProductChecked
	span.AddEvent("product checked")
	return h.executeNext(orderCtx)
}
