package flow

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/service/order/domain"
)

// Admission 判断一个请求是否允许进入下单流程。
type Admission interface {
	Admit(productID int64, quantity int) (bool, error)
}

// ValidateHandler 负责 Started 状态的入参校验。
type ValidateHandler struct {
	NextHandler
	admission Admission // 可为 nil
}

func NewValidateHandler(admission Admission) *ValidateHandler {
	return &ValidateHandler{admission: admission}
}

func (h *ValidateHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "flow.Validate")
	defer span.End()

	req := orderCtx.Request
	span.SetAttributes(attribute.Int64("product.id", req.ProductID), attribute.Int("quantity", req.Quantity))
	orderCtx.State = StateStarted

	if req.ProductID <= 0 {
		span.SetStatus(codes.Error, "invalid product id")
		return orderCtx.Fail(domain.KindInvalidRequest, "productId must be positive", nil)
	}
	if req.Quantity <= 0 {
		span.SetStatus(codes.Error, "invalid quantity")
		return orderCtx.Fail(domain.KindInvalidRequest, "quantity must be positive", nil)
	}

	if h.admission != nil {
		ok, err := h.admission.Admit(req.ProductID, req.Quantity)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "admission rule failed")
			logger.Ctx(ctx).Error().Err(err).Msg("admission rule evaluation failed")
			return orderCtx.Fail(domain.KindInternal, "admission rule could not be evaluated", err)
		}
		if !ok {
			span.SetStatus(codes.Error, "rejected by admission rule")
			return orderCtx.Fail(domain.KindInvalidRequest,
				fmt.Sprintf("order for product %d with quantity %d is not allowed", req.ProductID, req.Quantity), nil)
		}
	}

	return h.executeNext(orderCtx)
}
