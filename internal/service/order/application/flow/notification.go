package flow

import (
	"go.opentelemetry.io/otel/attribute"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/service/order/domain"
)

// NotificationHandler 是责任链的最后一步，发送 OrderPlaced 事件。
type NotificationHandler struct {
	NextHandler
	topic string
}

func NewNotificationHandler(topic string) *NotificationHandler {
	return &NotificationHandler{topic: topic}
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	if orderCtx.Publisher == nil || orderCtx.Order == nil {
		return h.executeNext(orderCtx)
	}

	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "flow.Notification")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.topic", h.topic),
	)

	// 订单已经落库，发送失败只记录，不影响下单结果
	if err := orderCtx.Publisher.PublishOrderPlaced(ctx, domain.NewOrderPlaced(orderCtx.Order)); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_number", orderCtx.Order.OrderNumber).Msg("failed to publish order placed event")
		span.RecordError(err)
	} else {
		span.AddEvent("order placed event published")
	}

	return h.executeNext(orderCtx)
}
