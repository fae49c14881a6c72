package port

import (
	"context"

	"nexus-mall/internal/service/order/domain"
)

// OrderEventPublisher 是订单事件的出站端口，发送失败不影响下单结果。
type OrderEventPublisher interface {
	// PublishOrderPlaced 发送订单已确认的事件。
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error

	// ReportOrphanedReservation 上报 已扣库存但订单未落库 的不一致，供人工对账。
	ReportOrphanedReservation(ctx context.Context, event domain.ReservationOrphaned) error
}
