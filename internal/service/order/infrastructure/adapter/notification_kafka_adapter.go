package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"nexus-mall/internal/pkg/mq"
	"nexus-mall/internal/service/order/domain"
)

// OrderEventKafkaAdapter 实现了 port.OrderEventPublisher 接口。
// writer 不能设置固定 topic，topic 由每条消息指定。
type OrderEventKafkaAdapter struct {
	writer             mq.MessageWriter
	orderTopic         string
	inconsistencyTopic string
}

// NewOrderEventKafkaAdapter 创建一个新的订单事件生产者适配器。
func NewOrderEventKafkaAdapter(writer mq.MessageWriter, orderTopic, inconsistencyTopic string) *OrderEventKafkaAdapter {
	return &OrderEventKafkaAdapter{writer: writer, orderTopic: orderTopic, inconsistencyTopic: inconsistencyTopic}
}

// PublishOrderPlaced 以订单号为 key 发送，同一订单的消息落在同一分区。
func (a *OrderEventKafkaAdapter) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order placed event: %w", err)
	}
	// mq.ProduceMessage 会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, a.orderTopic, []byte(event.OrderNumber), eventBytes)
}

// ReportOrphanedReservation 以商品 ID 为 key 发送，方便按商品对账。
func (a *OrderEventKafkaAdapter) ReportOrphanedReservation(ctx context.Context, event domain.ReservationOrphaned) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal orphaned reservation event: %w", err)
	}
	return mq.ProduceMessage(ctx, a.writer, a.inconsistencyTopic, []byte(strconv.FormatInt(event.ProductID, 10)), eventBytes)
}
