// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/pkg/metrics"
	"nexus-mall/internal/service/order/application/flow"
	"nexus-mall/internal/service/order/domain"
	"nexus-mall/internal/service/order/port"
)

// OrderApplicationService 只关注业务流程编排。
type OrderApplicationService struct {
	orderRepo         domain.OrderRepository
	inventory         port.InventoryGateway
	publisher         port.OrderEventPublisher
	admission         flow.Admission
	processingTimeout time.Duration
	eventsTopic       string
	tracer            trace.Tracer
	metrics           *metrics.OrderMetrics
}

// Options 汇总 OrderApplicationService 的可选依赖。
type Options struct {
	Publisher         port.OrderEventPublisher // nil 表示不发送事件
	Admission         flow.Admission           // nil 表示不做额外准入校验
	ProcessingTimeout time.Duration
	EventsTopic       string
	Metrics           *metrics.OrderMetrics
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, inventory port.InventoryGateway, tracer trace.Tracer, opts Options) *OrderApplicationService {
	if opts.ProcessingTimeout <= 0 {
		opts.ProcessingTimeout = 10 * time.Second
	}
	return &OrderApplicationService{
		orderRepo:         orderRepo,
		inventory:         inventory,
		publisher:         opts.Publisher,
		admission:         opts.Admission,
		processingTimeout: opts.ProcessingTimeout,
		eventsTopic:       opts.EventsTopic,
		tracer:            tracer,
		metrics:           opts.Metrics,
	}
}

// CreateOrder 执行完整的下单协议：校验、查询商品、预占库存、落库、发送事件。
//
// 该操作不是幂等的：每次成功调用都会扣减一次库存。返回 PersistenceError 或者
// 在预占之后返回 Cancelled 时，库存可能已经扣减而订单不存在，调用方重试会再次扣减。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder", trace.WithAttributes(
		attribute.Int64("product.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	// 为每个订单的处理流程设置独立的超时时间
	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	orderCtx := &flow.OrderContext{
		Ctx:       processingCtx,
		Tracer:    s.tracer,
		Request:   flow.Request{ProductID: req.ProductID, Quantity: req.Quantity},
		Inventory: s.inventory,
		Publisher: s.publisher,
	}

	logger.Ctx(ctx).Info().Int64("product_id", req.ProductID).Int("quantity", req.Quantity).Msg("order creation started")

	if err := s.buildChain().Handle(orderCtx); err != nil {
		kind := domain.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		span.SetAttributes(attribute.String("order.failure_kind", string(kind)), attribute.String("order.state", string(orderCtx.State)))
		s.metrics.ObserveCreation(string(kind))

		evt := logger.Ctx(ctx).Warn()
		if kind == domain.KindPersistence || kind == domain.KindUpstreamUnavailable || kind == domain.KindInternal {
			evt = logger.Ctx(ctx).Error()
		}
		evt.Err(err).Str("kind", string(kind)).Msg("order creation failed")
		return nil, err
	}

	s.metrics.ObserveCreation("confirmed")
	span.AddEvent("order confirmed")
	return NewOrderResponse(orderCtx.Order, orderPlacedMessage), nil
}

// ListOrders 返回全部订单。
func (s *OrderApplicationService) ListOrders(ctx context.Context) ([]*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list orders failed")
		return nil, domain.NewError(domain.KindPersistence, "failed to list orders", err)
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o, ""))
	}
	return out, nil
}

// GetOrder 按 ID 查询订单。
func (s *OrderApplicationService) GetOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.NewError(domain.KindOrderNotFound, "order not found", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get order failed")
		return nil, domain.NewError(domain.KindPersistence, "failed to load order", err)
	}
	return NewOrderResponse(o, ""), nil
}

func (s *OrderApplicationService) buildChain() flow.Handler {
	chain := flow.NewValidateHandler(s.admission)
	chain.
		SetNext(new(flow.ProductCheckHandler)).
		SetNext(new(flow.ReserveStockHandler)).
		SetNext(flow.NewPersistOrderHandler(s.orderRepo, s.metrics)).
		SetNext(flow.NewNotificationHandler(s.eventsTopic))

	return chain
}
