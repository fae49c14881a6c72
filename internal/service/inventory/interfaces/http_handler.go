package interfaces

import (
	"errors"
	"fmt"
	"net/http"

	"nexus-mall/internal/pkg/httpx"
	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/service/inventory/application"
	"nexus-mall/internal/service/inventory/domain"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器
type InventoryHandler struct {
	ledger *application.StockLedger
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(ledger *application.StockLedger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.handleGetProduct)
	mux.HandleFunc("GET /api/products/{id}/availability", h.handleAvailability)
	mux.HandleFunc("POST /api/products/reduce-stock", h.handleReduceStock)
}

func (h *InventoryHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.ledger.ListProducts(r.Context())
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("list products failed")
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "failed to list products")
		return
	}
	resp := make([]application.ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, application.NewProductResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	p, err := h.ledger.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "ProductNotFound", fmt.Sprintf("Product not found with id: %d", id))
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Int64("product_id", id).Msg("get product failed")
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "failed to load product")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.NewProductResponse(p))
}

func (h *InventoryHandler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	av, err := h.ledger.CheckAvailability(r.Context(), id)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Int64("product_id", id).Msg("availability check failed")
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "failed to check availability")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, application.AvailabilityResponse{
		ProductID:  av.ProductID,
		StockCount: av.StockCount,
		Exists:     av.Exists,
	})
}

func (h *InventoryHandler) handleReduceStock(w http.ResponseWriter, r *http.Request) {
	var req application.StockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, application.StockResponse{Message: err.Error()})
		return
	}
	if req.ProductID <= 0 {
		httpx.WriteJSON(w, http.StatusBadRequest, application.StockResponse{Message: "productId must be positive"})
		return
	}

	res, err := h.ledger.Reserve(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		// 根据错误类型返回不同的 HTTP 状态码
		var statusCode int
		message := err.Error()
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			statusCode = http.StatusNotFound
			message = fmt.Sprintf("Product not found with id: %d", req.ProductID)
		case errors.Is(err, domain.ErrInsufficientStock),
			errors.Is(err, domain.ErrInvalidQuantity):
			statusCode = http.StatusBadRequest
		default:
			statusCode = http.StatusInternalServerError
			message = "failed to reduce stock"
		}
		logger.Ctx(r.Context()).Warn().Err(err).
			Int64("product_id", req.ProductID).
			Int("quantity", req.Quantity).
			Int("status", statusCode).
			Msg("reduce stock rejected")
		httpx.WriteJSON(w, statusCode, application.StockResponse{Message: message})
		return
	}

	remaining := res.RemainingStock
	httpx.WriteJSON(w, http.StatusOK, application.StockResponse{
		Success:        true,
		Message:        "Stock reduced successfully",
		RemainingStock: &remaining,
	})
}
