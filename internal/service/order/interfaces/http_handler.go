// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/orders/create", h.handleCreate)
	mux.HandleFunc("/api/orders/get", h.handleGet)
	mux.HandleFunc("/api/orders/my", h.handleMyOrders)
	mux.HandleFunc("/api/orders/list", h.handleList)
	mux.HandleFunc("/api/orders/close", h.handleClose)
	mux.HandleFunc("/api/orders/update_status", h.handleUpdateStatus)
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		UserID    int64  `json:"userId"`
		UserEmail string `json:"userEmail"`
		Comment   string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(ctx, req.UserID, application.CreateOrderRequest{
		UserEmail: req.UserEmail,
		Comment:   req.Comment,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, orderResponse(order))
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	orderID, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order_id", http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, orderResponse(order))
}

func (h *OrderHandler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	page, err := h.service.GetUserOrders(ctx, userID, pageRequest(r))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeOrderPage(w, page)
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	status := domain.Status(r.URL.Query().Get("status"))
	page, err := h.service.ListOrders(ctx, status, pageRequest(r))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeOrderPage(w, page)
}

func (h *OrderHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		UserID  int64 `json:"userId"`
		OrderID int64 `json:"orderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.service.CloseOrder(ctx, req.UserID, req.OrderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, orderResponse(order))
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
		Actor   string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		req.Actor = "admin"
	}

	order, err := h.service.UpdateStatus(ctx, req.OrderID, domain.Status(req.Status), req.Actor)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, orderResponse(order))
}

func extractCtx(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func pageRequest(r *http.Request) paging.Request {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return paging.Request{Page: page, Size: size}
}

func orderResponse(order *domain.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"productId":   item.ProductID,
			"productName": item.ProductName,
			"quantity":    item.Quantity,
			"priceAtTime": item.PriceAtTime,
			"subtotal":    item.Subtotal(),
		})
	}
	return map[string]interface{}{
		"id":          order.ID,
		"userId":      order.UserID,
		"status":      string(order.Status),
		"totalAmount": order.TotalAmount,
		"comment":     order.Comment,
		"items":       items,
		"createdAt":   order.CreatedAt,
		"updatedAt":   order.UpdatedAt,
	}
}

func writeOrderPage(w http.ResponseWriter, page *application.OrderPage) {
	rows := make([]map[string]interface{}, 0, len(page.Content))
	for _, order := range page.Content {
		rows = append(rows, orderResponse(order))
	}
	writeJSON(w, map[string]interface{}{
		"content": rows,
		"page":    page.Page,
	})
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeOrderError(w http.ResponseWriter, err error) {
	var invalidTransition *domain.InvalidTransitionError
	var unavailable *domain.ProductUnavailableError

	var statusCode int
	var code string
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode, code = http.StatusNotFound, "ORDER_NOT_FOUND"
	case errors.Is(err, domain.ErrNotOrderOwner):
		statusCode, code = http.StatusForbidden, "NOT_ORDER_OWNER"
	case errors.As(err, &invalidTransition):
		// 客户端请求有效，但服务器拒绝执行
		statusCode, code = http.StatusConflict, "INVALID_STATUS_TRANSITION"
	case errors.As(err, &unavailable):
		statusCode, code = http.StatusConflict, "PRODUCT_UNAVAILABLE"
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidOrderItem),
		errors.Is(err, domain.ErrUnknownStatus):
		statusCode, code = http.StatusBadRequest, "INVALID_REQUEST"
	default:
		statusCode, code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": err.Error()})
}
