// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/inventory/application"
	"bazaar/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InventoryHandler 封装库存服务的 HTTP 处理器。
// 预留/确认/取消不走 HTTP，只由事件流驱动；这里只暴露管理与查询接口。
type InventoryHandler struct {
	service *application.InventoryApplicationService
}

func NewInventoryHandler(service *application.InventoryApplicationService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/inventory/get", h.handleGet)
	mux.HandleFunc("/api/inventory/list", h.handleList)
	mux.HandleFunc("/api/inventory/history", h.handleHistory)
	mux.HandleFunc("/api/inventory/check", h.handleCheck)
	mux.HandleFunc("/api/inventory/update_stock", h.handleUpdateStock)
	mux.HandleFunc("/api/inventory/create", h.handleCreate)
}

func (h *InventoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product_id", http.StatusBadRequest)
		return
	}

	inv, err := h.service.GetInventory(ctx, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, inventoryResponse(inv))
}

func (h *InventoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	page, err := h.service.ListInventory(ctx, pageRequest(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows := make([]map[string]interface{}, 0, len(page.Content))
	for _, inv := range page.Content {
		rows = append(rows, inventoryResponse(inv))
	}
	writeJSON(w, map[string]interface{}{
		"content": rows,
		"page":    page.Page,
	})
}

func (h *InventoryHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product_id", http.StatusBadRequest)
		return
	}

	page, err := h.service.GetHistory(ctx, productID, pageRequest(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows := make([]map[string]interface{}, 0, len(page.Content))
	for _, rec := range page.Content {
		row := map[string]interface{}{
			"id":              rec.ID,
			"productId":       rec.ProductID,
			"changeType":      string(rec.ChangeType),
			"quantity":        rec.Quantity,
			"availableBefore": rec.AvailableBefore,
			"availableAfter":  rec.AvailableAfter,
			"reservedBefore":  rec.ReservedBefore,
			"reservedAfter":   rec.ReservedAfter,
			"createdBy":       rec.CreatedBy,
			"createdAt":       rec.CreatedAt,
		}
		if rec.OrderID != nil {
			row["orderId"] = *rec.OrderID
		}
		rows = append(rows, row)
	}
	writeJSON(w, map[string]interface{}{
		"content": rows,
		"page":    page.Page,
	})
}

func (h *InventoryHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		Items []struct {
			ProductID int64 `json:"productId"`
			Quantity  int   `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	checks := make([]application.AvailabilityCheck, 0, len(req.Items))
	for _, item := range req.Items {
		checks = append(checks, application.AvailabilityCheck{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	available, err := h.service.CheckAvailability(ctx, checks)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"available": available})
}

func (h *InventoryHandler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		ProductID int64  `json:"productId"`
		Available int    `json:"available"`
		Actor     string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		req.Actor = "admin"
	}

	inv, err := h.service.UpdateStock(ctx, req.ProductID, req.Available, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, inventoryResponse(inv))
}

func (h *InventoryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		ProductID int64  `json:"productId"`
		Quantity  int    `json:"quantity"`
		Actor     string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		req.Actor = "admin"
	}

	inv, err := h.service.CreateInventory(ctx, req.ProductID, req.Quantity, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, inventoryResponse(inv))
}

func extractCtx(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func inventoryResponse(inv *domain.Inventory) map[string]interface{} {
	return map[string]interface{}{
		"productId": inv.ProductID,
		"available": inv.Available,
		"reserved":  inv.Reserved,
		"total":     inv.Total(),
		"updatedAt": inv.UpdatedAt,
	}
}

func pageRequest(r *http.Request) paging.Request {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return paging.Request{Page: page, Size: size}
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeDomainError(w http.ResponseWriter, err error) {
	var statusCode int
	var code string
	switch {
	case errors.Is(err, domain.ErrInventoryNotFound):
		statusCode, code = http.StatusNotFound, "INVENTORY_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidQuantity):
		statusCode, code = http.StatusBadRequest, "INVALID_QUANTITY"
	default:
		statusCode, code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": err.Error()})
}
