package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"school-inventory-api/internal/middleware"
	"school-inventory-api/internal/model"
	"school-inventory-api/internal/service"
	"school-inventory-api/pkg/apierror"
	"school-inventory-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ItemHandler handles catalog HTTP requests.
type ItemHandler struct {
	inventoryService *service.InventoryService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(inventoryService *service.InventoryService) *ItemHandler {
	return &ItemHandler{
		inventoryService: inventoryService,
	}
}

// CreateItem handles POST /api/v1/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var input service.AddItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	item, err := h.inventoryService.AddItem(r.Context(), *identity, input)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, item)
}

// GetItem handles GET /api/v1/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	item, err := h.inventoryService.GetItem(r.Context(), itemID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, item)
}

// ListItems handles GET /api/v1/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter := model.ItemFilter{
		Category: r.URL.Query().Get("category"),
		Status:   model.ItemStatus(r.URL.Query().Get("status")),
		Search:   r.URL.Query().Get("q"),
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	items, total, err := h.inventoryService.ListItems(r.Context(), filter)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.JSONWithMeta(w, http.StatusOK, items, filter.Page, filter.Limit, total)
}

// AdjustRequest represents the request body for a stock adjustment.
type AdjustRequest struct {
	Delta int `json:"delta"`
}

// AdjustQuantity handles POST /api/v1/items/{id}/adjust
func (h *ItemHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	item, err := h.inventoryService.AdjustQuantity(r.Context(), *identity, itemID, req.Delta)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, item)
}

// DeleteItem handles DELETE /api/v1/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	if err := h.inventoryService.DeleteItem(r.Context(), *identity, itemID); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}
