package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"school-inventory-api/internal/cache"
	"school-inventory-api/internal/model"
	"school-inventory-api/internal/repository"
	"school-inventory-api/pkg/apierror"
	"school-inventory-api/pkg/response"
)

// summaryCacheKey is the cache key for the dashboard summary.
const summaryCacheKey = "reports:summary"

// summaryCacheTTL bounds how stale the dashboard may be.
const summaryCacheTTL = 60 * time.Second

// ReportHandler serves read-only dashboard views over the two stores. It
// never mutates the lifecycle.
type ReportHandler struct {
	store repository.Store
	cache cache.Cache
}

// NewReportHandler creates a new report handler.
func NewReportHandler(store repository.Store, c cache.Cache) *ReportHandler {
	return &ReportHandler{
		store: store,
		cache: c,
	}
}

// Summary is the dashboard payload.
type Summary struct {
	RequestsByStatus map[string]int64      `json:"requests_by_status"`
	ItemsByStatus    map[string]int64      `json:"items_by_status"`
	LowStockItems    []model.InventoryItem `json:"low_stock_items"`
	GeneratedAt      time.Time             `json:"generated_at"`
}

// GetSummary handles GET /api/v1/reports/summary
func (h *ReportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	build := func() ([]byte, error) {
		summary, err := h.buildSummary(r.Context())
		if err != nil {
			return nil, err
		}
		return json.Marshal(summary)
	}

	var data []byte
	var err error
	if h.cache != nil {
		data, err = h.cache.GetOrSet(r.Context(), summaryCacheKey, summaryCacheTTL, build)
	} else {
		data, err = build()
	}
	if err != nil {
		log.Printf("[ReportHandler] Failed to build summary: %v", err)
		response.Error(w, apierror.InternalError(""))
		return
	}

	response.OK(w, json.RawMessage(data))
}

func (h *ReportHandler) buildSummary(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RequestsByStatus: make(map[string]int64),
		ItemsByStatus:    make(map[string]int64),
		GeneratedAt:      time.Now().UTC(),
	}

	for _, status := range []model.RequestStatus{
		model.RequestPending, model.RequestDepartmentApproved, model.RequestApproved,
		model.RequestRejected, model.RequestFulfilled, model.RequestCancelled,
	} {
		_, total, err := h.store.ListRequests(ctx, model.RequestFilter{Status: status, Limit: 1})
		if err != nil {
			return nil, err
		}
		summary.RequestsByStatus[string(status)] = total
	}

	for _, status := range []model.ItemStatus{
		model.ItemAvailable, model.ItemLowStock, model.ItemOutOfStock,
	} {
		_, total, err := h.store.ListItems(ctx, model.ItemFilter{Status: status, Limit: 1})
		if err != nil {
			return nil, err
		}
		summary.ItemsByStatus[string(status)] = total
	}

	lowStock, _, err := h.store.ListItems(ctx, model.ItemFilter{Status: model.ItemLowStock, Limit: 20})
	if err != nil {
		return nil, err
	}
	summary.LowStockItems = lowStock

	return summary, nil
}
