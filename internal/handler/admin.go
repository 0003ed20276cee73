package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"school-inventory-api/internal/repository"
	"school-inventory-api/internal/service"
	"school-inventory-api/pkg/apierror"
	"school-inventory-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store     repository.Store // Interface instead of concrete type
	retention *service.RetentionScheduler
	dbType    string // Database type: memory, sqlite, postgres
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	store repository.Store,
	retention *service.RetentionScheduler,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		store:     store,
		retention: retention,
		dbType:    dbType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType // memory, sqlite, or postgres

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Store stats
	storeStats, err := h.store.Stats(ctx)
	if err == nil {
		storeStats["status"] = "connected"
		stats["store"] = storeStats
	} else {
		stats["store"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ListActivity handles GET /api/v1/admin/activity
func (h *AdminHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	entries, total, err := h.store.ListActivity(r.Context(), limit, (page-1)*limit)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list activity"))
		return
	}

	response.JSONWithMeta(w, http.StatusOK, entries, page, limit, total)
}

// PruneActivity handles POST /api/v1/admin/activity/prune
func (h *AdminHandler) PruneActivity(w http.ResponseWriter, r *http.Request) {
	if h.retention == nil {
		response.Error(w, apierror.ServiceUnavailable("retention not configured"))
		return
	}

	removed, err := h.retention.RunNow()
	if err != nil {
		response.Error(w, apierror.InternalError("failed to prune activity log"))
		return
	}

	response.OK(w, map[string]interface{}{
		"removed": removed,
	})
}
