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

// RequestHandler handles item request HTTP requests.
type RequestHandler struct {
	requestService *service.RequestService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requestService *service.RequestService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
	}
}

// SubmitRequest represents the body for a batch request submission.
// Each line becomes one request row.
type SubmitRequest struct {
	Lines []model.RequestLine `json:"lines"`
	Notes string              `json:"notes"`
}

// Submit handles POST /api/v1/requests
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	created, err := h.requestService.Submit(r.Context(), *identity, req.Lines, req.Notes)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, created)
}

// List handles GET /api/v1/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	filter := model.RequestFilter{
		Status: model.RequestStatus(r.URL.Query().Get("status")),
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	mine := r.URL.Query().Get("scope") == "mine"

	reqs, total, err := h.requestService.List(r.Context(), *identity, mine, filter)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.JSONWithMeta(w, http.StatusOK, reqs, filter.Page, filter.Limit, total)
}

// Get handles GET /api/v1/requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	req, err := h.requestService.Get(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, req)
}

// ApproveRequest represents the body for an approval.
type ApproveRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// Approve handles POST /api/v1/requests/{id}/approve
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req ApproveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
		defer r.Body.Close()
	}

	updated, err := h.requestService.Approve(r.Context(), *identity, chi.URLParam(r, "id"), req.AdminNotes)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, updated)
}

// RejectRequest represents the body for a rejection.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/v1/requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	updated, err := h.requestService.Reject(r.Context(), *identity, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, updated)
}

// FulfillRequest represents the body for a fulfillment.
type FulfillRequest struct {
	Quantity int `json:"quantity"`
}

// Fulfill handles POST /api/v1/requests/{id}/fulfill
func (h *RequestHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	var req FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	updated, err := h.requestService.Fulfill(r.Context(), *identity, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, updated)
}

// Cancel handles POST /api/v1/requests/{id}/cancel
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}

	updated, err := h.requestService.Cancel(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, updated)
}
