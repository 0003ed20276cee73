package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"school-inventory-api/internal/model"
	"school-inventory-api/internal/policy"
	"school-inventory-api/internal/repository"
	"school-inventory-api/pkg/apierror"
	"school-inventory-api/pkg/uid"
)

// RequestService is the lifecycle engine for item requests. All status
// transitions run through it; handlers never mutate request rows directly.
//
// Every transition is validated before any row changes, and the fulfill
// path runs its read-check-write inside a single store transaction holding
// exclusive locks on the request and item rows, so two racing fulfillments
// can never jointly overdraw a request or an item.
type RequestService struct {
	store repository.Store
}

// NewRequestService creates a new request lifecycle service.
// Returns nil if store is nil (required dependency).
func NewRequestService(store repository.Store) *RequestService {
	if store == nil {
		return nil
	}
	return &RequestService{store: store}
}

// Submit creates one Pending request row per line. Validation is
// all-or-nothing: any bad line rejects the whole batch before a single row
// is written. Stock is not touched at submission; it is only deducted at
// fulfillment.
func (s *RequestService) Submit(ctx context.Context, requester model.Identity, lines []model.RequestLine, notes string) ([]model.ItemRequest, error) {
	if len(lines) == 0 {
		return nil, apierror.BadRequest("at least one request line is required")
	}

	now := time.Now().UTC()
	reqs := make([]*model.ItemRequest, 0, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, apierror.InvalidQuantity(fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		item, err := s.store.GetItem(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apierror.NotFound(fmt.Sprintf("line %d: item not found", i+1))
			}
			log.Printf("[RequestService] Failed to read item %s: %v", line.ItemID, err)
			return nil, apierror.InternalError("")
		}

		reqs = append(reqs, &model.ItemRequest{
			ID:                    uid.New(),
			ItemID:                item.ID,
			ItemNameSnapshot:      item.Name,
			RequestedQuantity:     line.Quantity,
			FulfilledQuantity:     0,
			RequesterID:           requester.UserID,
			RequesterNameSnapshot: requester.Name,
			Status:                model.RequestPending,
			Notes:                 notes,
			RequestDate:           now,
		})
	}

	if err := s.store.CreateRequests(ctx, reqs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("item not found")
		}
		log.Printf("[RequestService] Failed to create requests: %v", err)
		return nil, apierror.InternalError("")
	}

	out := make([]model.ItemRequest, 0, len(reqs))
	for _, req := range reqs {
		s.recordActivity(ctx, requester, model.ActivityReqSubmitted, req.ID, req.ItemNameSnapshot, req.RequestedQuantity, "")
		out = append(out, *req)
	}
	return out, nil
}

// Approve moves a request forward in the approval chain. A department
// head's approval lands on DepartmentApproved; a stock manager's or admin's
// approval lands on Approved. Inventory is not touched.
func (s *RequestService) Approve(ctx context.Context, approver model.Identity, requestID, adminNotes string) (*model.ItemRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != model.RequestPending && req.Status != model.RequestDepartmentApproved {
		return nil, apierror.InvalidTransition(fmt.Sprintf("cannot approve a %s request", req.Status))
	}

	target := policy.ApprovalTarget(approver.Role)
	if !policy.CanTransition(approver.Role, req.Status, target) {
		return nil, apierror.Forbidden("your role may not approve this request")
	}

	prev := req.Status
	now := time.Now().UTC()
	req.Status = target
	req.ApproverID = approver.UserID
	req.ApproverNameSnapshot = approver.Name
	req.ApproverRoleSnapshot = approver.Role
	if adminNotes != "" {
		req.AdminNotes = adminNotes
	}
	req.ResponseDate = &now

	if err := s.casUpdate(ctx, req, prev); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, approver, model.ActivityReqApproved, req.ID, req.ItemNameSnapshot, 0, string(target))
	return req, nil
}

// Reject closes a request with a mandatory reason. Inventory is not touched.
func (s *RequestService) Reject(ctx context.Context, approver model.Identity, requestID, reason string) (*model.ItemRequest, error) {
	if reason == "" {
		return nil, apierror.ValidationError("invalid rejection",
			apierror.FieldError{Field: "reason", Message: "a rejection reason is required"})
	}

	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != model.RequestPending && req.Status != model.RequestDepartmentApproved {
		return nil, apierror.InvalidTransition(fmt.Sprintf("cannot reject a %s request", req.Status))
	}
	if !policy.CanTransition(approver.Role, req.Status, model.RequestRejected) {
		return nil, apierror.Forbidden("your role may not reject this request")
	}

	prev := req.Status
	now := time.Now().UTC()
	req.Status = model.RequestRejected
	req.ApproverID = approver.UserID
	req.ApproverNameSnapshot = approver.Name
	req.ApproverRoleSnapshot = approver.Role
	req.RejectionReason = reason
	req.ResponseDate = &now

	if err := s.casUpdate(ctx, req, prev); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, approver, model.ActivityReqRejected, req.ID, req.ItemNameSnapshot, 0, reason)
	return req, nil
}

// Fulfill deducts stock against an approved request. Partial fulfillment
// keeps the request Approved; the request becomes Fulfilled once the entire
// requested quantity has been handed out. The stock deduction and the
// request update commit together or not at all.
func (s *RequestService) Fulfill(ctx context.Context, fulfiller model.Identity, requestID string, quantity int) (*model.ItemRequest, error) {
	if !policy.CanFulfill(fulfiller.Role) {
		return nil, apierror.Forbidden("only stock managers may fulfill requests")
	}
	if quantity <= 0 {
		return nil, apierror.InvalidQuantity("fulfillment quantity must be positive")
	}

	apply := func(req *model.ItemRequest, item *model.InventoryItem) error {
		// Validation happens under the row locks: the state read here is
		// guaranteed fresh, so a second racing caller fails on the
		// re-checked remaining/stock instead of double-deducting.
		if req.Status != model.RequestApproved && req.Status != model.RequestFulfilled {
			return apierror.InvalidTransition(fmt.Sprintf("cannot fulfill a %s request", req.Status))
		}
		if quantity > req.Remaining() {
			return apierror.OverFulfillment(fmt.Sprintf("only %d of %d remaining", req.Remaining(), req.RequestedQuantity))
		}
		if quantity > item.Quantity {
			return apierror.InsufficientStock(fmt.Sprintf("only %d in stock", item.Quantity))
		}

		now := time.Now().UTC()
		item.Quantity -= quantity
		item.RecalcStatus()
		req.FulfilledQuantity += quantity
		if req.FulfilledQuantity == req.RequestedQuantity {
			req.Status = model.RequestFulfilled
		}
		req.ResponseDate = &now
		return nil
	}

	req, err := s.store.FulfillTx(ctx, requestID, apply)
	if errors.Is(err, repository.ErrTxConflict) {
		// One retry with fresh reads before surfacing a conflict.
		req, err = s.store.FulfillTx(ctx, requestID, apply)
	}
	if err != nil {
		var apiErr *apierror.Error
		switch {
		case errors.As(err, &apiErr):
			return nil, apiErr
		case errors.Is(err, repository.ErrNotFound):
			return nil, apierror.NotFound("request not found")
		case errors.Is(err, repository.ErrTxConflict):
			return nil, apierror.Conflict("concurrent fulfillment, please retry")
		}
		log.Printf("[RequestService] Failed to fulfill request %s: %v", requestID, err)
		return nil, apierror.InternalError("")
	}

	s.recordActivity(ctx, fulfiller, model.ActivityReqFulfilled, req.ID, req.ItemNameSnapshot, -quantity, "")
	return req, nil
}

// Cancel withdraws a Pending request. Only the original requester may cancel.
func (s *RequestService) Cancel(ctx context.Context, caller model.Identity, requestID string) (*model.ItemRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.RequesterID != caller.UserID {
		return nil, apierror.Forbidden("only the original requester may cancel")
	}
	if req.Status != model.RequestPending {
		return nil, apierror.InvalidTransition(fmt.Sprintf("cannot cancel a %s request", req.Status))
	}

	now := time.Now().UTC()
	req.Status = model.RequestCancelled
	req.ResponseDate = &now

	if err := s.casUpdate(ctx, req, model.RequestPending); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, caller, model.ActivityReqCancelled, req.ID, req.ItemNameSnapshot, 0, "")
	return req, nil
}

// Get retrieves a single request. Staff may only see their own.
func (s *RequestService) Get(ctx context.Context, caller model.Identity, requestID string) (*model.ItemRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if caller.Role == model.RoleStaff && req.RequesterID != caller.UserID {
		return nil, apierror.Forbidden("you may only view your own requests")
	}
	return req, nil
}

// List returns a filtered, paginated request page. Staff callers are always
// scoped to their own requests regardless of the mine flag.
func (s *RequestService) List(ctx context.Context, caller model.Identity, mine bool, filter model.RequestFilter) ([]model.ItemRequest, int64, error) {
	if mine || caller.Role == model.RoleStaff {
		filter.RequesterID = caller.UserID
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apierror.BadRequest("unknown status filter")
	}

	reqs, total, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		log.Printf("[RequestService] Failed to list requests: %v", err)
		return nil, 0, apierror.InternalError("")
	}
	return reqs, total, nil
}

func (s *RequestService) getRequest(ctx context.Context, requestID string) (*model.ItemRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("request not found")
		}
		log.Printf("[RequestService] Failed to get request %s: %v", requestID, err)
		return nil, apierror.InternalError("")
	}
	return req, nil
}

// casUpdate persists a transition with a compare-and-set on the prior
// status. A stale status means another transition won the race; the caller
// sees InvalidTransition since the state it observed no longer exists.
func (s *RequestService) casUpdate(ctx context.Context, req *model.ItemRequest, expect model.RequestStatus) error {
	err := s.store.UpdateRequestStatus(ctx, req, expect)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("request not found")
	case errors.Is(err, repository.ErrStaleStatus):
		return apierror.InvalidTransition("request was modified concurrently")
	case errors.Is(err, repository.ErrTxConflict):
		return apierror.Conflict("concurrent update, please retry")
	}
	log.Printf("[RequestService] Failed to update request %s: %v", req.ID, err)
	return apierror.InternalError("")
}

func (s *RequestService) recordActivity(ctx context.Context, actor model.Identity, action, entityID, entityName string, delta int, detail string) {
	entry := &model.ActivityEntry{
		ActorID:       actor.UserID,
		ActorName:     actor.Name,
		Action:        action,
		EntityID:      entityID,
		EntityName:    entityName,
		QuantityDelta: delta,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		log.Printf("[RequestService] Failed to record activity %s: %v", action, err)
	}
}
