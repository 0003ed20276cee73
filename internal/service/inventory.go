package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"school-inventory-api/internal/model"
	"school-inventory-api/internal/policy"
	"school-inventory-api/internal/repository"
	"school-inventory-api/pkg/apierror"
	"school-inventory-api/pkg/uid"
)

// InventoryService handles catalog business logic. Every quantity change
// routes through the store's AdjustQuantity primitive so the non-negative
// invariant holds no matter which operation triggered the change.
type InventoryService struct {
	store repository.Store
}

// NewInventoryService creates a new inventory service.
// Returns nil if store is nil (required dependency).
func NewInventoryService(store repository.Store) *InventoryService {
	if store == nil {
		return nil
	}
	return &InventoryService{store: store}
}

// AddItemInput holds the caller-supplied fields for a new item.
type AddItemInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Location string `json:"location"`
}

// AddItem creates a new catalog item. The status field is derived from the
// quantity, never taken from the caller.
func (s *InventoryService) AddItem(ctx context.Context, actor model.Identity, input AddItemInput) (*model.InventoryItem, error) {
	if !policy.CanManageItems(actor.Role) {
		return nil, apierror.Forbidden("only stock managers and admins may add items")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apierror.ValidationError("invalid item",
			apierror.FieldError{Field: "name", Message: "name is required"})
	}
	if input.Quantity < 0 {
		input.Quantity = 0
	}

	item := &model.InventoryItem{
		ID:        uid.New(),
		Name:      strings.TrimSpace(input.Name),
		Category:  strings.TrimSpace(input.Category),
		Quantity:  input.Quantity,
		Location:  strings.TrimSpace(input.Location),
		OwnerID:   actor.DepartmentID,
		DateAdded: time.Now().UTC(),
	}
	item.RecalcStatus()

	if err := s.store.CreateItem(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, apierror.DuplicateItem("an item with this name already exists")
		}
		log.Printf("[InventoryService] Failed to create item: %v", err)
		return nil, apierror.InternalError("")
	}

	s.recordActivity(ctx, actor, model.ActivityItemAdded, item.ID, item.Name, item.Quantity, "")
	return item, nil
}

// AdjustQuantity applies a signed delta to an item's stock. Positive deltas
// restock, negative deltas withdraw. This is the sole mutation primitive
// exposed for direct stock changes.
func (s *InventoryService) AdjustQuantity(ctx context.Context, actor model.Identity, itemID string, delta int) (*model.InventoryItem, error) {
	if !policy.CanManageItems(actor.Role) {
		return nil, apierror.Forbidden("only stock managers and admins may adjust stock")
	}
	if delta == 0 {
		return nil, apierror.InvalidQuantity("delta must be non-zero")
	}

	item, err := s.store.AdjustQuantity(ctx, itemID, delta)
	if errors.Is(err, repository.ErrTxConflict) {
		// One retry with fresh reads before surfacing a conflict.
		item, err = s.store.AdjustQuantity(ctx, itemID, delta)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apierror.NotFound("item not found")
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, apierror.InsufficientStock("adjustment would drive stock negative")
		case errors.Is(err, repository.ErrTxConflict):
			return nil, apierror.Conflict("concurrent stock update, please retry")
		}
		log.Printf("[InventoryService] Failed to adjust quantity for %s: %v", itemID, err)
		return nil, apierror.InternalError("")
	}

	s.recordActivity(ctx, actor, model.ActivityItemAdjusted, item.ID, item.Name, delta, "")
	return item, nil
}

// GetItem retrieves a single item.
func (s *InventoryService) GetItem(ctx context.Context, itemID string) (*model.InventoryItem, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("item not found")
		}
		log.Printf("[InventoryService] Failed to get item %s: %v", itemID, err)
		return nil, apierror.InternalError("")
	}
	return item, nil
}

// ListItems returns a filtered, paginated catalog page and the total count.
func (s *InventoryService) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	items, total, err := s.store.ListItems(ctx, filter)
	if err != nil {
		log.Printf("[InventoryService] Failed to list items: %v", err)
		return nil, 0, apierror.InternalError("")
	}
	return items, total, nil
}

// DeleteItem removes an item from the catalog. Items referenced by open
// requests cannot be deleted; history for closed requests survives through
// the name snapshots on the request rows.
func (s *InventoryService) DeleteItem(ctx context.Context, actor model.Identity, itemID string) error {
	if actor.Role != model.RoleAdmin {
		return apierror.Forbidden("only admins may delete items")
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apierror.NotFound("item not found")
		}
		return apierror.InternalError("")
	}

	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apierror.NotFound("item not found")
		case errors.Is(err, repository.ErrItemReferenced):
			return apierror.Conflict("item is referenced by open requests")
		}
		log.Printf("[InventoryService] Failed to delete item %s: %v", itemID, err)
		return apierror.InternalError("")
	}

	s.recordActivity(ctx, actor, model.ActivityItemDeleted, item.ID, item.Name, 0, "")
	return nil
}

// recordActivity appends an audit entry. Audit failures are logged but never
// fail the operation they describe.
func (s *InventoryService) recordActivity(ctx context.Context, actor model.Identity, action, entityID, entityName string, delta int, detail string) {
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
		log.Printf("[InventoryService] Failed to record activity %s: %v", action, err)
	}
}
