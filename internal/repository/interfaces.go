package repository

import (
	"context"
	"errors"
	"time"

	"school-inventory-api/internal/model"
)

// Sentinel errors shared by every store backend. Services translate these
// into API errors; backends must not leak driver-specific errors for the
// cases below.
var (
	// ErrNotFound indicates the entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates an item with the same name (case-insensitive)
	// already exists in the owning scope.
	ErrDuplicateName = errors.New("duplicate item name")

	// ErrInsufficientStock indicates a quantity adjustment would drive the
	// item quantity negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStaleStatus indicates a compare-and-set status update observed a
	// different status than expected.
	ErrStaleStatus = errors.New("request status changed concurrently")

	// ErrItemReferenced indicates an item cannot be deleted while a
	// non-terminal request references it.
	ErrItemReferenced = errors.New("item referenced by open requests")

	// ErrTxConflict indicates a lock timeout, deadlock, or serialization
	// failure. Callers may retry once with fresh reads.
	ErrTxConflict = errors.New("transaction conflict")
)

// FulfillFunc validates and applies a fulfillment against an exclusively
// locked request and item pair. Mutations made to req and item are persisted
// only when the function returns nil; any error aborts the transaction and
// is returned to the caller unchanged.
type FulfillFunc func(req *model.ItemRequest, item *model.InventoryItem) error

// ItemRepository defines inventory catalog data access.
type ItemRepository interface {
	// CreateItem inserts a new item. Returns ErrDuplicateName on a
	// case-insensitive name collision.
	CreateItem(ctx context.Context, item *model.InventoryItem) error

	// GetItem retrieves an item by id. Returns ErrNotFound if absent.
	GetItem(ctx context.Context, id string) (*model.InventoryItem, error)

	// ListItems returns a filtered, paginated item page and the total count.
	ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int64, error)

	// AdjustQuantity applies a signed delta to an item's quantity under an
	// exclusive row lock. Returns ErrInsufficientStock if the result would
	// be negative, ErrNotFound if the item is absent.
	AdjustQuantity(ctx context.Context, itemID string, delta int) (*model.InventoryItem, error)

	// DeleteItem removes an item. Returns ErrItemReferenced while any
	// non-terminal request references it.
	DeleteItem(ctx context.Context, id string) error
}

// RequestRepository defines item request data access.
type RequestRepository interface {
	// CreateRequests inserts all rows in one transaction; either every
	// line of a batch submission is persisted or none is.
	CreateRequests(ctx context.Context, reqs []*model.ItemRequest) error

	// GetRequest retrieves a request by id. Returns ErrNotFound if absent.
	GetRequest(ctx context.Context, id string) (*model.ItemRequest, error)

	// ListRequests returns a filtered, paginated request page and the total count.
	ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.ItemRequest, int64, error)

	// UpdateRequestStatus persists req only if the stored row still has
	// status expect (compare-and-set). Returns ErrStaleStatus otherwise.
	UpdateRequestStatus(ctx context.Context, req *model.ItemRequest, expect model.RequestStatus) error

	// FulfillTx runs fn with the request row and its item row exclusively
	// locked, then persists both. A concurrent fulfillment against the same
	// pair blocks until the first transaction finishes, so fn always sees
	// fresh state. Returns ErrTxConflict on lock or serialization failure.
	FulfillTx(ctx context.Context, requestID string, fn FulfillFunc) (*model.ItemRequest, error)
}

// ActivityRepository defines audit trail data access.
type ActivityRepository interface {
	// AppendActivity records one audit entry.
	AppendActivity(ctx context.Context, entry *model.ActivityEntry) error

	// ListActivity returns entries newest-first with the total count.
	ListActivity(ctx context.Context, limit, offset int) ([]model.ActivityEntry, int64, error)

	// PruneActivity deletes entries older than the threshold and returns
	// how many were removed.
	PruneActivity(ctx context.Context, threshold time.Duration) (int64, error)
}

// Store bundles the repositories a single backend provides.
type Store interface {
	ItemRepository
	RequestRepository
	ActivityRepository

	// Stats returns backend statistics for the admin endpoint.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the underlying connection.
	Close() error
}

// UserRepository defines staff directory access.
type UserRepository interface {
	// Authenticate resolves an access key to an active staff account.
	// Returns ErrNotFound for unknown or revoked keys.
	Authenticate(ctx context.Context, accessKey string) (*model.User, error)

	// GetUser retrieves a staff account by id.
	GetUser(ctx context.Context, id string) (*model.User, error)
}
