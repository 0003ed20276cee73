package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"school-inventory-api/internal/model"
)

// MemoryStore is an in-memory Store implementation. Use it for development
// and tests; it holds nothing across restarts.
//
// A single store-wide mutex serializes every mutation, which trivially gives
// FulfillTx the same exclusive-lock semantics the SQL backends get from row
// locks: a concurrent fulfillment observes fully committed state or blocks.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]*model.InventoryItem
	requests map[string]*model.ItemRequest
	activity []model.ActivityEntry
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*model.InventoryItem),
		requests: make(map[string]*model.ItemRequest),
		nextID:   1,
	}
}

func copyItem(i *model.InventoryItem) *model.InventoryItem {
	c := *i
	c.RecalcStatus()
	return &c
}

func copyRequest(r *model.ItemRequest) *model.ItemRequest {
	c := *r
	if r.ResponseDate != nil {
		d := *r.ResponseDate
		c.ResponseDate = &d
	}
	return &c
}

// CreateItem inserts a new item, rejecting case-insensitive name duplicates.
func (s *MemoryStore) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	norm := item.NormalizedName()
	for _, existing := range s.items {
		if existing.NormalizedName() == norm && existing.OwnerID == item.OwnerID {
			return ErrDuplicateName
		}
	}

	s.items[item.ID] = copyItem(item)
	return nil
}

// GetItem retrieves an item by id.
func (s *MemoryStore) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// ListItems returns a filtered, paginated item page.
func (s *MemoryStore) ListItems(ctx context.Context, filter model.ItemFilter) ([]model.InventoryItem, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		c := *copyItem(item)
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, c)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})

	total := int64(len(matched))
	return paginateItems(matched, filter.Page, filter.Limit), total, nil
}

func paginateItems(items []model.InventoryItem, page, limit int) []model.InventoryItem {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []model.InventoryItem{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// AdjustQuantity applies a signed delta, guarding the non-negative invariant.
func (s *MemoryStore) AdjustQuantity(ctx context.Context, itemID string, delta int) (*model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Quantity+delta < 0 {
		return nil, ErrInsufficientStock
	}

	item.Quantity += delta
	item.RecalcStatus()
	return copyItem(item), nil
}

// DeleteItem removes an item unless an open request still references it.
func (s *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	for _, req := range s.requests {
		if req.ItemID == id && !req.Status.Terminal() {
			return ErrItemReferenced
		}
	}

	delete(s.items, id)
	return nil
}

// CreateRequests inserts all rows or none.
func (s *MemoryStore) CreateRequests(ctx context.Context, reqs []*model.ItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, req := range reqs {
		if _, ok := s.items[req.ItemID]; !ok {
			return ErrNotFound
		}
	}
	for _, req := range reqs {
		s.requests[req.ID] = copyRequest(req)
	}
	return nil
}

// GetRequest retrieves a request by id.
func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*model.ItemRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRequest(req), nil
}

// ListRequests returns a filtered, paginated request page, newest first.
func (s *MemoryStore) ListRequests(ctx context.Context, filter model.RequestFilter) ([]model.ItemRequest, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.ItemRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		matched = append(matched, *copyRequest(req))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RequestDate.After(matched[j].RequestDate)
	})

	total := int64(len(matched))
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.Limit
		if start >= len(matched) {
			return []model.ItemRequest{}, total, nil
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// UpdateRequestStatus persists req only if the stored status still matches expect.
func (s *MemoryStore) UpdateRequestStatus(ctx context.Context, req *model.ItemRequest, expect model.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[req.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expect {
		return ErrStaleStatus
	}

	s.requests[req.ID] = copyRequest(req)
	return nil
}

// FulfillTx runs fn with the request and its item under the store lock and
// persists both on success.
func (s *MemoryStore) FulfillTx(ctx context.Context, requestID string, fn FulfillFunc) (*model.ItemRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	item, ok := s.items[req.ItemID]
	if !ok {
		return nil, ErrNotFound
	}

	// Work on copies so a failed validation leaves nothing half-applied.
	reqCopy := copyRequest(req)
	itemCopy := copyItem(item)
	if err := fn(reqCopy, itemCopy); err != nil {
		return nil, err
	}

	itemCopy.RecalcStatus()
	s.requests[requestID] = reqCopy
	s.items[item.ID] = itemCopy
	return copyRequest(reqCopy), nil
}

// AppendActivity records one audit entry.
func (s *MemoryStore) AppendActivity(ctx context.Context, entry *model.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.activity = append(s.activity, *entry)
	return nil
}

// ListActivity returns audit entries newest-first.
func (s *MemoryStore) ListActivity(ctx context.Context, limit, offset int) ([]model.ActivityEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(len(s.activity))
	entries := make([]model.ActivityEntry, len(s.activity))
	copy(entries, s.activity)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if offset >= len(entries) {
		return []model.ActivityEntry{}, total, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, total, nil
}

// PruneActivity deletes entries older than the threshold.
func (s *MemoryStore) PruneActivity(ctx context.Context, threshold time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	kept := s.activity[:0]
	var deleted int64
	for _, entry := range s.activity {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.activity = kept
	return deleted, nil
}

// Stats returns row counts for the admin endpoint.
func (s *MemoryStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"backend":        "memory",
		"total_items":    len(s.items),
		"total_requests": len(s.requests),
		"total_activity": len(s.activity),
	}, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
