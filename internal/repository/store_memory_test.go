package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"school-inventory-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, store *MemoryStore, id string, qty int) *model.InventoryItem {
	t.Helper()
	item := &model.InventoryItem{
		ID:        id,
		Name:      "Item " + id,
		Quantity:  qty,
		DateAdded: time.Now().UTC(),
	}
	item.RecalcStatus()
	require.NoError(t, store.CreateItem(context.Background(), item))
	return item
}

func seedRequest(t *testing.T, store *MemoryStore, id, itemID string, qty int) *model.ItemRequest {
	t.Helper()
	req := &model.ItemRequest{
		ID:                id,
		ItemID:            itemID,
		RequestedQuantity: qty,
		RequesterID:       "u-1",
		Status:            model.RequestPending,
		RequestDate:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateRequests(context.Background(), []*model.ItemRequest{req}))
	return req
}

func TestMemoryStore_CreateItem_DuplicateName(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &model.InventoryItem{ID: "i-1", Name: "Staplers"}
	require.NoError(t, store.CreateItem(ctx, first))

	dup := &model.InventoryItem{ID: "i-2", Name: " staplers "}
	err := store.CreateItem(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicateName))
}

func TestMemoryStore_AdjustQuantity_Invariant(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedItem(t, store, "i-1", 3)

	_, err := store.AdjustQuantity(ctx, "i-1", -4)
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	item, err := store.AdjustQuantity(ctx, "i-1", -3)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, model.ItemOutOfStock, item.Status)
}

func TestMemoryStore_UpdateRequestStatus_CAS(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedItem(t, store, "i-1", 10)
	req := seedRequest(t, store, "r-1", "i-1", 5)

	req.Status = model.RequestApproved
	require.NoError(t, store.UpdateRequestStatus(ctx, req, model.RequestPending))

	// A writer that still believes the request is Pending loses.
	stale := *req
	stale.Status = model.RequestRejected
	err := store.UpdateRequestStatus(ctx, &stale, model.RequestPending)
	assert.True(t, errors.Is(err, ErrStaleStatus))

	got, err := store.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, got.Status)
}

func TestMemoryStore_FulfillTx_RollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedItem(t, store, "i-1", 10)
	seedRequest(t, store, "r-1", "i-1", 5)

	boom := errors.New("validation failed")
	_, err := store.FulfillTx(ctx, "r-1", func(req *model.ItemRequest, item *model.InventoryItem) error {
		req.FulfilledQuantity = 5
		item.Quantity = 0
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	item, err := store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)

	req, err := store.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, 0, req.FulfilledQuantity)
}

func TestMemoryStore_FulfillTx_CommitsBothRows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedItem(t, store, "i-1", 10)
	seedRequest(t, store, "r-1", "i-1", 5)

	got, err := store.FulfillTx(ctx, "r-1", func(req *model.ItemRequest, item *model.InventoryItem) error {
		req.FulfilledQuantity += 5
		req.Status = model.RequestFulfilled
		item.Quantity -= 5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestFulfilled, got.Status)

	item, err := store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
}

func TestMemoryStore_DeleteItem_ReferencedByOpenRequest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedItem(t, store, "i-1", 10)
	req := seedRequest(t, store, "r-1", "i-1", 5)

	err := store.DeleteItem(ctx, "i-1")
	assert.True(t, errors.Is(err, ErrItemReferenced))

	// Once the request closes, deletion succeeds.
	req.Status = model.RequestCancelled
	require.NoError(t, store.UpdateRequestStatus(ctx, req, model.RequestPending))
	require.NoError(t, store.DeleteItem(ctx, "i-1"))
}

func TestMemoryStore_CreateRequests_AllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedItem(t, store, "i-1", 10)

	err := store.CreateRequests(ctx, []*model.ItemRequest{
		{ID: "r-1", ItemID: "i-1", Status: model.RequestPending},
		{ID: "r-2", ItemID: "missing", Status: model.RequestPending},
	})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.GetRequest(ctx, "r-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_DeleteItem_RacesWithCreateRequests(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Whichever side wins, a surviving open request must always have a
	// surviving item behind it.
	for i := 0; i < 50; i++ {
		itemID := fmt.Sprintf("i-%d", i)
		reqID := fmt.Sprintf("r-%d", i)
		seedItem(t, store, itemID, 10)

		var wg sync.WaitGroup
		var createErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			createErr = store.CreateRequests(ctx, []*model.ItemRequest{
				{ID: reqID, ItemID: itemID, Status: model.RequestPending},
			})
		}()
		go func() {
			defer wg.Done()
			deleteErr = store.DeleteItem(ctx, itemID)
		}()
		wg.Wait()

		if createErr == nil && deleteErr == nil {
			t.Fatalf("iteration %d: request %s created and item %s deleted", i, reqID, itemID)
		}
		if createErr == nil {
			assert.True(t, errors.Is(deleteErr, ErrItemReferenced))
			_, err := store.GetItem(ctx, itemID)
			require.NoError(t, err)
		} else {
			assert.True(t, errors.Is(createErr, ErrNotFound))
			require.NoError(t, deleteErr)
		}
	}
}

func TestMemoryStore_ActivityPrune(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	old := &model.ActivityEntry{Action: model.ActivityItemAdded, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &model.ActivityEntry{Action: model.ActivityItemAdjusted, CreatedAt: time.Now()}
	require.NoError(t, store.AppendActivity(ctx, old))
	require.NoError(t, store.AppendActivity(ctx, fresh))

	deleted, err := store.PruneActivity(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, total, err := store.ListActivity(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActivityItemAdjusted, entries[0].Action)
}
