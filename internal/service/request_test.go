package service

import (
	"context"
	"sync"
	"testing"

	"school-inventory-api/internal/model"
	"school-inventory-api/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestFixture(t *testing.T, stock int) (*RequestService, *InventoryService, *model.InventoryItem) {
	t.Helper()
	store := repository.NewMemoryStore()
	invSvc := NewInventoryService(store)
	reqSvc := NewRequestService(store)
	require.NotNil(t, reqSvc)

	item, err := invSvc.AddItem(context.Background(), stockMgr, AddItemInput{
		Name: "Scientific Calculators", Category: "electronics", Quantity: stock,
	})
	require.NoError(t, err)
	return reqSvc, invSvc, item
}

func submitOne(t *testing.T, svc *RequestService, itemID string, qty int) *model.ItemRequest {
	t.Helper()
	reqs, err := svc.Submit(context.Background(), staffActor, []model.RequestLine{{ItemID: itemID, Quantity: qty}}, "")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	return &reqs[0]
}

func TestSubmit(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	req := submitOne(t, svc, item.ID, 5)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.Equal(t, 5, req.RequestedQuantity)
	assert.Equal(t, 0, req.FulfilledQuantity)
	assert.Equal(t, item.Name, req.ItemNameSnapshot)
	assert.Equal(t, staffActor.UserID, req.RequesterID)
	assert.Nil(t, req.ResponseDate)
}

func TestSubmit_DoesNotTouchStock(t *testing.T) {
	svc, invSvc, item := newRequestFixture(t, 20)

	submitOne(t, svc, item.ID, 15)

	got, err := invSvc.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Quantity)
}

func TestSubmit_BatchIsAllOrNothing(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	_, err := svc.Submit(ctx, staffActor, []model.RequestLine{
		{ItemID: item.ID, Quantity: 3},
		{ItemID: "no-such-item", Quantity: 1},
	}, "")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	// The valid line must not have been written either.
	reqs, total, err := svc.List(ctx, stockMgr, false, model.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, reqs)
}

func TestSubmit_RejectsNonPositiveQuantity(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	_, err := svc.Submit(context.Background(), staffActor, []model.RequestLine{{ItemID: item.ID, Quantity: 0}}, "")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INVALID_QUANTITY", apiErr.Code)

	_, err = svc.Submit(context.Background(), staffActor, []model.RequestLine{{ItemID: item.ID, Quantity: -2}}, "")
	apiErr = asAPIError(t, err)
	assert.Equal(t, "INVALID_QUANTITY", apiErr.Code)
}

func TestApprove_DepartmentHeadThenStockManager(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)

	got, err := svc.Approve(ctx, deptHead, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.RequestDepartmentApproved, got.Status)
	assert.Equal(t, deptHead.UserID, got.ApproverID)
	assert.Equal(t, model.RoleDepartmentHead, got.ApproverRoleSnapshot)
	require.NotNil(t, got.ResponseDate)

	got, err = svc.Approve(ctx, stockMgr, req.ID, "go ahead")
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, got.Status)
	assert.Equal(t, stockMgr.UserID, got.ApproverID)
	assert.Equal(t, "go ahead", got.AdminNotes)
}

func TestApprove_StockManagerSkipsDepartmentStep(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	req := submitOne(t, svc, item.ID, 5)

	got, err := svc.Approve(context.Background(), stockMgr, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, got.Status)
}

func TestApprove_StaffForbidden(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	req := submitOne(t, svc, item.ID, 5)

	_, err := svc.Approve(context.Background(), staffActor, req.ID, "")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestApprove_AlreadyApproved(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	// A second approval is a transition error, not a silent no-op.
	_, err = svc.Approve(ctx, stockMgr, req.ID, "")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
	assert.Equal(t, 409, apiErr.StatusCode)
}

func TestReject_RequiresReason(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	req := submitOne(t, svc, item.ID, 5)

	_, err := svc.Reject(context.Background(), deptHead, req.ID, "")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestReject_IsTerminal(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)

	got, err := svc.Reject(ctx, deptHead, req.ID, "budget exhausted")
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, got.Status)
	assert.Equal(t, "budget exhausted", got.RejectionReason)

	// Nothing moves a rejected request, not even an admin approval.
	_, err = svc.Approve(ctx, adminActor, req.ID, "")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
}

func TestReject_DepartmentHeadAfterOwnApproval(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, deptHead, req.ID, "")
	require.NoError(t, err)

	// The endorsement can be withdrawn until a stock manager signs off.
	got, err := svc.Reject(ctx, deptHead, req.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, got.Status)
	assert.Equal(t, "changed my mind", got.RejectionReason)
	assert.Equal(t, deptHead.UserID, got.ApproverID)
}

func TestReject_DepartmentHeadAfterFinalApproval(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	// Approved requests are past the rejection window for anyone.
	_, err = svc.Reject(ctx, deptHead, req.ID, "too late")
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
}

func TestFulfill_FullAmount(t *testing.T) {
	svc, invSvc, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	got, err := svc.Fulfill(ctx, stockMgr, req.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, model.RequestFulfilled, got.Status)
	assert.Equal(t, 5, got.FulfilledQuantity)

	stock, err := invSvc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stock.Quantity)
}

func TestFulfill_PartialKeepsApproved(t *testing.T) {
	svc, invSvc, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 10)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	got, err := svc.Fulfill(ctx, stockMgr, req.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, got.Status)
	assert.Equal(t, 4, got.FulfilledQuantity)
	assert.Equal(t, 6, got.Remaining())

	got, err = svc.Fulfill(ctx, stockMgr, req.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, model.RequestFulfilled, got.Status)
	assert.Equal(t, 10, got.FulfilledQuantity)

	stock, err := invSvc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Quantity)
}

func TestFulfill_OverFulfillment(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	_, err = svc.Fulfill(ctx, stockMgr, req.ID, 6)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "OVER_FULFILLMENT", apiErr.Code)
	assert.Equal(t, 422, apiErr.StatusCode)

	_, err = svc.Fulfill(ctx, stockMgr, req.ID, 3)
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, stockMgr, req.ID, 3)
	apiErr = asAPIError(t, err)
	assert.Equal(t, "OVER_FULFILLMENT", apiErr.Code)
}

func TestFulfill_InsufficientStock(t *testing.T) {
	svc, invSvc, item := newRequestFixture(t, 2)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	_, err = svc.Fulfill(ctx, stockMgr, req.ID, 5)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INSUFFICIENT_STOCK", apiErr.Code)

	// The failed fulfillment must leave both rows untouched.
	got, err := svc.Get(ctx, stockMgr, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FulfilledQuantity)
	assert.Equal(t, model.RequestApproved, got.Status)

	stock, err := invSvc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stock.Quantity)
}

func TestFulfill_RequiresApprovedStatus(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	req := submitOne(t, svc, item.ID, 5)

	_, err := svc.Fulfill(context.Background(), stockMgr, req.ID, 5)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
}

func TestFulfill_OnlyStockManager(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	for _, caller := range []model.Identity{staffActor, deptHead, adminActor} {
		_, err := svc.Fulfill(ctx, caller, req.ID, 1)
		apiErr := asAPIError(t, err)
		assert.Equal(t, "FORBIDDEN", apiErr.Code, "role %s must not fulfill", caller.Role)
	}
}

func TestFulfill_ConcurrentNeverOverdraws(t *testing.T) {
	svc, invSvc, item := newRequestFixture(t, 10)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 10)
	_, err := svc.Approve(ctx, stockMgr, req.ID, "")
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Fulfill(ctx, stockMgr, req.ID, 2)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	// 10 requested, 2 each: exactly 5 may win.
	assert.Equal(t, 5, succeeded)

	got, err := svc.Get(ctx, stockMgr, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.FulfilledQuantity)
	assert.Equal(t, model.RequestFulfilled, got.Status)

	stock, err := invSvc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Quantity)
	assert.Equal(t, model.ItemOutOfStock, stock.Status)
}

func TestFulfill_ConcurrentRequestsShareOneItem(t *testing.T) {
	svc, invSvc, item := newRequestFixture(t, 10)
	ctx := context.Background()

	other := model.Identity{UserID: "u-other", Name: "Robin Other", Role: model.RoleStaff}
	first := submitOne(t, svc, item.ID, 6)
	second, err := svc.Submit(ctx, other, []model.RequestLine{{ItemID: item.ID, Quantity: 6}}, "")
	require.NoError(t, err)
	require.Len(t, second, 1)

	_, err = svc.Approve(ctx, stockMgr, first.ID, "")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, stockMgr, second[0].ID, "")
	require.NoError(t, err)

	// 10 in stock, two approved requests for 6 each: only one can be served.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second[0].ID} {
		wg.Add(1)
		go func(n int, requestID string) {
			defer wg.Done()
			_, errs[n] = svc.Fulfill(ctx, stockMgr, requestID, 6)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			apiErr := asAPIError(t, err)
			assert.Equal(t, "INSUFFICIENT_STOCK", apiErr.Code)
		}
	}
	assert.Equal(t, 1, succeeded)

	stock, err := invSvc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stock.Quantity)

	// The loser keeps its approval and has drawn nothing.
	fulfilled, remaining := 0, 0
	for _, id := range []string{first.ID, second[0].ID} {
		got, err := svc.Get(ctx, stockMgr, id)
		require.NoError(t, err)
		switch got.Status {
		case model.RequestFulfilled:
			fulfilled++
			assert.Equal(t, 6, got.FulfilledQuantity)
		case model.RequestApproved:
			remaining++
			assert.Equal(t, 0, got.FulfilledQuantity)
		default:
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
	assert.Equal(t, 1, fulfilled)
	assert.Equal(t, 1, remaining)
}

func TestCancel(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)

	got, err := svc.Cancel(ctx, staffActor, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCancelled, got.Status)
}

func TestCancel_OnlyOwner(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)

	req := submitOne(t, svc, item.ID, 5)

	other := model.Identity{UserID: "u-other", Name: "Robin Other", Role: model.RoleStaff}
	_, err := svc.Cancel(context.Background(), other, req.ID)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestCancel_OnlyPending(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)
	_, err := svc.Approve(ctx, deptHead, req.ID, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, staffActor, req.ID)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
}

func TestGet_StaffScopedToOwn(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	req := submitOne(t, svc, item.ID, 5)

	other := model.Identity{UserID: "u-other", Name: "Robin Other", Role: model.RoleStaff}
	_, err := svc.Get(ctx, other, req.ID)
	apiErr := asAPIError(t, err)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)

	// Approver roles see everything.
	got, err := svc.Get(ctx, deptHead, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
}

func TestList_StaffAlwaysScopedToOwn(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	submitOne(t, svc, item.ID, 1)
	other := model.Identity{UserID: "u-other", Name: "Robin Other", Role: model.RoleStaff}
	_, err := svc.Submit(ctx, other, []model.RequestLine{{ItemID: item.ID, Quantity: 2}}, "")
	require.NoError(t, err)

	reqs, total, err := svc.List(ctx, staffActor, false, model.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reqs, 1)
	assert.Equal(t, staffActor.UserID, reqs[0].RequesterID)

	// Managers see the full set.
	_, total, err = svc.List(ctx, stockMgr, false, model.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestList_StatusFilter(t *testing.T) {
	svc, _, item := newRequestFixture(t, 20)
	ctx := context.Background()

	a := submitOne(t, svc, item.ID, 1)
	submitOne(t, svc, item.ID, 2)
	_, err := svc.Approve(ctx, stockMgr, a.ID, "")
	require.NoError(t, err)

	reqs, total, err := svc.List(ctx, stockMgr, false, model.RequestFilter{Status: model.RequestApproved})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reqs, 1)
	assert.Equal(t, a.ID, reqs[0].ID)

	_, _, err = svc.List(ctx, stockMgr, false, model.RequestFilter{Status: "Bogus"})
	apiErr := asAPIError(t, err)
	assert.Equal(t, "BAD_REQUEST", apiErr.Code)
}
