package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForQuantity(t *testing.T) {
	assert.Equal(t, ItemOutOfStock, StatusForQuantity(0))
	assert.Equal(t, ItemOutOfStock, StatusForQuantity(-3))
	assert.Equal(t, ItemLowStock, StatusForQuantity(1))
	assert.Equal(t, ItemLowStock, StatusForQuantity(4))
	assert.Equal(t, ItemAvailable, StatusForQuantity(5))
	assert.Equal(t, ItemAvailable, StatusForQuantity(100))
}

func TestRecalcStatus(t *testing.T) {
	item := InventoryItem{Quantity: 10}
	item.RecalcStatus()
	assert.Equal(t, ItemAvailable, item.Status)

	item.Quantity = 3
	item.RecalcStatus()
	assert.Equal(t, ItemLowStock, item.Status)

	item.Quantity = 0
	item.RecalcStatus()
	assert.Equal(t, ItemOutOfStock, item.Status)
}

func TestNormalizedName(t *testing.T) {
	item := InventoryItem{Name: "  Graphing Calculator "}
	assert.Equal(t, "graphing calculator", item.NormalizedName())
}

func TestRequestStatus_Terminal(t *testing.T) {
	assert.False(t, RequestPending.Terminal())
	assert.False(t, RequestDepartmentApproved.Terminal())
	assert.False(t, RequestApproved.Terminal())
	assert.True(t, RequestRejected.Terminal())
	assert.True(t, RequestFulfilled.Terminal())
	assert.True(t, RequestCancelled.Terminal())
}

func TestItemRequest_Remaining(t *testing.T) {
	req := ItemRequest{RequestedQuantity: 10, FulfilledQuantity: 4}
	assert.Equal(t, 6, req.Remaining())
}
