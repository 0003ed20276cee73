package model

import (
	"strings"
	"time"
)

// ItemStatus is derived from quantity and never set directly.
type ItemStatus string

const (
	ItemAvailable  ItemStatus = "Available"
	ItemLowStock   ItemStatus = "LowStock"
	ItemOutOfStock ItemStatus = "OutOfStock"
)

// LowStockThreshold is the quantity below which an item counts as low stock.
const LowStockThreshold = 5

// StatusForQuantity computes the derived stock status for a quantity.
func StatusForQuantity(quantity int) ItemStatus {
	switch {
	case quantity <= 0:
		return ItemOutOfStock
	case quantity < LowStockThreshold:
		return ItemLowStock
	default:
		return ItemAvailable
	}
}

// InventoryItem represents a single catalog entry.
// Status is recomputed from Quantity on every load and mutation; it is
// never persisted as an independent column.
type InventoryItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Quantity  int        `json:"quantity"`
	Status    ItemStatus `json:"status"`
	Location  string     `json:"location"`
	OwnerID   string     `json:"owner_id,omitempty"`
	DateAdded time.Time  `json:"date_added"`
}

// RecalcStatus refreshes the derived status field from the quantity.
func (i *InventoryItem) RecalcStatus() {
	i.Status = StatusForQuantity(i.Quantity)
}

// NormalizedName returns the name folded for case-insensitive uniqueness checks.
func (i *InventoryItem) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(i.Name))
}

// ItemFilter holds list query parameters for the item catalog.
type ItemFilter struct {
	Category string
	Status   ItemStatus
	Search   string
	Page     int
	Limit    int
}
