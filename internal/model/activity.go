package model

import "time"

// Activity actions recorded in the audit trail.
const (
	ActivityItemAdded     = "ITEM_ADDED"
	ActivityItemAdjusted  = "ITEM_ADJUSTED"
	ActivityItemDeleted   = "ITEM_DELETED"
	ActivityReqSubmitted  = "REQUEST_SUBMITTED"
	ActivityReqApproved   = "REQUEST_APPROVED"
	ActivityReqRejected   = "REQUEST_REJECTED"
	ActivityReqFulfilled  = "REQUEST_FULFILLED"
	ActivityReqCancelled  = "REQUEST_CANCELLED"
)

// ActivityEntry is one row in the activity log. Every lifecycle transition
// and stock adjustment appends an entry.
type ActivityEntry struct {
	ID            int64     `json:"id"`
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	Action        string    `json:"action"`
	EntityID      string    `json:"entity_id"`
	EntityName    string    `json:"entity_name"`
	QuantityDelta int       `json:"quantity_delta,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
