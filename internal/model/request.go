package model

import "time"

// RequestStatus is the closed set of item request states.
type RequestStatus string

const (
	RequestPending            RequestStatus = "Pending"
	RequestDepartmentApproved RequestStatus = "DepartmentApproved"
	RequestApproved           RequestStatus = "Approved"
	RequestRejected           RequestStatus = "Rejected"
	RequestFulfilled          RequestStatus = "Fulfilled"
	RequestCancelled          RequestStatus = "Cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestFulfilled || s == RequestCancelled
}

// Valid reports whether s is a known status value.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestDepartmentApproved, RequestApproved,
		RequestRejected, RequestFulfilled, RequestCancelled:
		return true
	}
	return false
}

// ItemRequest is one requested line for a single inventory item.
// Name snapshots decouple request history from later item or user renames.
type ItemRequest struct {
	ID                    string        `json:"id"`
	ItemID                string        `json:"item_id"`
	ItemNameSnapshot      string        `json:"item_name"`
	RequestedQuantity     int           `json:"requested_quantity"`
	FulfilledQuantity     int           `json:"fulfilled_quantity"`
	RequesterID           string        `json:"requester_id"`
	RequesterNameSnapshot string        `json:"requester_name"`
	Status                RequestStatus `json:"status"`
	ApproverID            string        `json:"approver_id,omitempty"`
	ApproverNameSnapshot  string        `json:"approver_name,omitempty"`
	ApproverRoleSnapshot  Role          `json:"approver_role,omitempty"`
	RejectionReason       string        `json:"rejection_reason,omitempty"`
	Notes                 string        `json:"notes,omitempty"`
	AdminNotes            string        `json:"admin_notes,omitempty"`
	RequestDate           time.Time     `json:"request_date"`
	ResponseDate          *time.Time    `json:"response_date,omitempty"`
}

// Remaining returns the quantity still outstanding against the request.
func (r *ItemRequest) Remaining() int {
	return r.RequestedQuantity - r.FulfilledQuantity
}

// RequestLine is one (item, quantity) pair in a batch submission.
type RequestLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// RequestFilter holds list query parameters for requests.
type RequestFilter struct {
	RequesterID string
	Status      RequestStatus
	Page        int
	Limit       int
}
