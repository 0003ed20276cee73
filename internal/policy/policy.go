// Package policy implements the role-based transition gate for item
// requests. It is pure: no store access, no side effects. The lifecycle
// engine consults it before touching any row, so every transition is
// enforced server-side regardless of what a client claims.
package policy

import "school-inventory-api/internal/model"

// CanTransition reports whether role may move a request from one status
// to another. Ownership rules (cancel only by the original requester) are
// checked separately by the lifecycle engine; this table only covers roles.
func CanTransition(role model.Role, from, to model.RequestStatus) bool {
	switch role {
	case model.RoleStaff:
		// Staff may only withdraw their own pending request.
		return from == model.RequestPending && to == model.RequestCancelled

	case model.RoleDepartmentHead:
		switch from {
		case model.RequestPending:
			return to == model.RequestDepartmentApproved ||
				to == model.RequestApproved ||
				to == model.RequestRejected
		case model.RequestDepartmentApproved:
			// A department head may still withdraw their endorsement until
			// final approval; moving the request forward is not theirs.
			return to == model.RequestRejected
		}
		return false

	case model.RoleStockManager:
		switch from {
		case model.RequestPending, model.RequestDepartmentApproved:
			return to == model.RequestApproved || to == model.RequestRejected
		case model.RequestApproved:
			// Fulfillment, including partial fulfillment that keeps the
			// request Approved.
			return to == model.RequestFulfilled || to == model.RequestApproved
		}
		return false

	case model.RoleAdmin:
		// Admins approve and reject from any pending-like state but do not
		// release stock; fulfillment stays with the stock manager.
		switch from {
		case model.RequestPending, model.RequestDepartmentApproved:
			return to == model.RequestApproved || to == model.RequestRejected
		}
		return false
	}

	return false
}

// ApprovalTarget returns the status an approval by role lands on.
// A department head's approval is the intermediate department step; stock
// managers and admins grant final approval.
func ApprovalTarget(role model.Role) model.RequestStatus {
	if role == model.RoleDepartmentHead {
		return model.RequestDepartmentApproved
	}
	return model.RequestApproved
}

// CanFulfill reports whether role may deduct stock against a request.
func CanFulfill(role model.Role) bool {
	return role == model.RoleStockManager
}

// CanManageItems reports whether role may create items or adjust stock.
func CanManageItems(role model.Role) bool {
	return role == model.RoleStockManager || role == model.RoleAdmin
}
