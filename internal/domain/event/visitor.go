package event

import "fmt"

// Visitor handles every event kind. Adding a variant breaks every
// implementation until it is handled.
type Visitor interface {
	AccountCreated(AccountCreated) error
	AccountUpdated(AccountUpdated) error
	AccountDeleted(AccountDeleted) error
	PasswordChanged(PasswordChanged) error
	AccountApproved(AccountApproved) error
	AccountBlocked(AccountBlocked) error
	RolesGranted(RolesGranted) error
}

// Visit dispatches e to the matching Visitor method.
func Visit(e Event, v Visitor) error {
	switch ev := e.(type) {
	case AccountCreated:
		return v.AccountCreated(ev)
	case AccountUpdated:
		return v.AccountUpdated(ev)
	case AccountDeleted:
		return v.AccountDeleted(ev)
	case PasswordChanged:
		return v.PasswordChanged(ev)
	case AccountApproved:
		return v.AccountApproved(ev)
	case AccountBlocked:
		return v.AccountBlocked(ev)
	case RolesGranted:
		return v.RolesGranted(ev)
	default:
		return fmt.Errorf("unknown event %T", e)
	}
}
