// Package authz holds the row-level authorization rules for expense records.
// All checks are synchronous and pure: they never touch the backend, so the
// UI can evaluate them per render and again right before acting.
package authz

import (
	"errors"

	"expensedesk/internal/core"
)

// Reason identifies why an action on a record is denied.
type Reason string

const (
	ReasonRefunded Reason = "refunded"
	ReasonNotToday Reason = "not_today"
	ReasonNotOwner Reason = "not_owner"
)

// Denial is a user-facing refusal of an edit or delete. It is an expected
// outcome, not an error in the fetch/mutation sense, but it satisfies error
// so callers can bubble it through the usual paths.
type Denial struct {
	Reason  Reason
	Message string
}

func (d *Denial) Error() string { return d.Message }

var (
	denialRefunded = &Denial{Reason: ReasonRefunded, Message: "Refunded entries cannot be edited"}
	denialNotToday = &Denial{Reason: ReasonNotToday, Message: "Only today's entries can be edited"}
	denialNotOwner = &Denial{Reason: ReasonNotOwner, Message: "You can only edit your own entries"}
	denialDelete   = &Denial{Reason: ReasonNotToday, Message: "Only today's entries can be deleted"}
)

// ErrNoSession is returned when an edit or delete is initiated without a
// logged-in user.
var ErrNoSession = errors.New("no session user")

// CheckEdit reports whether the record may be edited by username on the given
// day. All three rules must hold; the first violated rule wins so the caller
// can surface one specific message. The rule order matches the rendered
// tooltip precedence: refund status, then date, then ownership.
func CheckEdit(rec core.ExpenseRecord, username string, today core.Date) *Denial {
	if rec.IsRefunded {
		return denialRefunded
	}
	if !rec.Date.Equal(today) {
		return denialNotToday
	}
	if username == "" || rec.User.Key() != username {
		return denialNotOwner
	}
	return nil
}

// CheckDelete reports whether the record may be deleted on the given day.
// Delete intentionally checks the date only; ownership and refund status are
// not consulted.
func CheckDelete(rec core.ExpenseRecord, today core.Date) *Denial {
	if !rec.Date.Equal(today) {
		return denialDelete
	}
	return nil
}

// CanEdit is the boolean form of CheckEdit.
func CanEdit(rec core.ExpenseRecord, username string, today core.Date) bool {
	return CheckEdit(rec, username, today) == nil
}

// CanDelete is the boolean form of CheckDelete.
func CanDelete(rec core.ExpenseRecord, today core.Date) bool {
	return CheckDelete(rec, today) == nil
}
