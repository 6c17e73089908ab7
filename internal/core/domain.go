package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// RoleAdmin is the role name that unlocks the admin navigation and the
// all-users expense listing. Matching is exact and case-sensitive.
const RoleAdmin = "Admin"

type (
	// Date is a calendar date. The canonical wire form is "YYYY-MM-DD".
	Date struct {
		time.Time
	}

	// UserRef is the user attached to an expense record. The backend sends
	// either a raw username string or an object with username/name, so both
	// forms decode into the same value.
	UserRef struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	}

	// ExpenseRecord is one row of the expense listing. Owned by the backend;
	// the client holds a read-only copy per fetch cycle. A zero OrderID/ID
	// means the backend sent no identifier for that row.
	ExpenseRecord struct {
		OrderID     int64   `json:"order_id,omitempty"`
		ID          int64   `json:"id,omitempty"`
		Date        Date    `json:"date"`
		User        UserRef `json:"user"`
		TotalCount  int     `json:"total_count,omitempty"`
		TotalAmount *Money  `json:"total_amount,omitempty"`
		Amount      *Money  `json:"amount,omitempty"`
		IsRefunded  bool    `json:"is_refunded"`
	}

	// OrderItem is a single line of an order, fetched when an edit starts.
	OrderItem struct {
		ID        int64  `json:"id"`
		ItemID    int64  `json:"item"`
		Name      string `json:"item_name,omitempty"`
		Count     int    `json:"count"`
		Price     Money  `json:"price"`
		AddedDate Date   `json:"added_date"`
	}

	Role struct {
		RoleName string `json:"role_name"`
	}

	// SessionUser is the logged-in user as persisted under the "user" key.
	SessionUser struct {
		Username string `json:"username"`
		Name     string `json:"name,omitempty"`
		Role     Role   `json:"role"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyUsername = errors.New("empty username")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates a point in time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// String renders the canonical "YYYY-MM-DD" form. Zero dates render empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Equal compares two dates by calendar day, ignoring time of day and zone.
func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Key returns the identifier used for ownership comparison.
func (u UserRef) Key() string {
	return u.Username
}

// Display returns the human-facing name, preferring the full name.
func (u UserRef) Display() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserRef{Username: s}
		return nil
	}
	type alias UserRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*u = UserRef(a)
	return nil
}

func (u UserRef) MarshalJSON() ([]byte, error) {
	if u.Name == "" {
		return json.Marshal(u.Username)
	}
	type alias UserRef
	return json.Marshal(alias(u))
}

// DisplayAmount resolves the amount to render: total_amount wins over amount,
// and a record carrying neither renders as zero.
func (r ExpenseRecord) DisplayAmount() Money {
	if r.TotalAmount != nil {
		return *r.TotalAmount
	}
	if r.Amount != nil {
		return *r.Amount
	}
	return Money{}
}

// DisplayCount resolves the item count to render, defaulting to 1.
func (r ExpenseRecord) DisplayCount() int {
	if r.TotalCount > 0 {
		return r.TotalCount
	}
	return 1
}

// IsAdmin reports whether the session user carries the admin role.
func (su SessionUser) IsAdmin() bool {
	return su.Role.RoleName == RoleAdmin
}

func (su SessionUser) Validate() error {
	if strings.TrimSpace(su.Username) == "" {
		return ErrEmptyUsername
	}
	return nil
}
