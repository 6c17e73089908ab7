// Package view implements the client-side controllers of the expense UI: the
// recent-expenses table with its edit/delete authorization workflow, and the
// role-aware sidebar. Controllers own their view state, read the persisted
// session once at construction, and talk to the backend through the Backend
// port.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"expensedesk/internal/authz"
	"expensedesk/internal/core"
	"expensedesk/internal/session"
)

// RecentLimit caps how many records the table holds per refresh cycle.
const RecentLimit = 10

// EditingSession is the transient state of an in-progress edit. It exists
// between a successful InitiateEdit and CancelEdit/OnUpdateSuccess; it is
// never persisted.
type EditingSession struct {
	Date       core.Date
	User       core.UserRef
	OrderItems []core.OrderItem
	OrderID    int64
}

// ConfirmFunc asks the user to confirm a destructive action. Returning false
// aborts it.
type ConfirmFunc func(message string) bool

// Row is the render model for one table row: display strings plus the
// per-action gating with its human-readable reason when disabled.
type Row struct {
	Key                  string
	DateDisplay          string
	UserDisplay          string
	Count                int
	AmountDisplay        string
	CanEdit              bool
	EditDisabledReason   string
	CanDelete            bool
	DeleteDisabledReason string
	Record               core.ExpenseRecord
}

// RecentTable owns the ten most recent expense records and brokers edit and
// delete requests under the authorization rules. The session user is read
// once at construction and treated as immutable for the controller's
// lifetime.
type RecentTable struct {
	backend Backend
	user    core.SessionUser
	hasUser bool

	// Now supplies the clock used for "today" checks. Tests override it.
	Now func() time.Time

	mu      sync.Mutex
	records []core.ExpenseRecord
	loading bool
	editing *EditingSession
	closed  bool
}

// NewRecentTable builds the controller, snapshotting the current session
// user from the store.
func NewRecentTable(backend Backend, sessions *session.Store) *RecentTable {
	user, hasUser := sessions.CurrentUser()
	return &RecentTable{
		backend: backend,
		user:    user,
		hasUser: hasUser,
		Now:     time.Now,
	}
}

func (rt *RecentTable) today() core.Date {
	return core.DateOf(rt.Now())
}

// Refresh fetches the expense list and keeps the first RecentLimit entries,
// newest-first per backend order. On failure the previous records stay
// visible; the error is logged and returned, and no retry is attempted.
func (rt *RecentTable) Refresh(ctx context.Context) error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.loading = true
	rt.mu.Unlock()

	records, err := rt.backend.ListExpenses(ctx)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.loading = false
	if rt.closed {
		// Response landed after teardown; discard it.
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch recent expenses",
			"error", err, "component", "view", "operation", "refresh")
		return fmt.Errorf("fetch recent expenses: %w", err)
	}
	if len(records) > RecentLimit {
		records = records[:RecentLimit]
	}
	rt.records = records
	return nil
}

// Loading reports whether a refresh is in flight.
func (rt *RecentTable) Loading() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.loading
}

// Records returns the current snapshot of fetched records.
func (rt *RecentTable) Records() []core.ExpenseRecord {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]core.ExpenseRecord, len(rt.records))
	copy(out, rt.records)
	return out
}

// Rows computes the render models for the current records, evaluating the
// edit and delete rules against today's date and the session user.
func (rt *RecentTable) Rows() []Row {
	today := rt.today()
	records := rt.Records()

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		row := Row{
			Key:           RowKey(rec, i),
			DateDisplay:   formatDisplayDate(rec.Date),
			UserDisplay:   rec.User.Display(),
			Count:         rec.DisplayCount(),
			AmountDisplay: "₹" + rec.DisplayAmount().Format(),
			Record:        rec,
		}
		if d := authz.CheckEdit(rec, rt.user.Username, today); d != nil {
			row.EditDisabledReason = d.Message
		} else {
			row.CanEdit = true
		}
		if d := authz.CheckDelete(rec, today); d != nil {
			row.DeleteDisabledReason = d.Message
		} else {
			row.CanDelete = true
		}
		rows = append(rows, row)
	}
	return rows
}

// RowKey derives a stable, collision-resistant key for a record: order ID
// first, then the generic ID, then a composite of username, date and row
// index with placeholders for the missing parts.
func RowKey(rec core.ExpenseRecord, index int) string {
	if rec.OrderID != 0 {
		return "order-" + strconv.FormatInt(rec.OrderID, 10)
	}
	if rec.ID != 0 {
		return "rec-" + strconv.FormatInt(rec.ID, 10)
	}
	username := rec.User.Key()
	if username == "" {
		username = "unknown"
	}
	date := rec.Date.String()
	if date == "" {
		date = "nodate"
	}
	return username + "-" + date + "-" + strconv.Itoa(index)
}

// InitiateEdit re-validates the edit rules against the current clock (the
// rendered state may be stale), then fetches the order lines for the
// record's (date, user) and opens an editing session seeded with them.
// A Denial is returned as-is so the caller can show its specific message.
func (rt *RecentTable) InitiateEdit(ctx context.Context, rec core.ExpenseRecord) error {
	if !rt.hasUser {
		return authz.ErrNoSession
	}
	if d := authz.CheckEdit(rec, rt.user.Username, rt.today()); d != nil {
		return d
	}

	items, err := rt.backend.ListOrderItemsByDateAndUser(ctx, rec.Date, rec.User.Key())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch order items for edit",
			"error", err, "record_date", rec.Date.String(),
			"username", rec.User.Key(), "component", "view", "operation", "fetch")
		return fmt.Errorf("fetch order items: %w", err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}
	rt.editing = &EditingSession{
		Date:       rec.Date,
		User:       rec.User,
		OrderItems: items,
		OrderID:    rec.OrderID,
	}
	return nil
}

// InitiateDelete asks for confirmation naming the affected user and date,
// then deletes every order for that (date, user) pair and refreshes. A
// declined confirmation is a no-op. On failure the table state is unchanged.
func (rt *RecentTable) InitiateDelete(ctx context.Context, rec core.ExpenseRecord, confirm ConfirmFunc) error {
	if !rt.hasUser {
		return authz.ErrNoSession
	}
	msg := fmt.Sprintf("Are you sure you want to delete all orders for %s on %s?",
		rec.User.Display(), rec.Date.String())
	if confirm == nil || !confirm(msg) {
		return nil
	}

	if err := rt.backend.DeleteOrdersByDateAndUser(ctx, rec.Date, rec.User.Key()); err != nil {
		slog.ErrorContext(ctx, "Failed to delete orders",
			"error", err, "record_date", rec.Date.String(),
			"username", rec.User.Key(), "component", "view", "operation", "delete")
		return fmt.Errorf("delete orders: %w", err)
	}

	return rt.Refresh(ctx)
}

// Editing returns the active editing session, if any.
func (rt *RecentTable) Editing() (EditingSession, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.editing == nil {
		return EditingSession{}, false
	}
	return *rt.editing, true
}

// CancelEdit discards the editing session without any backend call.
func (rt *RecentTable) CancelEdit() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.editing = nil
}

// OnUpdateSuccess is the callback for the entry form reporting a committed
// update: the editing session ends and the table refreshes.
func (rt *RecentTable) OnUpdateSuccess(ctx context.Context) error {
	rt.mu.Lock()
	rt.editing = nil
	rt.mu.Unlock()
	return rt.Refresh(ctx)
}

// Close marks the controller as torn down. In-flight responses arriving
// afterwards are discarded instead of mutating dead state.
func (rt *RecentTable) Close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closed = true
	rt.editing = nil
}

// CurrentUser exposes the snapshotted session user.
func (rt *RecentTable) CurrentUser() (core.SessionUser, bool) {
	return rt.user, rt.hasUser
}

func formatDisplayDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}
