package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expensedesk/internal/amqp"
	"expensedesk/internal/core"
	"expensedesk/internal/sheets"
)

// NotificationStore is the storage surface the worker needs.
type NotificationStore interface {
	ListAdminUsernames(ctx context.Context) ([]string, error)
	CreateNotification(ctx context.Context, username, message string) error
}

// NotifyWorker fans expense events out to admin notifications and,
// when a mirror is configured, to the external history sheet. Mirror
// rows are queued and flushed in batches by RunMirror, so a slow or
// unavailable sheet never blocks event consumption.
type NotifyWorker struct {
	store  NotificationStore
	mirror sheets.HistoryAppender

	mu      sync.Mutex
	pending []sheets.HistoryEntry
}

func NewNotifyWorker(store NotificationStore, mirror sheets.HistoryAppender) *NotifyWorker {
	return &NotifyWorker{
		store:  store,
		mirror: mirror,
	}
}

// HandleExpenseEvent processes a single expense event from AMQP.
// Notification failures are returned so the delivery is requeued; the
// mirror row is only enqueued here and written later by RunMirror.
func (w *NotifyWorker) HandleExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	slog.InfoContext(ctx, "Processing expense event",
		"kind", msg.Kind,
		"username", msg.Username,
		"date", msg.Date)

	message := eventMessage(msg)

	admins, err := w.store.ListAdminUsernames(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	for _, admin := range admins {
		if admin == msg.Username {
			// Actors don't need to hear about their own changes.
			continue
		}
		if err := w.store.CreateNotification(ctx, admin, message); err != nil {
			return fmt.Errorf("notify admin %s: %w", admin, err)
		}
	}

	if w.mirror != nil {
		w.mu.Lock()
		w.pending = append(w.pending, sheets.HistoryEntry{
			Kind:        msg.Kind,
			Username:    msg.Username,
			Date:        msg.Date,
			AmountPaise: msg.AmountPaise,
			RecordedAt:  msg.Timestamp,
		})
		w.mu.Unlock()
	}

	return nil
}

// RunMirror flushes queued history rows every interval, at most batchSize
// rows per tick. A final flush runs on shutdown so queued rows are not
// lost with the process.
func (w *NotifyWorker) RunMirror(ctx context.Context, interval time.Duration, batchSize int) error {
	if w.mirror == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flushMirror(ctx, batchSize)
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			for w.PendingMirrorRows() > 0 {
				w.flushMirror(final, batchSize)
			}
			return ctx.Err()
		}
	}
}

// flushMirror appends up to batchSize queued rows to the sheet. Append
// failures are logged and the row dropped; the sheet is a convenience
// copy, not the system of record.
func (w *NotifyWorker) flushMirror(ctx context.Context, batchSize int) {
	w.mu.Lock()
	n := len(w.pending)
	if n > batchSize {
		n = batchSize
	}
	batch := w.pending[:n:n]
	w.pending = w.pending[n:]
	w.mu.Unlock()

	for _, entry := range batch {
		if _, err := w.mirror.AppendHistory(ctx, entry); err != nil {
			slog.WarnContext(ctx, "History mirror append failed",
				"error", err,
				"kind", entry.Kind,
				"username", entry.Username)
		}
	}
}

// PendingMirrorRows reports how many history rows await the next flush.
func (w *NotifyWorker) PendingMirrorRows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func eventMessage(msg *amqp.ExpenseEventMessage) string {
	switch msg.Kind {
	case amqp.KindCreated:
		amount := core.Money{Paise: msg.AmountPaise}
		return fmt.Sprintf("%s added an expense of ₹%s on %s", msg.Username, amount.Format(), msg.Date)
	case amqp.KindUpdated:
		amount := core.Money{Paise: msg.AmountPaise}
		return fmt.Sprintf("%s updated an order to ₹%s on %s", msg.Username, amount.Format(), msg.Date)
	case amqp.KindDeleted:
		return fmt.Sprintf("%s deleted all orders for %s", msg.Username, msg.Date)
	default:
		return fmt.Sprintf("%s changed expenses on %s", msg.Username, msg.Date)
	}
}
