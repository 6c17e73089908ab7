package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"expensedesk/internal/amqp"
	"expensedesk/internal/sheets"
	"expensedesk/internal/sheets/memory"
)

type fakeStore struct {
	admins    []string
	adminsErr error
	notifyErr error
	notified  []string // "username|message"
}

func (f *fakeStore) ListAdminUsernames(_ context.Context) ([]string, error) {
	return f.admins, f.adminsErr
}

func (f *fakeStore) CreateNotification(_ context.Context, username, message string) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notified = append(f.notified, username+"|"+message)
	return nil
}

func TestHandleExpenseEventNotifiesAdmins(t *testing.T) {
	store := &fakeStore{admins: []string{"maya", "ravi"}}
	w := NewNotifyWorker(store, nil)

	msg := &amqp.ExpenseEventMessage{Kind: amqp.KindDeleted, Username: "anita", Date: "2025-06-01"}
	if err := w.HandleExpenseEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v", err)
	}

	if len(store.notified) != 2 {
		t.Fatalf("notified = %v, want both admins", store.notified)
	}
	for _, n := range store.notified {
		if !strings.Contains(n, "anita deleted all orders for 2025-06-01") {
			t.Errorf("notification %q missing delete message", n)
		}
	}
}

func TestHandleExpenseEventSkipsActingAdmin(t *testing.T) {
	store := &fakeStore{admins: []string{"maya", "ravi"}}
	w := NewNotifyWorker(store, nil)

	msg := &amqp.ExpenseEventMessage{Kind: amqp.KindCreated, Username: "ravi", Date: "2025-06-01", AmountPaise: 12550}
	if err := w.HandleExpenseEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v", err)
	}

	if len(store.notified) != 1 || !strings.HasPrefix(store.notified[0], "maya|") {
		t.Errorf("notified = %v, want only maya", store.notified)
	}
	if !strings.Contains(store.notified[0], "₹125.50") {
		t.Errorf("notification %q missing formatted amount", store.notified[0])
	}
}

func TestHandleExpenseEventStoreFailure(t *testing.T) {
	store := &fakeStore{admins: []string{"maya"}, notifyErr: errors.New("db is down")}
	w := NewNotifyWorker(store, nil)

	msg := &amqp.ExpenseEventMessage{Kind: amqp.KindDeleted, Username: "anita", Date: "2025-06-01"}
	if err := w.HandleExpenseEvent(context.Background(), msg); err == nil {
		t.Fatal("HandleExpenseEvent() = nil, want error so the delivery requeues")
	}
}

func TestHandleExpenseEventQueuesMirrorRow(t *testing.T) {
	store := &fakeStore{admins: []string{"maya"}}
	mirror := memory.New()
	w := NewNotifyWorker(store, mirror)

	msg := &amqp.ExpenseEventMessage{Kind: amqp.KindUpdated, Username: "anita", Date: "2025-06-01", AmountPaise: 35000}
	if err := w.HandleExpenseEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v", err)
	}

	// The row waits in the queue until a flush runs.
	if len(mirror.Entries()) != 0 {
		t.Fatalf("entries before flush = %d, want 0", len(mirror.Entries()))
	}
	if w.PendingMirrorRows() != 1 {
		t.Fatalf("pending = %d, want 1", w.PendingMirrorRows())
	}

	w.flushMirror(context.Background(), 10)

	entries := mirror.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Kind != amqp.KindUpdated || entries[0].AmountPaise != 35000 {
		t.Errorf("entry = %+v", entries[0])
	}
	if w.PendingMirrorRows() != 0 {
		t.Errorf("pending after flush = %d, want 0", w.PendingMirrorRows())
	}
}

func TestFlushMirrorHonorsBatchSize(t *testing.T) {
	store := &fakeStore{admins: nil}
	mirror := memory.New()
	w := NewNotifyWorker(store, mirror)

	for _, date := range []string{"2025-06-01", "2025-06-02", "2025-06-03"} {
		msg := &amqp.ExpenseEventMessage{Kind: amqp.KindCreated, Username: "anita", Date: date, AmountPaise: 100}
		if err := w.HandleExpenseEvent(context.Background(), msg); err != nil {
			t.Fatalf("HandleExpenseEvent(%s) error = %v", date, err)
		}
	}

	w.flushMirror(context.Background(), 2)
	if got := len(mirror.Entries()); got != 2 {
		t.Fatalf("entries after first flush = %d, want 2", got)
	}
	if w.PendingMirrorRows() != 1 {
		t.Fatalf("pending = %d, want 1", w.PendingMirrorRows())
	}

	w.flushMirror(context.Background(), 2)
	if got := len(mirror.Entries()); got != 3 {
		t.Errorf("entries after second flush = %d, want 3", got)
	}
}

func TestRunMirrorFlushesOnShutdown(t *testing.T) {
	store := &fakeStore{admins: nil}
	mirror := memory.New()
	w := NewNotifyWorker(store, mirror)

	msg := &amqp.ExpenseEventMessage{Kind: amqp.KindDeleted, Username: "anita", Date: "2025-06-01"}
	if err := w.HandleExpenseEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.RunMirror(ctx, time.Hour, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunMirror() error = %v, want context.Canceled", err)
	}

	if got := len(mirror.Entries()); got != 1 {
		t.Errorf("entries after shutdown flush = %d, want 1", got)
	}
}

type failingMirror struct{}

func (failingMirror) AppendHistory(_ context.Context, _ sheets.HistoryEntry) (string, error) {
	return "", errors.New("sheet quota exceeded")
}

func TestMirrorFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{admins: []string{"maya"}}
	w := NewNotifyWorker(store, failingMirror{})

	msg := &amqp.ExpenseEventMessage{Kind: amqp.KindDeleted, Username: "anita", Date: "2025-06-01"}
	if err := w.HandleExpenseEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v, mirror failures must not requeue", err)
	}
	if len(store.notified) != 1 {
		t.Errorf("notified = %v, want admin still notified", store.notified)
	}

	// A failed append drops the row instead of wedging the queue.
	w.flushMirror(context.Background(), 10)
	if w.PendingMirrorRows() != 0 {
		t.Errorf("pending after failed flush = %d, want 0", w.PendingMirrorRows())
	}
}
