package memory

import (
	"context"
	"testing"

	"expensedesk/internal/sheets"
)

func TestAppendHistory(t *testing.T) {
	store := New()

	ref, err := store.AppendHistory(context.Background(), sheets.HistoryEntry{
		Kind:        "deleted",
		Username:    "anita",
		Date:        "2025-06-01",
		AmountPaise: 12550,
	})
	if err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Username != "anita" || entries[0].Kind != "deleted" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	store := New()
	_, _ = store.AppendHistory(context.Background(), sheets.HistoryEntry{Kind: "created", Username: "anita", Date: "2025-06-01"})

	entries := store.Entries()
	entries[0].Username = "mutated"

	if store.Entries()[0].Username != "anita" {
		t.Error("Entries() exposed internal state")
	}
}
