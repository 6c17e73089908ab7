package memory

import (
	"context"
	"fmt"
	"sync"

	"expensedesk/internal/sheets"
)

// Store is an in-memory history appender for tests and local runs.
type Store struct {
	mu    sync.Mutex
	items []sheets.HistoryEntry
}

func New() *Store {
	return &Store{}
}

// AppendHistory stores the entry and returns a synthetic row reference.
func (s *Store) AppendHistory(_ context.Context, e sheets.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []sheets.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.HistoryEntry, len(s.items))
	copy(out, s.items)
	return out
}
