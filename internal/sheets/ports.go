package sheets

import (
	"context"
	"time"
)

// HistoryEntry is one mirrored expense event row.
type HistoryEntry struct {
	Kind        string
	Username    string
	Date        string
	AmountPaise int64
	RecordedAt  time.Time
}

// HistoryAppender mirrors expense history to an external sheet.
type HistoryAppender interface {
	AppendHistory(ctx context.Context, e HistoryEntry) (rowRef string, err error)
}
