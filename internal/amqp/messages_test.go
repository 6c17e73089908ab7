package amqp

import (
	"testing"
	"time"
)

func TestNewExpenseEventMessage(t *testing.T) {
	msg := NewExpenseEventMessage(KindDeleted, "anita", "2025-06-01", 12550)

	if msg.Kind != KindDeleted {
		t.Errorf("Kind = %q, want %q", msg.Kind, KindDeleted)
	}
	if msg.Username != "anita" || msg.Date != "2025-06-01" {
		t.Errorf("msg = %+v, want anita/2025-06-01", msg)
	}
	if msg.AmountPaise != 12550 {
		t.Errorf("AmountPaise = %d, want 12550", msg.AmountPaise)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestExpenseEventMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     ExpenseEventMessage
		wantErr bool
	}{
		{
			name: "valid created",
			msg:  ExpenseEventMessage{Kind: KindCreated, Username: "anita", Date: "2025-06-01"},
		},
		{
			name: "valid updated",
			msg:  ExpenseEventMessage{Kind: KindUpdated, Username: "anita", Date: "2025-06-01"},
		},
		{
			name:    "unknown kind",
			msg:     ExpenseEventMessage{Kind: "exploded", Username: "anita", Date: "2025-06-01"},
			wantErr: true,
		},
		{
			name:    "missing username",
			msg:     ExpenseEventMessage{Kind: KindDeleted, Date: "2025-06-01"},
			wantErr: true,
		},
		{
			name:    "missing date",
			msg:     ExpenseEventMessage{Kind: KindDeleted, Username: "anita"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpenseEventMessageJSON(t *testing.T) {
	timestamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := &ExpenseEventMessage{
		Kind:        KindUpdated,
		Username:    "anita",
		Date:        "2025-06-01",
		AmountPaise: 35000,
		Timestamp:   timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ExpenseEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ExpenseEventMessageFromJSON() error = %v", err)
	}

	if parsed.Kind != msg.Kind || parsed.Username != msg.Username || parsed.Date != msg.Date {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
	if parsed.AmountPaise != msg.AmountPaise {
		t.Errorf("AmountPaise = %d, want %d", parsed.AmountPaise, msg.AmountPaise)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestExpenseEventMessageInvalidJSON(t *testing.T) {
	if _, err := ExpenseEventMessageFromJSON([]byte(`{"amount_paise": "lots"}`)); err == nil {
		t.Error("ExpenseEventMessageFromJSON() should fail with invalid JSON")
	}
}
