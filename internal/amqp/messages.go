package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds carried on the expense events queue.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// ExpenseEventMessage describes a mutation of a user's orders for a day.
// Consumers use it to notify admins and mirror history; the date is the
// canonical YYYY-MM-DD form so consumers never re-derive it.
type ExpenseEventMessage struct {
	Kind        string    `json:"kind"`
	Username    string    `json:"username"`
	Date        string    `json:"date"`
	AmountPaise int64     `json:"amount_paise"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewExpenseEventMessage(kind, username, date string, amountPaise int64) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Kind:        kind,
		Username:    username,
		Date:        date,
		AmountPaise: amountPaise,
		Timestamp:   time.Now(),
	}
}

// Validate rejects messages a consumer cannot act on.
func (m *ExpenseEventMessage) Validate() error {
	switch m.Kind {
	case KindCreated, KindUpdated, KindDeleted:
	default:
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
	if m.Username == "" {
		return fmt.Errorf("event missing username")
	}
	if m.Date == "" {
		return fmt.Errorf("event missing date")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
