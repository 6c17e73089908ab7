package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateString(t *testing.T) {
	cases := []struct {
		d    Date
		want string
	}{
		{NewDate(2025, 1, 1), "2025-01-01"},
		{NewDate(2025, 12, 31), "2025-12-31"},
		{Date{Time: time.Time{}}, ""},
	}
	for i, tc := range cases {
		if got := tc.d.String(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestDateEqualIgnoresTimeOfDay(t *testing.T) {
	morning := Date{Time: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	evening := Date{Time: time.Date(2025, 6, 1, 23, 59, 0, 0, time.Local)}
	if !morning.Equal(evening) {
		t.Fatal("same calendar day should compare equal")
	}
	if morning.Equal(NewDate(2025, 6, 2)) {
		t.Fatal("different days should not compare equal")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-09"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("got %q", d.String())
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2025-03-09"` {
		t.Fatalf("got %s", out)
	}
}

func TestUserRefUnmarshalBothForms(t *testing.T) {
	var fromString UserRef
	if err := json.Unmarshal([]byte(`"ravi"`), &fromString); err != nil {
		t.Fatalf("string form: %v", err)
	}
	if fromString.Key() != "ravi" {
		t.Fatalf("got key %q", fromString.Key())
	}

	var fromObject UserRef
	if err := json.Unmarshal([]byte(`{"username":"ravi","name":"Ravi K"}`), &fromObject); err != nil {
		t.Fatalf("object form: %v", err)
	}
	if fromObject.Key() != "ravi" || fromObject.Display() != "Ravi K" {
		t.Fatalf("got %+v", fromObject)
	}
}

func TestUserRefDisplayFallbacks(t *testing.T) {
	cases := []struct {
		u    UserRef
		want string
	}{
		{UserRef{Username: "ravi", Name: "Ravi K"}, "Ravi K"},
		{UserRef{Username: "ravi"}, "ravi"},
		{UserRef{}, "Unknown"},
	}
	for i, tc := range cases {
		if got := tc.u.Display(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestDisplayAmountPrecedence(t *testing.T) {
	total := Money{Paise: 1250}
	amount := Money{Paise: 700}

	cases := []struct {
		rec  ExpenseRecord
		want string
	}{
		{ExpenseRecord{TotalAmount: &total, Amount: &amount}, "12.50"},
		{ExpenseRecord{Amount: &amount}, "7.00"},
		{ExpenseRecord{}, "0.00"},
	}
	for i, tc := range cases {
		if got := tc.rec.DisplayAmount().Format(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestDisplayCountDefaultsToOne(t *testing.T) {
	if got := (ExpenseRecord{}).DisplayCount(); got != 1 {
		t.Fatalf("got %d", got)
	}
	if got := (ExpenseRecord{TotalCount: 4}).DisplayCount(); got != 4 {
		t.Fatalf("got %d", got)
	}
}

func TestSessionUserIsAdmin(t *testing.T) {
	cases := []struct {
		role string
		want bool
	}{
		{"Admin", true},
		{"admin", false}, // exact case-sensitive match
		{"ADMIN", false},
		{"", false},
		{"User", false},
	}
	for i, tc := range cases {
		su := SessionUser{Username: "x", Role: Role{RoleName: tc.role}}
		if got := su.IsAdmin(); got != tc.want {
			t.Fatalf("case %d (%q): got %v", i, tc.role, got)
		}
	}
}

func TestExpenseRecordUnmarshal(t *testing.T) {
	raw := `{"order_id":7,"date":"2025-06-01","user":"ravi","total_count":3,"total_amount":12.5,"is_refunded":false}`
	var rec ExpenseRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.OrderID != 7 || rec.Date.String() != "2025-06-01" || rec.User.Key() != "ravi" {
		t.Fatalf("got %+v", rec)
	}
	if rec.DisplayAmount().Format() != "12.50" {
		t.Fatalf("amount %q", rec.DisplayAmount().Format())
	}
}
