package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToPaise(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12.345", 1234, true}, // rounds down
		{"12.346", 1235, true}, // rounds up
		{"0", 0, true},
		{"7", 700, true},
		{".5", 50, true},
		{"", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseDecimalToPaise(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d (%q): unexpected error %v", i, tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d (%q): expected error", i, tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("case %d (%q): got %d want %d", i, tc.in, got, tc.want)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		paise int64
		want  string
	}{
		{1250, "12.50"},
		{700, "7.00"},
		{0, "0.00"},
		{5, "0.05"},
		{-1250, "-12.50"},
	}
	for i, tc := range cases {
		if got := (Money{Paise: tc.paise}).Format(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestMoneyUnmarshalNumberAndString(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`12.5`), &m); err != nil {
		t.Fatalf("number form: %v", err)
	}
	if m.Paise != 1250 {
		t.Fatalf("got %d", m.Paise)
	}
	if err := json.Unmarshal([]byte(`"7.25"`), &m); err != nil {
		t.Fatalf("string form: %v", err)
	}
	if m.Paise != 725 {
		t.Fatalf("got %d", m.Paise)
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil {
		t.Fatalf("null form: %v", err)
	}
	if m.Paise != 0 {
		t.Fatalf("got %d", m.Paise)
	}
}
