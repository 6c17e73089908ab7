// Package core provides the expense domain types shared by the client
// workflow, the HTTP API and storage.
//
// This file contains money parsing and formatting. Amounts are held in paise
// to keep arithmetic exact; rendering always uses two decimal places.
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is a non-negative rupee amount in paise.
type Money struct {
	Paise int64
}

// ParseDecimalToPaise converts a decimal string to paise with half-up
// rounding on the third decimal place. Both dot and comma separators are
// accepted. Zero is valid; negative values are not.
//
// Examples:
//
//	ParseDecimalToPaise("12.34") -> 1234, nil
//	ParseDecimalToPaise("12,34") -> 1234, nil
//	ParseDecimalToPaise("12.346") -> 1235, nil (rounds up)
func ParseDecimalToPaise(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracPaise int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracPaise = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracPaise += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracPaise++
			}
		}
	}
	return iv*100 + fracPaise, nil
}

// Rupees returns the rupee value as a float64 for display purposes only.
// Use paise for calculations to avoid floating-point drift.
func (m Money) Rupees() float64 {
	return float64(m.Paise) / 100.0
}

// Format renders the amount with exactly two decimal places, e.g. "12.50".
func (m Money) Format() string {
	neg := m.Paise < 0
	p := m.Paise
	if neg {
		p = -p
	}
	s := strconv.FormatInt(p/100, 10) + "." + fmt.Sprintf("%02d", p%100)
	if neg {
		return "-" + s
	}
	return s
}

// MarshalJSON encodes the amount as a decimal number with two places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Format()), nil
}

// UnmarshalJSON accepts a decimal number or a decimal string, as the backend
// serializes amounts either way depending on the endpoint.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Money{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	paise, err := ParseDecimalToPaise(s)
	if err != nil {
		return err
	}
	m.Paise = paise
	return nil
}
