package view

import (
	"context"

	"expensedesk/internal/core"
)

// Backend is the outbound port to the expense API. The controllers never
// construct requests themselves; they are handed an implementation (the REST
// client in production, fakes in tests).
type Backend interface {
	// ListExpenses returns expense records newest-first. The caller trusts
	// the ordering and truncates; it never re-sorts.
	ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error)

	// ListOrderItemsByDateAndUser returns the order lines for one user's day.
	ListOrderItemsByDateAndUser(ctx context.Context, date core.Date, username string) ([]core.OrderItem, error)

	// DeleteOrdersByDateAndUser removes every order for one user's day.
	DeleteOrdersByDateAndUser(ctx context.Context, date core.Date, username string) error

	// Logout invalidates the server-side session. Best effort: local logout
	// proceeds even when this fails.
	Logout(ctx context.Context) error
}
