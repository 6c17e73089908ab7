package view

import (
	"context"
	"log/slog"
	"sync"

	"expensedesk/internal/session"
)

// LoginPath is where logout lands the user.
const LoginPath = "/login"

// NavItem is one sidebar navigation entry.
type NavItem struct {
	Path string
	Name string
	Icon string
}

// RedirectFunc sends the user to a path after logout.
type RedirectFunc func(path string)

// Sidebar renders role-aware navigation and exposes logout. The role is
// resolved once at construction from the persisted session; there are no
// further transitions short of building a new controller.
type Sidebar struct {
	backend  Backend
	sessions *session.Store
	redirect RedirectFunc

	isAdmin bool

	navOnce sync.Once
	nav     []NavItem
}

// NewSidebar resolves the role from the session store. An absent or
// malformed user defaults to non-admin; this never fails.
func NewSidebar(backend Backend, sessions *session.Store, redirect RedirectFunc) *Sidebar {
	user, _ := sessions.CurrentUser()
	return &Sidebar{
		backend:  backend,
		sessions: sessions,
		redirect: redirect,
		isAdmin:  user.IsAdmin(),
	}
}

// IsAdmin reports the role resolved at construction.
func (s *Sidebar) IsAdmin() bool { return s.isAdmin }

// NavItems returns the navigation set for the resolved role. The set is
// computed once; the role cannot change within a controller's lifetime.
func (s *Sidebar) NavItems() []NavItem {
	s.navOnce.Do(func() {
		s.nav = DeriveNavItems(s.isAdmin)
	})
	return s.nav
}

// DeriveNavItems builds the navigation set: three base entries for everyone,
// with the two expense routes moved under the admin prefix for admins, plus
// three admin-only entries.
func DeriveNavItems(isAdmin bool) []NavItem {
	prefix := ""
	if isAdmin {
		prefix = "/admin"
	}
	items := []NavItem{
		{Path: "/", Name: "Home", Icon: "house"},
		{Path: prefix + "/regular-expense", Name: "Regular Expense", Icon: "indian-rupee-sign"},
		{Path: prefix + "/other-expense", Name: "Other Expense", Icon: "wallet"},
	}
	if isAdmin {
		items = append(items,
			NavItem{Path: "/update-item", Name: "Update Item", Icon: "pen-to-square"},
			NavItem{Path: "/admin/history", Name: "Expense History", Icon: "wallet"},
			NavItem{Path: "/admin/expense-history", Name: "All Expense History", Icon: "wallet"},
		)
	}
	return items
}

// Logout calls the remote logout endpoint best-effort, then unconditionally
// clears persisted session state and redirects to the login page. The local
// clear and redirect run regardless of the remote outcome so a network
// failure can never leave the user stuck logged in.
func (s *Sidebar) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		slog.ErrorContext(ctx, "Remote logout failed",
			"error", err, "component", "view", "operation", "logout")
	}

	if err := s.sessions.Clear(); err != nil {
		slog.ErrorContext(ctx, "Failed to clear session state",
			"error", err, "component", "view", "operation", "logout")
	}
	if s.redirect != nil {
		s.redirect(LoginPath)
	}
}
