package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"expensedesk/internal/authz"
	"expensedesk/internal/core"
	applog "expensedesk/internal/log"
	"expensedesk/internal/storage"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Password string `json:"password" validate:"required,min=1"`
}

type loginResponse struct {
	User  core.SessionUser `json:"user"`
	Token string           `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("Encode response failed", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// authedHandler receives the session user resolved from the bearer token.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *core.SessionUser, token string)

// requireAuth resolves the Authorization header to a session user.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		user, err := s.repo.SessionUserByToken(r.Context(), token)
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "session expired, please log in again")
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Session lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next(w, r, user, token)
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Name     string `json:"name" validate:"required,max=150"`
	Password string `json:"password" validate:"required,min=8"`
}

// handleRegister creates a regular user account. Admins are provisioned
// directly in the database, never through the API.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "username, name, and a password of at least 8 characters are required")
		return
	}

	err := s.repo.CreateUser(r.Context(), req.Username, req.Name, req.Password, "User")
	if errors.Is(err, storage.ErrUserExists) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Registration failed", "error", err, "username", req.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.InfoContext(r.Context(), "User registered",
		applog.FieldUsername, req.Username,
		applog.FieldComponent, applog.ComponentAuth)
	writeJSON(w, http.StatusCreated, core.SessionUser{
		Username: req.Username,
		Name:     req.Name,
		Role:     core.Role{RoleName: "User"},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	user, err := s.repo.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, storage.ErrInvalidCredentials) {
		slog.WarnContext(r.Context(), "Login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Login failed", "error", err, "username", req.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := s.repo.CreateSession(r.Context(), user.Username, s.tokenTTL)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session creation failed", "error", err, "username", user.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.InfoContext(r.Context(), "User logged in",
		applog.FieldUsername, user.Username,
		applog.FieldRole, user.Role.RoleName,
		applog.FieldComponent, applog.ComponentAuth)
	writeJSON(w, http.StatusOK, loginResponse{User: *user, Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user *core.SessionUser, token string) {
	if err := s.repo.DeleteSession(r.Context(), token); err != nil {
		slog.ErrorContext(r.Context(), "Logout failed", "error", err, "username", user.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.InfoContext(r.Context(), "User logged out", "username", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleListExpenses returns summary rows newest first. Admins see every
// user's rows, everyone else only their own.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	key := s.listCacheKey(user)
	if records, ok := s.listCache.Get(key); ok {
		writeJSON(w, http.StatusOK, records)
		return
	}

	scope := user.Username
	if user.IsAdmin() {
		scope = ""
	}
	records, err := s.repo.ListExpenseSummaries(r.Context(), scope)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err, "username", user.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []core.ExpenseRecord{}
	}

	s.listCache.Set(key, records)
	writeJSON(w, http.StatusOK, records)
}

// dateAndUserParams parses the date and user query parameters shared by the
// order endpoints, enforcing that non-admins only touch their own data.
func dateAndUserParams(w http.ResponseWriter, r *http.Request, user *core.SessionUser) (core.Date, string, bool) {
	date, err := core.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date, expected YYYY-MM-DD")
		return core.Date{}, "", false
	}

	target := r.URL.Query().Get("user")
	if target == "" {
		target = user.Username
	}
	if !user.IsAdmin() && target != user.Username {
		writeError(w, http.StatusForbidden, "you can only access your own orders")
		return core.Date{}, "", false
	}
	return date, target, true
}

func (s *Server) handleListOrderItems(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	date, target, ok := dateAndUserParams(w, r, user)
	if !ok {
		return
	}

	items, err := s.repo.ListOrderItemsByDateAndUser(r.Context(), date, target)
	if err != nil {
		slog.ErrorContext(r.Context(), "List order items failed", "error", err, "username", target, "date", date.String())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []core.OrderItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type createOrderRequest struct {
	Date  core.Date        `json:"date"`
	User  string           `json:"user"`
	Items []core.OrderItem `json:"items" validate:"required,min=1,dive"`
}

type createOrderResponse struct {
	ID        int64 `json:"id"`
	ExpenseID int64 `json:"expense_id"`
}

// handleCreateOrder records a new order with its items and the matching
// expense row, so the new entry shows an amount in the summary list.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "at least one order item is required")
		return
	}
	if err := req.Date.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date, expected YYYY-MM-DD")
		return
	}

	target := req.User
	if target == "" {
		target = user.Username
	}
	if !user.IsAdmin() && target != user.Username {
		writeError(w, http.StatusForbidden, "you can only create your own orders")
		return
	}

	orderID, err := s.repo.CreateOrder(r.Context(), target, req.Date, req.Items)
	if errors.Is(err, storage.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Create order failed", "error", err, "username", target, "date", req.Date.String())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var total int64
	for _, item := range req.Items {
		total += item.Price.Paise * int64(item.Count)
	}
	expenseID, err := s.repo.CreateExpense(r.Context(), target, req.Date, total)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create expense failed", "error", err, "username", target, "order_id", orderID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateListCaches()
	slog.InfoContext(r.Context(), "Order created",
		applog.FieldOrderID, orderID,
		applog.FieldUsername, target,
		applog.FieldRecordDate, req.Date.String(),
		"items", len(req.Items),
		"created_by", user.Username)

	if s.events != nil {
		if err := s.events.PublishExpenseEvent(r.Context(), "created", target, req.Date, total); err != nil {
			slog.WarnContext(r.Context(), "Publish create event failed", "error", err, "order_id", orderID)
		}
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{ID: orderID, ExpenseID: expenseID})
}

func (s *Server) handleDeleteOrders(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	date, target, ok := dateAndUserParams(w, r, user)
	if !ok {
		return
	}

	today := core.DateOf(s.now())
	if denial := authz.CheckDelete(core.ExpenseRecord{Date: date}, today); denial != nil {
		writeError(w, http.StatusForbidden, denial.Message)
		return
	}

	deleted, err := s.repo.DeleteOrdersByDateAndUser(r.Context(), date, target)
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete orders failed", "error", err, "username", target, "date", date.String())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateListCaches()
	slog.InfoContext(r.Context(), "Orders deleted",
		applog.FieldUsername, target,
		applog.FieldRecordDate, date.String(),
		"orders", deleted,
		"deleted_by", user.Username)

	if s.events != nil && deleted > 0 {
		if err := s.events.PublishExpenseEvent(r.Context(), "deleted", target, date, 0); err != nil {
			slog.WarnContext(r.Context(), "Publish delete event failed", "error", err, "username", target)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateOrderRequest struct {
	Date  core.Date        `json:"date"`
	User  string           `json:"user"`
	Items []core.OrderItem `json:"items" validate:"required,min=1,dive"`
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || orderID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "at least one order item is required")
		return
	}

	target := req.User
	if target == "" {
		target = user.Username
	}
	if !user.IsAdmin() && target != user.Username {
		writeError(w, http.StatusForbidden, "you can only edit your own orders")
		return
	}

	today := core.DateOf(s.now())
	if denial := authz.CheckEdit(core.ExpenseRecord{Date: req.Date, User: core.UserRef{Username: target}}, target, today); denial != nil {
		writeError(w, http.StatusForbidden, denial.Message)
		return
	}

	err = s.repo.UpdateOrderItems(r.Context(), orderID, req.Items)
	if errors.Is(err, storage.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Update order failed", "error", err, "order_id", orderID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateListCaches()
	slog.InfoContext(r.Context(), "Order updated",
		applog.FieldOrderID, orderID,
		"items", len(req.Items),
		"updated_by", user.Username)

	var total int64
	for _, item := range req.Items {
		total += item.Price.Paise * int64(item.Count)
	}
	if s.events != nil {
		if err := s.events.PublishExpenseEvent(r.Context(), "updated", target, req.Date, total); err != nil {
			slog.WarnContext(r.Context(), "Publish update event failed", "error", err, "order_id", orderID)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRefundExpense flips an expense to refunded, which freezes edits on
// its summary row. Refunds are an admin action.
func (s *Server) handleRefundExpense(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	expenseID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || expenseID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "only admins can mark expenses refunded")
		return
	}

	err = s.repo.MarkExpenseRefunded(r.Context(), expenseID)
	if errors.Is(err, storage.ErrExpenseNotFound) {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Refund expense failed", "error", err, "expense_id", expenseID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateListCaches()
	slog.InfoContext(r.Context(), "Expense refunded", "expense_id", expenseID, "refunded_by", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

type notificationResponse struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, user *core.SessionUser, _ string) {
	notifications, err := s.repo.ListNotifications(r.Context(), user.Username)
	if err != nil {
		slog.ErrorContext(r.Context(), "List notifications failed", "error", err, "username", user.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
