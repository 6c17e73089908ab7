package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensedesk/internal/cache"
	"expensedesk/internal/core"
	"expensedesk/internal/storage"

	"github.com/go-playground/validator/v10"
)

// Repository is the storage surface the API needs.
type Repository interface {
	CreateUser(ctx context.Context, username, name, password, roleName string) error
	Authenticate(ctx context.Context, username, password string) (*core.SessionUser, error)
	CreateSession(ctx context.Context, username string, ttl time.Duration) (string, error)
	SessionUserByToken(ctx context.Context, token string) (*core.SessionUser, error)
	DeleteSession(ctx context.Context, token string) error

	ListExpenseSummaries(ctx context.Context, username string) ([]core.ExpenseRecord, error)
	ListOrderItemsByDateAndUser(ctx context.Context, date core.Date, username string) ([]core.OrderItem, error)
	CreateOrder(ctx context.Context, username string, date core.Date, items []core.OrderItem) (int64, error)
	DeleteOrdersByDateAndUser(ctx context.Context, date core.Date, username string) (int64, error)
	UpdateOrderItems(ctx context.Context, orderID int64, items []core.OrderItem) error
	CreateExpense(ctx context.Context, username string, date core.Date, amountPaise int64) (int64, error)
	MarkExpenseRefunded(ctx context.Context, expenseID int64) error

	ListNotifications(ctx context.Context, username string) ([]storage.Notification, error)
}

// EventPublisher fans expense mutations out to interested consumers.
// A nil publisher disables eventing.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, kind, username string, date core.Date, amountPaise int64) error
}

type Server struct {
	http.Server
	repo     Repository
	events   EventPublisher
	validate *validator.Validate
	tokenTTL time.Duration
	now      func() time.Time

	rateLimiter *rateLimiter

	// Summary rows are cheap to rebuild but hot on every refresh, so a
	// short-lived per-scope cache absorbs bursts.
	listCache *cache.LRU[[]core.ExpenseRecord]

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, repo Repository, events EventPublisher, tokenTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		repo:        repo,
		events:      events,
		validate:    validator.New(),
		tokenTTL:    tokenTTL,
		now:         time.Now,
		rateLimiter: newRateLimiter(),
		listCache:   cache.NewLRU[[]core.ExpenseRecord](100, 5*time.Second),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.withMiddleware(s.requireAuth(s.handleLogout)))
	mux.HandleFunc("GET /api/expenses", s.withMiddleware(s.requireAuth(s.handleListExpenses)))
	mux.HandleFunc("GET /api/orders/items", s.withMiddleware(s.requireAuth(s.handleListOrderItems)))
	mux.HandleFunc("POST /api/orders", s.withMiddleware(s.requireAuth(s.handleCreateOrder)))
	mux.HandleFunc("DELETE /api/orders", s.withMiddleware(s.requireAuth(s.handleDeleteOrders)))
	mux.HandleFunc("PUT /api/orders/{id}", s.withMiddleware(s.requireAuth(s.handleUpdateOrder)))
	mux.HandleFunc("POST /api/expenses/{id}/refund", s.withMiddleware(s.requireAuth(s.handleRefundExpense)))
	mux.HandleFunc("GET /api/notifications", s.withMiddleware(s.requireAuth(s.handleListNotifications)))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutations only; reads are cache-backed.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) listCacheKey(user *core.SessionUser) string {
	if user.IsAdmin() {
		return "all"
	}
	return "user:" + user.Username
}

func (s *Server) invalidateListCaches() {
	s.listCache.Purge()
}
