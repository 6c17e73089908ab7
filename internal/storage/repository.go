package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"expensedesk/internal/core"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username already taken")
	ErrOrderNotFound      = errors.New("order not found")
	ErrExpenseNotFound    = errors.New("expense not found")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser registers a user with a bcrypt-hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, name, password, roleName string) error {
	var taken int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&taken)
	if err != nil {
		return fmt.Errorf("query username: %w", err)
	}
	if taken > 0 {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (username, name, password_hash, role_name) VALUES (?, ?, ?, ?)`,
		username, name, string(hash), roleName)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Authenticate verifies credentials and returns the matching session user.
func (r *SQLiteRepository) Authenticate(ctx context.Context, username, password string) (*core.SessionUser, error) {
	var (
		hash string
		user core.SessionUser
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT username, name, password_hash, role_name FROM users WHERE username = ?`,
		username).Scan(&user.Username, &user.Name, &hash, &user.Role.RoleName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// CreateSession issues a new opaque token for the user.
func (r *SQLiteRepository) CreateSession(ctx context.Context, username string, ttl time.Duration) (string, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = ?`, username).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query user id: %w", err)
	}

	token := uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().Add(ttl).UTC())
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// SessionUserByToken resolves a bearer token to its user, rejecting expired sessions.
func (r *SQLiteRepository) SessionUserByToken(ctx context.Context, token string) (*core.SessionUser, error) {
	var (
		user      core.SessionUser
		expiresAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT u.username, u.name, u.role_name, s.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ?`,
		token).Scan(&user.Username, &user.Name, &user.Role.RoleName, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	if time.Now().After(expiresAt) {
		_, _ = r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return nil, ErrSessionNotFound
	}
	return &user, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListExpenseSummaries returns one row per order, newest first. When username
// is empty all users are included; otherwise only that user's orders.
func (r *SQLiteRepository) ListExpenseSummaries(ctx context.Context, username string) ([]core.ExpenseRecord, error) {
	query := `
		SELECT o.id, COALESCE(e.id, 0), o.order_date, u.username, u.name,
		       COALESCE(SUM(oi.count), 0), o.total_amount_paise,
		       e.amount_paise, COALESCE(e.is_refunded, 0)
		FROM orders o
		JOIN users u ON u.id = o.user_id
		LEFT JOIN expenses e ON e.user_id = o.user_id AND e.expense_date = o.order_date
		LEFT JOIN order_items oi ON oi.order_id = o.id`
	args := []any{}
	if username != "" {
		query += ` WHERE u.username = ?`
		args = append(args, username)
	}
	query += `
		GROUP BY o.id
		ORDER BY o.order_date DESC, o.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expense summaries: %w", err)
	}
	defer rows.Close()

	var records []core.ExpenseRecord
	for rows.Next() {
		var (
			rec         core.ExpenseRecord
			dateText    string
			totalPaise  int64
			amountPaise sql.NullInt64
			refunded    int
		)
		err := rows.Scan(&rec.OrderID, &rec.ID, &dateText,
			&rec.User.Username, &rec.User.Name,
			&rec.TotalCount, &totalPaise, &amountPaise, &refunded)
		if err != nil {
			return nil, fmt.Errorf("scan expense summary: %w", err)
		}

		date, err := core.ParseDate(dateText)
		if err != nil {
			return nil, fmt.Errorf("parse order date %q: %w", dateText, err)
		}
		rec.Date = date
		rec.TotalAmount = &core.Money{Paise: totalPaise}
		if amountPaise.Valid {
			rec.Amount = &core.Money{Paise: amountPaise.Int64}
		}
		rec.IsRefunded = refunded != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense summaries: %w", err)
	}
	return records, nil
}

func (r *SQLiteRepository) ListOrderItemsByDateAndUser(ctx context.Context, date core.Date, username string) ([]core.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT oi.id, oi.item_id, oi.name, oi.count, oi.price_paise, oi.added_date
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 JOIN users u ON u.id = o.user_id
		 WHERE o.order_date = ? AND u.username = ?
		 ORDER BY oi.id`,
		date.String(), username)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []core.OrderItem
	for rows.Next() {
		var (
			item      core.OrderItem
			addedDate string
		)
		if err := rows.Scan(&item.ID, &item.ItemID, &item.Name, &item.Count, &item.Price.Paise, &addedDate); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if addedDate != "" {
			parsed, err := core.ParseDate(addedDate)
			if err != nil {
				return nil, fmt.Errorf("parse item date %q: %w", addedDate, err)
			}
			item.AddedDate = parsed
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// DeleteOrdersByDateAndUser removes every order the user placed on the date.
// Items go with the orders via the cascading foreign key.
func (r *SQLiteRepository) DeleteOrdersByDateAndUser(ctx context.Context, date core.Date, username string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE order_date = ?
		 AND user_id = (SELECT id FROM users WHERE username = ?)`,
		date.String(), username)
	if err != nil {
		return 0, fmt.Errorf("delete orders: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}

// CreateOrder inserts an order with its items and returns the order ID.
func (r *SQLiteRepository) CreateOrder(ctx context.Context, username string, date core.Date, items []core.OrderItem) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = ?`, username).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query user id: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, item := range items {
		total += item.Price.Paise * int64(item.Count)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, order_date, total_amount_paise) VALUES (?, ?, ?)`,
		userID, date.String(), total)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order id: %w", err)
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, item_id, name, count, price_paise, added_date)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, item.ItemID, item.Name, item.Count, item.Price.Paise, date.String())
		if err != nil {
			return 0, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit order: %w", err)
	}
	return orderID, nil
}

// UpdateOrderItems reconciles an order's items with the submitted set:
// items carrying an existing ID are updated, items without one are
// inserted, and stored items absent from the set are removed. The
// order total is recomputed from the final item rows.
func (r *SQLiteRepository) UpdateOrderItems(ctx context.Context, orderID int64, items []core.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("query order: %w", err)
	}
	if exists == 0 {
		return ErrOrderNotFound
	}

	keep := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.ID > 0 {
			keep[item.ID] = true
			_, err := tx.ExecContext(ctx,
				`UPDATE order_items SET item_id = ?, name = ?, count = ?, price_paise = ?
				 WHERE id = ? AND order_id = ?`,
				item.ItemID, item.Name, item.Count, item.Price.Paise, item.ID, orderID)
			if err != nil {
				return fmt.Errorf("update order item %d: %w", item.ID, err)
			}
			continue
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, item_id, name, count, price_paise, added_date)
			 SELECT ?, ?, ?, ?, ?, order_date FROM orders WHERE id = ?`,
			orderID, item.ItemID, item.Name, item.Count, item.Price.Paise, orderID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("order item id: %w", err)
		}
		keep[id] = true
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("query existing items: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan item id: %w", err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate item ids: %w", err)
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM order_items WHERE id = ? AND order_id = ?`, id, orderID); err != nil {
			return fmt.Errorf("delete order item %d: %w", id, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET total_amount_paise =
		   (SELECT COALESCE(SUM(count * price_paise), 0) FROM order_items WHERE order_id = ?)
		 WHERE id = ?`,
		orderID, orderID)
	if err != nil {
		return fmt.Errorf("recompute order total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order update: %w", err)
	}
	return nil
}

// CreateExpense records an expense row for a user on a date.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, username string, date core.Date, amountPaise int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, expense_date, amount_paise)
		 SELECT id, ?, ? FROM users WHERE username = ?`,
		date.String(), amountPaise, username)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrUserNotFound
	}
	return res.LastInsertId()
}

// MarkExpenseRefunded flips the refund flag on an expense.
func (r *SQLiteRepository) MarkExpenseRefunded(ctx context.Context, expenseID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET is_refunded = 1 WHERE id = ?`, expenseID)
	if err != nil {
		return fmt.Errorf("mark expense refunded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

type Notification struct {
	ID        int64
	Username  string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

func (r *SQLiteRepository) CreateNotification(ctx context.Context, username, message string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message)
		 SELECT id, ? FROM users WHERE username = ?`,
		message, username)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, username string) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, u.username, n.message, n.is_read, n.created_at
		 FROM notifications n
		 JOIN users u ON u.id = n.user_id
		 WHERE u.username = ?
		 ORDER BY n.created_at DESC, n.id DESC`,
		username)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var (
			n    Notification
			read int
		)
		if err := rows.Scan(&n.ID, &n.Username, &n.Message, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.IsRead = read != 0
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// ListAdminUsernames returns the usernames of every configured admin.
func (r *SQLiteRepository) ListAdminUsernames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username FROM users WHERE role_name = ? ORDER BY username`, core.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan admin username: %w", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return usernames, nil
}
