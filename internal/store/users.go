// Package store keeps users in SQL through sqlx. The same queries run on
// PostgreSQL and SQLite; placeholders are rebound per driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/couponbot/core/logger"
	"github.com/m3rciful/couponbot/internal/issuance"
)

// userRow mirrors the users table.
type userRow struct {
	TelegramID  int64  `db:"telegram_id"`
	FullName    string `db:"full_name"`
	FirstSeenAt int64  `db:"first_seen_at"`
	HasCoupon   bool   `db:"has_coupon"`
}

func (r userRow) user() issuance.User {
	return issuance.User{
		Identity:          r.TelegramID,
		DisplayName:       r.FullName,
		FirstSeenAt:       time.Unix(r.FirstSeenAt, 0).UTC(),
		HasReceivedCoupon: r.HasCoupon,
	}
}

const userColumns = `telegram_id, full_name, first_seen_at, has_coupon`

// Users implements issuance.Store.
type Users struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ issuance.Store = (*Users)(nil)

// NewUsers returns a store over db.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db, now: time.Now}
}

// withConn runs fn on a dedicated pooled connection and always returns it.
func (s *Users) withConn(ctx context.Context, op string, fn func(conn *sqlx.Conn) error) error {
	start := time.Now()
	conn, err := s.db.Connx(ctx)
	if err != nil {
		logger.Warn(ctx, logger.CompDB, "store.acquire",
			slog.String("status", "fail"),
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	err = fn(conn)
	if err != nil && !errors.Is(err, issuance.ErrUserNotFound) {
		logger.Warn(ctx, logger.CompDB, "store.query",
			slog.String("status", "fail"),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return err
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.CompDB, "store.query",
			slog.String("status", "ok"),
			slog.String("op", op),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return err
}

func (s *Users) get(ctx context.Context, conn *sqlx.Conn, id int64) (issuance.User, error) {
	var row userRow
	q := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`)
	if err := conn.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return issuance.User{}, issuance.ErrUserNotFound
		}
		return issuance.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.user(), nil
}

// FindByIdentity returns issuance.ErrUserNotFound when id is unknown.
func (s *Users) FindByIdentity(ctx context.Context, id int64) (issuance.User, error) {
	var u issuance.User
	err := s.withConn(ctx, "find", func(conn *sqlx.Conn) error {
		var err error
		u, err = s.get(ctx, conn, id)
		return err
	})
	return u, err
}

// Create inserts id unless it exists and returns the stored record either way.
func (s *Users) Create(ctx context.Context, id int64, name string) (issuance.User, error) {
	var u issuance.User
	err := s.withConn(ctx, "create", func(conn *sqlx.Conn) error {
		q := s.db.Rebind(`INSERT INTO users (telegram_id, full_name, first_seen_at, has_coupon)
			VALUES (?, ?, ?, FALSE)
			ON CONFLICT (telegram_id) DO NOTHING`)
		if _, err := conn.ExecContext(ctx, q, id, name, s.now().Unix()); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		var err error
		u, err = s.get(ctx, conn, id)
		return err
	})
	return u, err
}

// UpdateName leaves issued users untouched.
func (s *Users) UpdateName(ctx context.Context, id int64, name string) error {
	return s.withConn(ctx, "update_name", func(conn *sqlx.Conn) error {
		q := s.db.Rebind(`UPDATE users SET full_name = ? WHERE telegram_id = ? AND has_coupon = FALSE`)
		res, err := conn.ExecContext(ctx, q, name, id)
		if err != nil {
			return fmt.Errorf("update name: %w", err)
		}
		return s.ensureExists(ctx, conn, res, id)
	})
}

// SetIssued is idempotent.
func (s *Users) SetIssued(ctx context.Context, id int64) error {
	return s.withConn(ctx, "set_issued", func(conn *sqlx.Conn) error {
		q := s.db.Rebind(`UPDATE users SET has_coupon = TRUE WHERE telegram_id = ?`)
		res, err := conn.ExecContext(ctx, q, id)
		if err != nil {
			return fmt.Errorf("set issued: %w", err)
		}
		return s.ensureExists(ctx, conn, res, id)
	})
}

// ensureExists turns a zero-row update into ErrUserNotFound when the row is
// really missing, as opposed to filtered out by the WHERE clause.
func (s *Users) ensureExists(ctx context.Context, conn *sqlx.Conn, res sql.Result, id int64) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err := s.get(ctx, conn, id)
	return err
}

// CountAll returns the number of users.
func (s *Users) CountAll(ctx context.Context) (int, error) {
	return s.count(ctx, "count_all", `SELECT COUNT(*) FROM users`)
}

// CountIssued returns the number of users who received a coupon.
func (s *Users) CountIssued(ctx context.Context) (int, error) {
	return s.count(ctx, "count_issued", `SELECT COUNT(*) FROM users WHERE has_coupon = TRUE`)
}

func (s *Users) count(ctx context.Context, op, query string) (int, error) {
	var n int
	err := s.withConn(ctx, op, func(conn *sqlx.Conn) error {
		if err := conn.GetContext(ctx, &n, query); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	return n, err
}

// ListAll returns every user ordered by first contact.
func (s *Users) ListAll(ctx context.Context) ([]issuance.User, error) {
	var rows []userRow
	err := s.withConn(ctx, "list", func(conn *sqlx.Conn) error {
		if err := conn.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY first_seen_at, id`); err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	users := make([]issuance.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

// Ping checks that the database answers.
func (s *Users) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
