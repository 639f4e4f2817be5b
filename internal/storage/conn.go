package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
)

// ErrConnReleased is returned when a released Conn is used.
var ErrConnReleased = errors.New("connection already released")

// Conn is a dedicated engine session. Statements issued through it share
// one underlying connection, so BEGIN/COMMIT span them.
//
// A Conn is not safe for concurrent use. Callers must always Release it.
type Conn struct {
	db       *DB
	conn     *sql.Conn
	inTx     bool
	released bool
	// broken is set when a ROLLBACK failed; the session is discarded on Release.
	broken bool
}

// GetConnection checks out a dedicated session from the pool.
func (db *DB) GetConnection(ctx context.Context) (*Conn, error) {
	c, err := db.conn.Conn(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire connection", "error", err)
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Conn{db: db, conn: c}, nil
}

// Query classifies and runs a dialect statement on this session.
func (c *Conn) Query(ctx context.Context, query string, params ...any) (*Result, error) {
	if c.released {
		return nil, ErrConnReleased
	}
	return c.db.runText(ctx, c.conn, query, params)
}

// Exec runs a typed statement on this session.
func (c *Conn) Exec(ctx context.Context, stmt Statement) (*Result, error) {
	if c.released {
		return nil, ErrConnReleased
	}
	return c.db.run(ctx, c.conn, stmt)
}

// InTransaction reports whether BeginTransaction has been called without
// a matching Commit or Rollback.
func (c *Conn) InTransaction() bool {
	return c.inTx
}

// BeginTransaction starts a transaction on this session.
func (c *Conn) BeginTransaction(ctx context.Context) error {
	if c.released {
		return ErrConnReleased
	}
	if c.inTx {
		return errors.New("transaction already open")
	}
	if _, err := c.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.inTx = true
	return nil
}

// Commit commits the open transaction. It is a no-op when none is open.
func (c *Conn) Commit(ctx context.Context) error {
	if c.released {
		return ErrConnReleased
	}
	if !c.inTx {
		return nil
	}
	if _, err := c.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	c.inTx = false
	return nil
}

// Rollback rolls back the open transaction. It runs even when ctx is
// cancelled. Failures are logged, not returned; a session whose rollback
// failed is closed instead of going back to the pool.
func (c *Conn) Rollback(ctx context.Context) {
	if c.released || !c.inTx {
		return
	}
	c.inTx = false
	if _, err := c.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
		c.broken = true
		slog.WarnContext(ctx, "rollback failed, discarding connection", "error", err)
	}
}

// Release returns the session to the pool, rolling back any transaction
// still open. Calling it more than once is safe.
func (c *Conn) Release() {
	if c.released {
		return
	}
	if c.inTx {
		// The caller's context may already be cancelled.
		ctx := context.Background()
		slog.WarnContext(ctx, "releasing connection with open transaction, rolling back")
		c.Rollback(ctx)
	}
	c.released = true
	if c.broken {
		// ErrBadConn makes database/sql drop the driver connection.
		_ = c.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	if err := c.conn.Close(); err != nil {
		slog.Debug("failed to close connection", "error", err)
	}
}

// WithTransaction runs fn inside a transaction on a dedicated session.
// The transaction commits when fn returns nil and rolls back otherwise.
func (db *DB) WithTransaction(ctx context.Context, fn func(*Conn) error) error {
	conn, err := db.GetConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := conn.BeginTransaction(ctx); err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		conn.Rollback(ctx)
		return err
	}
	return conn.Commit(ctx)
}
