// Package viewdb is the local SQLite view of the ssb log. It indexes messages
// into queryable tables and answers paginated feed queries for every strategy.
package viewdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is a view database bound to the identity of the local user. Feed
// strategies that depend on follows are computed relative to that identity.
type DB struct {
	db   *sql.DB
	me   ssb.Identity
	meID int64
	log  *zap.Logger
	now  func() time.Time
}

type Option func(*DB)

func WithLogger(log *zap.Logger) Option {
	return func(d *DB) {
		if log != nil {
			d.log = log
		}
	}
}

// WithClock overrides the clock used to hide messages claimed in the future.
func WithClock(now func() time.Time) Option {
	return func(d *DB) {
		if now != nil {
			d.now = now
		}
	}
}

// Open migrates the database at path to the latest schema and opens it.
func Open(ctx context.Context, path string, me ssb.Identity, opts ...Option) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("viewdb: empty database path")
	}
	if !strings.HasPrefix(string(me), "@") {
		return nil, fmt.Errorf("viewdb: invalid identity %q", me)
	}
	if err := RunMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps pragmas consistent.
	db.SetMaxOpenConns(1)

	d := &DB{db: db, me: me, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named("viewdb")

	d.meID, err = authorID(ctx, db, me)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	d.log.Debug("opened view database", zap.String("path", path), zap.String("identity", string(me)))
	return d, nil
}

// RunMigrations applies every pending migration. A database that is already
// current is not an error.
func RunMigrations(path string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Identity returns the identity the database is bound to.
func (d *DB) Identity() ssb.Identity {
	return d.me
}

// CheckWritable verifies the database accepts writes.
func (d *DB) CheckWritable(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS writable_check (x INTEGER)`); err != nil {
		return fmt.Errorf("database is not writable: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE writable_check`); err != nil {
		return fmt.Errorf("database is not writable: %w", err)
	}
	return tx.Commit()
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// authorID returns the row id for an identity, inserting it when unknown.
func authorID(ctx context.Context, q execQuerier, id ssb.Identity) (int64, error) {
	if _, err := q.ExecContext(ctx, `INSERT INTO authors (author) VALUES (?) ON CONFLICT(author) DO NOTHING`, string(id)); err != nil {
		return 0, fmt.Errorf("insert author %s: %w", id, err)
	}
	var rowID int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM authors WHERE author = ?`, string(id)).Scan(&rowID); err != nil {
		return 0, fmt.Errorf("lookup author %s: %w", id, err)
	}
	return rowID, nil
}

func (d *DB) nowMillis() float64 {
	return float64(d.now().UnixMilli())
}
