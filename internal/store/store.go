package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/flowrank/pkg/workflow"
)

// ErrNotFound is returned when no workflow has the requested key.
var ErrNotFound = errors.New("workflow not found")

const defaultListLimit = 50

// ListOpts controls workflow listing.
type ListOpts struct {
	Platform workflow.Platform
	Country  string
	Limit    int
}

// Store is the persistence interface.
type Store interface {
	Upsert(ctx context.Context, rec *workflow.Record) (*workflow.Record, error)
	Get(ctx context.Context, key workflow.Key) (*workflow.Record, error)
	List(ctx context.Context, opts ListOpts) ([]workflow.Record, error)
	CountByPlatform(ctx context.Context) (map[workflow.Platform]int, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sqlx.DB
	locks keyLocks
	now   func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer; one connection avoids lock upgrades
	// failing with SQLITE_BUSY between concurrent transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts rec, or overwrites the mutable fields of the stored record
// with the same key. CreatedAt is only set on insert. Writes to the same key
// are serialized.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *workflow.Record) (*workflow.Record, error) {
	key := rec.Key()
	unlock := s.locks.lock(key.String())
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert %s: %w", key, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()

	var row workflowRow
	err = tx.GetContext(ctx, &row, selectByKey, key.Name, key.Platform, key.Country)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored := *rec
		stored.Derive()
		stored.CreatedAt = now

		res, err := tx.NamedExecContext(ctx, insertWorkflow, fromRecord(&stored, now))
		if err != nil {
			return nil, fmt.Errorf("insert workflow %s: %w", key, err)
		}
		if stored.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert workflow %s: %w", key, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit workflow %s: %w", key, err)
		}
		return &stored, nil

	case err != nil:
		return nil, fmt.Errorf("lookup workflow %s: %w", key, err)
	}

	merged := workflow.Merge(row.toRecord(), *rec)
	if _, err := tx.NamedExecContext(ctx, updateWorkflow, fromRecord(&merged, now)); err != nil {
		return nil, fmt.Errorf("update workflow %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit workflow %s: %w", key, err)
	}
	return &merged, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key workflow.Key) (*workflow.Record, error) {
	var row workflowRow
	err := s.db.GetContext(ctx, &row, selectByKey, key.Name, key.Platform, key.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", key, err)
	}
	rec := row.toRecord()
	return &rec, nil
}

// List returns workflows ordered by popularity, highest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOpts) ([]workflow.Record, error) {
	query := "SELECT * FROM workflows WHERE 1=1"
	var args []any

	if opts.Platform != "" {
		query += " AND platform = ?"
		args = append(args, opts.Platform)
	}
	if opts.Country != "" {
		query += " AND country = ?"
		args = append(args, opts.Country)
	}

	query += " ORDER BY popularity_score DESC, id ASC"

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []workflowRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	records := make([]workflow.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].toRecord()
	}
	return records, nil
}

func (s *SQLiteStore) CountByPlatform(ctx context.Context) (map[workflow.Platform]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT platform, COUNT(*) AS cnt FROM workflows GROUP BY platform")
	if err != nil {
		return nil, fmt.Errorf("count workflows by platform: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.Platform]int)
	for rows.Next() {
		var platform string
		var cnt int
		if err := rows.Scan(&platform, &cnt); err != nil {
			return nil, fmt.Errorf("scan platform count: %w", err)
		}
		counts[workflow.Platform(platform)] = cnt
	}
	return counts, rows.Err()
}

// keyLocks hands out one mutex per identity key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
