// Package sqlite persists proxy instance records in a SQLite database using
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/state"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const memoryPath = ":memory:"

var _ state.Store = (*Store)(nil)

// Store keeps one row per instance in `proxies` (the encoded header) and one
// row per slot in `slots`. Every method runs in a single SQL transaction.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path. An empty path or
// ":memory:" selects a private in-memory database.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = memoryPath
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serializes writers and keeps an in-memory database on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS proxies (
		address TEXT PRIMARY KEY,
		header BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create proxies table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		address TEXT NOT NULL,
		slot TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (address, slot)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create slots table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func (s *Store) Create(ctx context.Context, rec *state.Record) error {
	header, err := state.EncodeHeader(rec)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := rowExists(ctx, tx, rec.Address)
		if err != nil {
			return err
		}
		if exists {
			return state.ErrExists
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO proxies(address, header) VALUES(?, ?)`, rec.Address, header); err != nil {
			return unavailable(err)
		}
		for k, v := range rec.Slots {
			if err := upsertSlot(ctx, tx, rec.Address, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Load(ctx context.Context, address string) (*state.Record, error) {
	var rec *state.Record

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var header []byte
		err := tx.QueryRowContext(ctx, `SELECT header FROM proxies WHERE address = ?`, address).Scan(&header)
		if errors.Is(err, sql.ErrNoRows) {
			return state.ErrNotFound
		}
		if err != nil {
			return unavailable(err)
		}

		rec, err = state.DecodeHeader(header)
		if err != nil {
			return fmt.Errorf("%w: %v", state.ErrCorrupt, err)
		}
		rec.Address = address

		rows, err := tx.QueryContext(ctx, `SELECT slot, value FROM slots WHERE address = ?`, address)
		if err != nil {
			return unavailable(err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				key   string
				value []byte
			)
			if err := rows.Scan(&key, &value); err != nil {
				return unavailable(err)
			}
			if value == nil {
				value = []byte{}
			}
			rec.Slots[key] = value
		}
		if err := rows.Err(); err != nil {
			return unavailable(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Commit(ctx context.Context, address string, changes state.Changes) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := rowExists(ctx, tx, address)
		if err != nil {
			return err
		}
		if !exists {
			return state.ErrNotFound
		}

		for _, k := range changes.Deletes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE address = ? AND slot = ?`, address, k); err != nil {
				return unavailable(err)
			}
		}

		keys := make([]string, 0, len(changes.Writes))
		for k := range changes.Writes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := upsertSlot(ctx, tx, address, k, changes.Writes[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SetMask(ctx context.Context, address string, mask permission.Mask) error {
	if mask == nil {
		return errors.New("nil mask")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var header []byte
		err := tx.QueryRowContext(ctx, `SELECT header FROM proxies WHERE address = ?`, address).Scan(&header)
		if errors.Is(err, sql.ErrNoRows) {
			return state.ErrNotFound
		}
		if err != nil {
			return unavailable(err)
		}

		rec, err := state.DecodeHeader(header)
		if err != nil {
			return fmt.Errorf("%w: %v", state.ErrCorrupt, err)
		}
		rec.Mask = mask

		next, err := state.EncodeHeader(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE proxies SET header = ? WHERE address = ?`, next, address); err != nil {
			return unavailable(err)
		}
		return nil
	})
}

func (s *Store) Addresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM proxies ORDER BY address`)
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func rowExists(ctx context.Context, tx *sql.Tx, address string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM proxies WHERE address = ?`, address).Scan(&n); err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func upsertSlot(ctx context.Context, tx *sql.Tx, address, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO slots(address, slot, value) VALUES(?, ?, ?)
		ON CONFLICT(address, slot) DO UPDATE SET value = excluded.value`, address, key, value)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", state.ErrUnavailable, err)
}
