// Package storage implements the persistence collaborator the engine
// depends on from the outside: environments live here, and script diffs are
// merged in serially per environment identity. The engine itself never
// touches storage — it only returns diffs.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dshills/apiflow/pkg/env"
)

// ErrNotFound is returned when no environment carries the requested id.
var ErrNotFound = errors.New("environment not found")

// EnvironmentStore is a SQLite-backed environment repository. ApplyDiff is
// serialized per environment id, so concurrent post-scripts touching the same
// environment merge in a defined order.
type EnvironmentStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEnvironmentStore opens (and initializes if needed) the store at the
// default location ~/.apiflow/apiflow.db.
func NewEnvironmentStore() (*EnvironmentStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewEnvironmentStoreWithPath(filepath.Join(homeDir, ".apiflow", "apiflow.db"))
}

// NewEnvironmentStoreWithPath opens a store at a custom database path.
// Useful for testing.
func NewEnvironmentStoreWithPath(dbPath string) (*EnvironmentStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &EnvironmentStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func initializeSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS environments (
			id        TEXT PRIMARY KEY,
			name      TEXT NOT NULL DEFAULT '',
			variables TEXT NOT NULL DEFAULT '[]'
		)
	`)
	return err
}

// Close closes the database connection.
func (s *EnvironmentStore) Close() error {
	return s.db.Close()
}

// Save persists an environment, replacing any previous row with the same id.
func (s *EnvironmentStore) Save(ctx context.Context, e *env.Environment) error {
	if e == nil {
		return fmt.Errorf("cannot save nil environment")
	}
	if e.ID == "" {
		return fmt.Errorf("cannot save environment without an id")
	}

	variables, err := json.Marshal(e.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO environments (id, name, variables) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, variables = excluded.variables
	`, e.ID, e.Name, string(variables))
	if err != nil {
		return fmt.Errorf("failed to save environment %s: %w", e.ID, err)
	}
	return nil
}

// Load retrieves the environment with the given id.
func (s *EnvironmentStore) Load(ctx context.Context, id string) (*env.Environment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, variables FROM environments WHERE id = ?`, id)

	e := &env.Environment{}
	var variables string
	if err := row.Scan(&e.ID, &e.Name, &variables); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load environment %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(variables), &e.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables for %s: %w", id, err)
	}
	return e, nil
}

// List returns all environments ordered by name.
func (s *EnvironmentStore) List(ctx context.Context) ([]*env.Environment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, variables FROM environments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var environments []*env.Environment
	for rows.Next() {
		e := &env.Environment{}
		var variables string
		if err := rows.Scan(&e.ID, &e.Name, &variables); err != nil {
			return nil, fmt.Errorf("failed to scan environment row: %w", err)
		}
		if err := json.Unmarshal([]byte(variables), &e.Variables); err != nil {
			return nil, fmt.Errorf("failed to decode variables for %s: %w", e.ID, err)
		}
		environments = append(environments, e)
	}
	return environments, rows.Err()
}

// Delete removes the environment with the given id. Deleting a missing id is
// not an error.
func (s *EnvironmentStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM environments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete environment %s: %w", id, err)
	}
	return nil
}

// ApplyDiff merges a script run's diff into the stored environment and
// returns the updated environment. Calls for the same id are applied
// serially; read-modify-write races between concurrent runs resolve in lock
// acquisition order.
func (s *EnvironmentStore) ApplyDiff(ctx context.Context, id string, diff *env.Diff) (*env.Environment, error) {
	if diff == nil || diff.Empty() {
		return s.Load(ctx, id)
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	diff.Apply(e)
	if err := s.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EnvironmentStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
