// Package store persists registered contacts in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a contact does not exist.
var ErrNotFound = errors.New("contact not found")

// Contact is one registered sender.
type Contact struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Identity  string    `json:"identity"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store wraps the SQLite database holding contacts.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens a SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if path == ":memory:" {
		return OpenMemory()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return initialize(db, path)
}

// OpenMemory creates an in-memory database, mainly for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}

	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	return initialize(db, ":memory:")
}

func initialize(db *sql.DB, path string) (*Store, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel TEXT NOT NULL,
    identity TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE(channel, identity)
);
`

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Register creates the contact for (channel, identity) or renames it when it
// already exists. created reports whether a new row was inserted.
// Concurrent registrations of one sender are safe: exactly one of them
// creates the row.
func (s *Store) Register(ctx context.Context, channel string, identity string, name string) (contact Contact, created bool, err error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (channel, identity, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(channel, identity) DO NOTHING
		RETURNING `+contactColumns,
		channel, identity, name, now, now,
	)
	contact, err = scanContact(row)
	switch {
	case err == nil:
		return contact, true, nil
	case !errors.Is(err, ErrNotFound):
		return Contact{}, false, fmt.Errorf("insert contact: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`UPDATE contacts SET name = ?, updated_at = ? WHERE channel = ? AND identity = ?
		RETURNING `+contactColumns,
		name, now, channel, identity,
	)
	contact, err = scanContact(row)
	if err != nil {
		return Contact{}, false, fmt.Errorf("rename contact: %w", err)
	}

	return contact, false, nil
}

// UpdateName renames the contact with the given ID.
func (s *Store) UpdateName(ctx context.Context, id int64, name string) (Contact, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return Contact{}, fmt.Errorf("update contact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Contact{}, fmt.Errorf("update contact: %w", err)
	}
	if affected == 0 {
		return Contact{}, ErrNotFound
	}

	return s.Get(ctx, id)
}

// Get returns the contact with the given ID.
func (s *Store) Get(ctx context.Context, id int64) (Contact, error) {
	row := s.db.QueryRowContext(ctx, selectContact+` WHERE id = ?`, id)
	return scanContact(row)
}

// GetByIdentity returns the contact registered for a sender on a channel.
func (s *Store) GetByIdentity(ctx context.Context, channel string, identity string) (Contact, error) {
	row := s.db.QueryRowContext(ctx, selectContact+` WHERE channel = ? AND identity = ?`, channel, identity)
	return scanContact(row)
}

// List returns all contacts ordered by ID.
func (s *Store) List(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, selectContact+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}

	return contacts, rows.Err()
}

const (
	contactColumns = `id, channel, identity, name, created_at, updated_at`
	selectContact  = `SELECT ` + contactColumns + ` FROM contacts`
)

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanContact(sc scanner) (Contact, error) {
	var (
		contact          Contact
		created, updated string
	)

	if err := sc.Scan(&contact.ID, &contact.Channel, &contact.Identity, &contact.Name, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("scan contact: %w", err)
	}

	var err error
	if contact.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Contact{}, fmt.Errorf("scan contact %d: created_at: %w", contact.ID, err)
	}
	if contact.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Contact{}, fmt.Errorf("scan contact %d: updated_at: %w", contact.ID, err)
	}

	return contact, nil
}
