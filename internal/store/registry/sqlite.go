package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dockmate/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore keeps the same JSON array document in a single-row table so
// every save is one transaction.
type SqliteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SqliteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS registry_document (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *SqliteStore) Init() error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO registry_document (id, body) VALUES (1, '[]')`)
	if err != nil {
		return fmt.Errorf("failed to initialize registry row: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) View(fn func(list []Service) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	err := s.db.QueryRow(`SELECT body FROM registry_document WHERE id = 1`).Scan(&body)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read registry: %w", err)
	}
	return fn(decodeDocument(body))
}

func (s *SqliteStore) Update(fn func(list *[]Service) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.QueryRow(`SELECT body FROM registry_document WHERE id = 1`).Scan(&body)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read registry: %w", err)
	}

	list := decodeDocument(body)
	if err := fn(&list); err != nil {
		return err
	}

	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO registry_document (id, body, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, string(b))
	if err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return tx.Commit()
}

func decodeDocument(body string) []Service {
	if body == "" {
		return []Service{}
	}
	var list []Service
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		logger.Warnf("registry row unreadable, starting empty: %v", err)
		return []Service{}
	}
	if list == nil {
		list = []Service{}
	}
	return list
}
