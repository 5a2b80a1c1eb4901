package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported DB_TYPE values
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// ErrNotFound is returned when a user or word does not exist
var ErrNotFound = errors.New("not found")

// Config selects the database backend
type Config struct {
	Type string `yaml:"type"`
	// DSN is a file path for sqlite or a connection string for postgres
	DSN string `yaml:"dsn"`
}

// Store is the sqlx-backed persistence for users, words and activity
type Store struct {
	db *sqlx.DB
}

// Open establishes a connection to the database and initializes the schema
func Open(cfg Config) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Type {
	case TypePostgres:
		db, err = sqlx.Connect("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	case TypeSQLite, "":
		if cfg.DSN != ":memory:" {
			// Create data directory if it doesn't exist
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = sqlx.Connect("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers; one connection also keeps :memory: shared
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	return New(db)
}

// New wraps an open connection and initializes the schema
func New(db *sqlx.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) isPostgres() bool {
	return s.db.DriverName() == "postgres"
}

// initializeSchema creates necessary tables if they don't exist
func (s *Store) initializeSchema() error {
	idColumn, realType := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if s.isPostgres() {
		idColumn, realType = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	// Create users table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			reminders_per_day INTEGER NOT NULL DEFAULT 1,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			language TEXT NOT NULL DEFAULT 'ru',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// Create words table
	_, err = s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS words (
			id %[1]s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			text TEXT NOT NULL,
			translation TEXT NOT NULL,
			next_repeat TIMESTAMP NOT NULL,
			repeat_count INTEGER NOT NULL DEFAULT 0,
			base_difficulty %[2]s NOT NULL DEFAULT 0.5,
			personal_difficulty %[2]s NOT NULL DEFAULT 0.5,
			difficulty %[2]s NOT NULL DEFAULT 0.5,
			stability %[2]s NOT NULL DEFAULT 1.0,
			recall_probability %[2]s NOT NULL DEFAULT 0.5,
			history TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL
		)
	`, idColumn, realType))
	if err != nil {
		return fmt.Errorf("failed to create words table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_words_user_next ON words (user_id, next_repeat)`)
	if err != nil {
		return fmt.Errorf("failed to create words index: %w", err)
	}

	// Create activity table
	_, err = s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS activity (
			id %s,
			user_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`, idColumn))
	if err != nil {
		return fmt.Errorf("failed to create activity table: %w", err)
	}

	return nil
}
