// Package history persists completed script runs to a local SQLite
// database so past results can be listed and aggregated.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is an open run-history database.
type Store struct {
	path string
	conn *sql.DB
}

// Open opens the store at the default path.
func Open() (*Store, error) {
	return OpenAt(DefaultPath())
}

// OpenAt opens (creating if needed) the store at path. A corrupt
// database file is moved aside and a fresh one is created in its place.
func OpenAt(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	conn, err := openAndInit(clean)
	if err == nil {
		return &Store{path: clean, conn: conn}, nil
	}

	if !isCorruptSQLiteError(err) {
		return nil, err
	}

	// Preserve the corrupt file for inspection and start over.
	if _, statErr := os.Stat(clean); statErr == nil {
		backupPath := clean + ".corrupt." + time.Now().UTC().Format("20060102T150405Z")
		if renameErr := os.Rename(clean, backupPath); renameErr != nil {
			return nil, fmt.Errorf("history db appears corrupt (%v), and rename failed: %w", err, renameErr)
		}
	}

	conn, err = openAndInit(clean)
	if err != nil {
		return nil, err
	}
	return &Store{path: clean, conn: conn}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// DefaultPath is where run history lives unless TERMSCRIPT_HOME says
// otherwise.
func DefaultPath() string {
	if home := os.Getenv("TERMSCRIPT_HOME"); home != "" {
		return filepath.Join(home, "data", "termscript.db")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".termscript", "data", "termscript.db")
	}
	return filepath.Join(homeDir, ".termscript", "data", "termscript.db")
}

func openAndInit(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite PRAGMAs are per-connection; keep a single shared connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	initErr := func() error {
		if err := conn.Ping(); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if err := enableWAL(conn); err != nil {
			return err
		}
		return runMigrations(conn)
	}()

	if initErr != nil {
		_ = conn.Close()
		return nil, initErr
	}
	return conn, nil
}

func dsn(path string) string {
	// Explicit file: DSN so mode=rwc auto-creates the file.
	return "file:" + filepath.ToSlash(path) + "?mode=rwc"
}

func enableWAL(conn *sql.DB) error {
	if _, err := conn.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("set journal_mode=WAL: %w", err)
	}
	// Foreign keys are off by default in SQLite.
	if _, err := conn.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		return fmt.Errorf("set foreign_keys=ON: %w", err)
	}
	return nil
}

func isCorruptSQLiteError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrInvalid) {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "file is not a database"):
		return true
	case strings.Contains(msg, "database disk image is malformed"):
		return true
	case strings.Contains(msg, "malformed"):
		return true
	default:
		return false
	}
}
