package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/semmidev/wpbackup/internal/config"
)

// SQLiteDatabase reads a SQLite file. Schema statements come from
// sqlite_master, which stores them verbatim.
type SQLiteDatabase struct {
	sqlSource
	path string
}

func NewSQLite(cfg *config.DatabaseConfig) (*SQLiteDatabase, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewSQLiteFromDB(db, cfg.Name), nil
}

// NewSQLiteFromDB wraps an existing connection. Closing the source closes db.
func NewSQLiteFromDB(db *sql.DB, name string) *SQLiteDatabase {
	db.SetMaxOpenConns(1)
	return &SQLiteDatabase{sqlSource: sqlSource{db: db, name: name}}
}

func (s *SQLiteDatabase) Tables(ctx context.Context) ([]string, error) {
	tables, err := s.queryStrings(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (s *SQLiteDatabase) CreateStatement(ctx context.Context, table string) (string, error) {
	var stmt sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err := row.Scan(&stmt); err != nil {
		return "", fmt.Errorf("failed to get create statement for %s: %w", table, err)
	}
	if !stmt.Valid || stmt.String == "" {
		return "", fmt.Errorf("no create statement stored for %s", table)
	}
	return stmt.String, nil
}

func (s *SQLiteDatabase) QuoteString(v string) string {
	return QuoteSQLiteString(v)
}

func QuoteSQLiteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
