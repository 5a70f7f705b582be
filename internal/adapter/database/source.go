package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/semmidev/wpbackup/internal/config"
	"github.com/semmidev/wpbackup/internal/domain"
)

// New opens the table source described by cfg.
func New(cfg *config.DatabaseConfig) (domain.TableSource, error) {
	switch cfg.Type {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDatabase, cfg.Type)
	}
}

// sqlSource holds what both dialects share: a *sql.DB and row streaming.
type sqlSource struct {
	db   *sql.DB
	name string
}

func (s *sqlSource) Name() string {
	return s.name
}

func (s *sqlSource) Ping(ctx context.Context) error {
	if s.db == nil {
		return domain.ErrConnectionUnavailable
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionUnavailable, err)
	}
	return nil
}

func (s *sqlSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlSource) Rows(ctx context.Context, table string, fn domain.RowFunc) error {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+QuoteIdentifier(table))
	if err != nil {
		return fmt.Errorf("failed to select rows from %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate rows of %s: %w", table, err)
	}
	return nil
}

func (s *sqlSource) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
// Both MySQL and SQLite accept this form.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
