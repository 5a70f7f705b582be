package domain

import (
	"context"
	"database/sql"
)

// RowFunc receives one row; NULL columns have Valid == false.
type RowFunc func(values []sql.NullString) error

// TableSource is the read side of a relational database as needed by the
// dumper: table listing, native schema statements and row streaming.
type TableSource interface {
	Name() string
	Ping(ctx context.Context) error
	Tables(ctx context.Context) ([]string, error)
	CreateStatement(ctx context.Context, table string) (string, error)
	Rows(ctx context.Context, table string, fn RowFunc) error
	// QuoteString returns s as a quoted string literal safe for the dialect.
	QuoteString(s string) string
	Close() error
}
