package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/semmidev/wpbackup/internal/config"
)

type MySQLDatabase struct {
	sqlSource
	config *config.DatabaseConfig
}

func NewMySQL(cfg *config.DatabaseConfig) (*MySQLDatabase, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &MySQLDatabase{
		sqlSource: sqlSource{db: db, name: cfg.Name},
		config:    cfg,
	}, nil
}

// NewMySQLFromDB wraps an already opened connection pool.
func NewMySQLFromDB(db *sql.DB, name string) *MySQLDatabase {
	return &MySQLDatabase{
		sqlSource: sqlSource{db: db, name: name},
		config:    &config.DatabaseConfig{Name: name, Type: "mysql"},
	}
}

func mysqlDSN(cfg *config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.Timeout = 10 * time.Second
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN()
}

// Tables lists base tables only. Views are left out: they carry no rows of
// their own and cannot be restored with DROP TABLE.
func (m *MySQLDatabase) Tables(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, "SHOW FULL TABLES WHERE Table_type = 'BASE TABLE'")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// CreateStatement returns the second column of SHOW CREATE TABLE. Tables
// answer with two columns, views with four.
func (m *MySQLDatabase) CreateStatement(ctx context.Context, table string) (string, error) {
	rows, err := m.db.QueryContext(ctx, "SHOW CREATE TABLE "+QuoteIdentifier(table))
	if err != nil {
		return "", fmt.Errorf("failed to get create statement for %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to get create statement for %s: %w", table, err)
	}
	if len(columns) < 2 {
		return "", fmt.Errorf("failed to get create statement for %s: unexpected %d column(s)", table, len(columns))
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("failed to get create statement for %s: %w", table, err)
		}
		return "", fmt.Errorf("failed to get create statement for %s: %w", table, sql.ErrNoRows)
	}
	if err := rows.Scan(dest...); err != nil {
		return "", fmt.Errorf("failed to get create statement for %s: %w", table, err)
	}
	return values[1].String, nil
}

// QuoteString escapes the same characters as mysql_real_escape_string.
func (m *MySQLDatabase) QuoteString(s string) string {
	return QuoteMySQLString(s)
}

func QuoteMySQLString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
