package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/wpbackup/internal/config"
)

func TestMySQLQuoting(t *testing.T) {
	Convey("Given MySQL string quoting", t, func() {
		Convey("Plain text should only be wrapped", func() {
			So(QuoteMySQLString("hello"), ShouldEqual, "'hello'")
			So(QuoteMySQLString(""), ShouldEqual, "''")
		})

		Convey("Quote metacharacters should be escaped", func() {
			So(QuoteMySQLString("it's"), ShouldEqual, `'it\'s'`)
			So(QuoteMySQLString(`say "hi"`), ShouldEqual, `'say \"hi\"'`)
			So(QuoteMySQLString(`back\slash`), ShouldEqual, `'back\\slash'`)
		})

		Convey("Control characters should be escaped", func() {
			So(QuoteMySQLString("a\nb\rc"), ShouldEqual, `'a\nb\rc'`)
			So(QuoteMySQLString("nul\x00"), ShouldEqual, `'nul\0'`)
			So(QuoteMySQLString("sub\x1a"), ShouldEqual, `'sub\Z'`)
		})

		Convey("An injection attempt should stay inside the literal", func() {
			So(QuoteMySQLString(`'); DROP TABLE users; --`), ShouldEqual, `'\'); DROP TABLE users; --'`)
			So(QuoteMySQLString(`\'`), ShouldEqual, `'\\\''`)
		})

		Convey("Multibyte text should pass through", func() {
			So(QuoteMySQLString("héllo wörld"), ShouldEqual, "'héllo wörld'")
		})
	})

	Convey("Given a MySQL config", t, func() {
		cfg := &config.DatabaseConfig{
			Name:     "site",
			Type:     "mysql",
			Host:     "db.local",
			Port:     3306,
			Username: "wp",
			Password: "secret",
			Database: "wordpress",
			Charset:  "utf8mb4",
		}

		Convey("The DSN should carry address, credentials and database", func() {
			dsn := mysqlDSN(cfg)
			So(dsn, ShouldStartWith, "wp:secret@tcp(db.local:3306)/wordpress")
			So(dsn, ShouldContainSubstring, "charset=utf8mb4")
		})

		Convey("NewMySQL should not connect eagerly", func() {
			db, err := NewMySQL(cfg)
			So(err, ShouldBeNil)
			So(db.Name(), ShouldEqual, "site")
			So(db.QuoteString("a'b"), ShouldEqual, `'a\'b'`)
			So(db.Close(), ShouldBeNil)
		})
	})
}

// scriptedResult is the answer a scriptedConnector gives to queries that
// start with prefix.
type scriptedResult struct {
	prefix  string
	columns []string
	rows    [][]driver.Value
}

// scriptedConnector is a database/sql driver that replays canned MySQL
// result shapes and records the queries it receives.
type scriptedConnector struct {
	mu      sync.Mutex
	results []scriptedResult
	queries []string
}

func (c *scriptedConnector) Connect(context.Context) (driver.Conn, error) {
	return &scriptedConn{connector: c}, nil
}

func (c *scriptedConnector) Driver() driver.Driver {
	return scriptedDriver{}
}

func (c *scriptedConnector) answer(query string) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	for _, r := range c.results {
		if strings.HasPrefix(query, r.prefix) {
			return &scriptedRows{columns: r.columns, rows: r.rows}, nil
		}
	}
	return nil, errors.New("unexpected query: " + query)
}

func (c *scriptedConnector) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

type scriptedDriver struct{}

func (scriptedDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use sql.OpenDB")
}

type scriptedConn struct {
	connector *scriptedConnector
}

func (c *scriptedConn) Prepare(query string) (driver.Stmt, error) {
	return &scriptedStmt{connector: c.connector, query: query}, nil
}

func (c *scriptedConn) Close() error {
	return nil
}

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions are not supported")
}

type scriptedStmt struct {
	connector *scriptedConnector
	query     string
}

func (s *scriptedStmt) Close() error {
	return nil
}

func (s *scriptedStmt) NumInput() int {
	return -1
}

func (s *scriptedStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("exec is not supported")
}

func (s *scriptedStmt) Query([]driver.Value) (driver.Rows, error) {
	return s.connector.answer(s.query)
}

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	next    int
}

func (r *scriptedRows) Columns() []string {
	return r.columns
}

func (r *scriptedRows) Close() error {
	return nil
}

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

func TestMySQLSource(t *testing.T) {
	Convey("Given a MySQL server holding a table and a view", t, func() {
		connector := &scriptedConnector{results: []scriptedResult{
			{
				prefix:  "SHOW FULL TABLES",
				columns: []string{"Tables_in_wordpress", "Table_type"},
				rows:    [][]driver.Value{{[]byte("wp_posts"), []byte("BASE TABLE")}},
			},
			{
				prefix:  "SHOW CREATE TABLE `wp_posts`",
				columns: []string{"Table", "Create Table"},
				rows:    [][]driver.Value{{[]byte("wp_posts"), []byte("CREATE TABLE `wp_posts` (`ID` bigint)")}},
			},
			{
				prefix:  "SHOW CREATE TABLE `recent_posts`",
				columns: []string{"View", "Create View", "character_set_client", "collation_connection"},
				rows: [][]driver.Value{{
					[]byte("recent_posts"),
					[]byte("CREATE VIEW `recent_posts` AS select `ID` from `wp_posts`"),
					[]byte("utf8mb4"),
					[]byte("utf8mb4_general_ci"),
				}},
			},
			{
				prefix:  "SHOW CREATE TABLE `gone`",
				columns: []string{"Table", "Create Table"},
			},
			{
				prefix:  "SELECT * FROM `wp_posts`",
				columns: []string{"ID", "post_title"},
				rows:    [][]driver.Value{{int64(1), []byte("Hello")}, {int64(2), nil}},
			},
		}}
		db := sql.OpenDB(connector)
		source := NewMySQLFromDB(db, "site")
		defer source.Close()
		ctx := context.Background()

		Convey("Tables should ask for base tables only", func() {
			tables, err := source.Tables(ctx)
			So(err, ShouldBeNil)
			So(tables, ShouldResemble, []string{"wp_posts"})
			So(connector.seen(), ShouldContain, "SHOW FULL TABLES WHERE Table_type = 'BASE TABLE'")
		})

		Convey("CreateStatement should read a table's two-column answer", func() {
			stmt, err := source.CreateStatement(ctx, "wp_posts")
			So(err, ShouldBeNil)
			So(stmt, ShouldEqual, "CREATE TABLE `wp_posts` (`ID` bigint)")
		})

		Convey("CreateStatement should read a view's four-column answer", func() {
			stmt, err := source.CreateStatement(ctx, "recent_posts")
			So(err, ShouldBeNil)
			So(stmt, ShouldStartWith, "CREATE VIEW `recent_posts`")
		})

		Convey("CreateStatement should fail when nothing comes back", func() {
			_, err := source.CreateStatement(ctx, "gone")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, sql.ErrNoRows), ShouldBeTrue)
		})

		Convey("Rows should stream values with NULL preserved", func() {
			var got [][]sql.NullString
			err := source.Rows(ctx, "wp_posts", func(row []sql.NullString) error {
				got = append(got, append([]sql.NullString(nil), row...))
				return nil
			})
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0][0].String, ShouldEqual, "1")
			So(got[0][1].String, ShouldEqual, "Hello")
			So(got[1][1].Valid, ShouldBeFalse)
		})
	})
}
