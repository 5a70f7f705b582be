package usecase

import (
	"archive/zip"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/wpbackup/internal/adapter/database"
	"github.com/semmidev/wpbackup/internal/domain"
	"github.com/semmidev/wpbackup/internal/infrastructure/logger"
)

var nopLogger = logger.NewNop()

// memoryArchive records entries in a map.
type memoryArchive struct {
	entries map[string]string
	order   []string
	closed  bool
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{entries: make(map[string]string)}
}

func (m *memoryArchive) put(name, content string) error {
	if m.closed {
		return domain.ErrArchiveClosed
	}
	m.entries[name] = content
	m.order = append(m.order, name)
	return nil
}

func (m *memoryArchive) AddDir(name string) error {
	return m.put(strings.TrimSuffix(name, "/")+"/", "")
}

func (m *memoryArchive) AddFile(srcPath, name string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	return m.put(name, string(data))
}

func (m *memoryArchive) AddReader(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return m.put(name, string(data))
}

func (m *memoryArchive) AddString(name, content string) error {
	return m.put(name, content)
}

func (m *memoryArchive) Close() error {
	if m.closed {
		return domain.ErrArchiveClosed
	}
	m.closed = true
	return nil
}

// failingArchive rejects file entries to simulate a broken archive writer.
type failingArchive struct {
	domain.Archive
}

func (f *failingArchive) AddFile(string, string) error {
	return errors.New("disk full")
}

func writeTree(root string, files map[string]string, dirs ...string) {
	for _, d := range dirs {
		So(os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755), ShouldBeNil)
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
		So(os.WriteFile(path, []byte(content), 0o644), ShouldBeNil)
	}
}

func readZip(path string) map[string]string {
	r, err := zip.OpenReader(path)
	So(err, ShouldBeNil)
	defer r.Close()

	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		So(err, ShouldBeNil)
		data, err := io.ReadAll(rc)
		So(err, ShouldBeNil)
		rc.Close()
		entries[f.Name] = string(data)
	}
	return entries
}

func entryNames(entries map[string]string) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newSQLite opens a private in-memory database and runs setup statements.
func newSQLite(statements ...string) *database.SQLiteDatabase {
	db, err := sql.Open("sqlite3", ":memory:")
	So(err, ShouldBeNil)
	source := database.NewSQLiteFromDB(db, "test")
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		So(err, ShouldBeNil)
	}
	return source
}
