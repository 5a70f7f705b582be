package usecase

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"os"
	"strings"

	"github.com/semmidev/wpbackup/internal/domain"
)

// progressEvery is the number of rows between progress callbacks and
// cancellation checks inside one table.
const progressEvery = 1000

type DumpStats struct {
	Tables  int
	Skipped int
	Rows    int64
	Bytes   int64
}

// Dumper writes a replayable SQL script for every table of a source into a
// single archive entry. The script is spooled to a temporary file first so
// memory stays flat on large databases.
type Dumper struct {
	logger  Logger
	policy  domain.Policy
	tempDir string
}

func NewDumper(logger Logger, policy domain.Policy, tempDir string) *Dumper {
	if !policy.Valid() {
		policy = domain.PolicyStrict
	}
	return &Dumper{logger: logger, policy: policy, tempDir: tempDir}
}

func (d *Dumper) Dump(
	ctx context.Context,
	source domain.TableSource,
	archive domain.Archive,
	observe func(table string, stats DumpStats),
) (DumpStats, error) {
	var stats DumpStats

	if source == nil {
		return stats, domain.NewBackupError(domain.KindConnectionUnavailable, "dump database", domain.ErrConnectionUnavailable)
	}

	tables, err := source.Tables(ctx)
	if err != nil {
		kind := domain.KindOf(err)
		if kind == domain.KindUnknown {
			kind = domain.KindConnectionUnavailable
		}
		return stats, domain.NewBackupError(kind, "list tables", err)
	}
	if len(tables) == 0 {
		d.logger.Errorf("No tables found in database %s", source.Name())
		return stats, domain.NewBackupError(domain.KindEmptyDatabase, "list tables", domain.ErrEmptyDatabase)
	}

	spool, err := os.CreateTemp(d.tempDir, "wpbackup-dump-*.sql")
	if err != nil {
		return stats, domain.NewBackupError(domain.KindUnknown, "create dump spool", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	// bufio keeps the first write error and reports it from Flush.
	w := bufio.NewWriterSize(spool, 256*1024)

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		create, err := source.CreateStatement(ctx, table)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if d.policy == domain.PolicyStrict {
				return stats, domain.NewBackupError(domain.KindUnknown, "schema of "+table, err)
			}
			d.logger.Warnf("Could not get CREATE TABLE statement for table %s, skipping: %v", table, err)
			stats.Skipped++
			continue
		}

		name := quoteIdentifier(table)
		w.WriteString("DROP TABLE IF EXISTS " + name + ";\n")
		w.WriteString(create + ";\n\n")

		var tableRows int64
		err = source.Rows(ctx, table, func(values []sql.NullString) error {
			writeInsert(w, name, values, source.QuoteString)
			tableRows++
			stats.Rows++
			if tableRows%progressEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
				if observe != nil {
					observe(table, stats)
				}
			}
			return nil
		})
		if err != nil {
			return stats, domain.NewBackupError(domain.KindUnknown, "rows of "+table, err)
		}
		if tableRows > 0 {
			w.WriteString("\n\n")
		}

		stats.Tables++
		d.logger.Debugf("Dumped table %s (%d rows)", table, tableRows)
		if observe != nil {
			observe(table, stats)
		}
	}

	if err := w.Flush(); err != nil {
		return stats, domain.NewBackupError(domain.KindUnknown, "write dump spool", err)
	}

	size, err := spool.Seek(0, io.SeekCurrent)
	if err != nil {
		return stats, domain.NewBackupError(domain.KindUnknown, "write dump spool", err)
	}
	if size == 0 {
		d.logger.Errorf("SQL dump is empty, no data backed up")
		return stats, domain.NewBackupError(domain.KindEmptyDatabase, "dump database", domain.ErrEmptyDump)
	}
	stats.Bytes = size

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return stats, domain.NewBackupError(domain.KindUnknown, "rewind dump spool", err)
	}
	if err := archive.AddReader(domain.SQLDumpEntry, spool); err != nil {
		d.logger.Errorf("Failed to add %s to archive: %v", domain.SQLDumpEntry, err)
		return stats, domain.NewBackupError(domain.KindPartialWriteFailure, "add "+domain.SQLDumpEntry, err)
	}

	return stats, nil
}

func writeInsert(w *bufio.Writer, table string, values []sql.NullString, quote func(string) string) {
	w.WriteString("INSERT INTO " + table + " VALUES(")
	for i, v := range values {
		if i > 0 {
			w.WriteString(", ")
		}
		if !v.Valid {
			w.WriteString("NULL")
			continue
		}
		w.WriteString(quote(v.String))
	}
	w.WriteString(");\n")
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
