package domain

import (
	"context"
	"time"
)

// SQLDumpEntry is the archive entry holding the database dump.
const SQLDumpEntry = "database_backup.sql"

// DefaultArchiveName is the output filename used when none is configured.
const DefaultArchiveName = "wpbackup.zip"

// Policy decides what happens when a single source item cannot be read.
type Policy string

const (
	// PolicyStrict fails the whole run on the first unreadable file or table.
	PolicyStrict Policy = "strict"
	// PolicyBestEffort logs and skips unreadable files and tables.
	PolicyBestEffort Policy = "best-effort"
)

func (p Policy) Valid() bool {
	return p == PolicyStrict || p == PolicyBestEffort
}

type Stage string

const (
	StageIdle           Stage = "idle"
	StageArchiveOpened  Stage = "archive_opened"
	StageFilesArchived  Stage = "files_archived"
	StageDatabaseDumped Stage = "database_dumped"
	StageFinalized      Stage = "finalized"
	StageFailed         Stage = "failed"
)

type Progress struct {
	Stage   Stage
	Dirs    int
	Files   int
	Skipped int
	Tables  int
	Rows    int64
	Current string
}

// ProgressFunc receives progress snapshots. It is called synchronously from
// the running backup and must not block.
type ProgressFunc func(Progress)

type BackupRequest struct {
	RootDir    string
	OutputPath string
	Exclusions []string
	Policy     Policy
}

type BackupStats struct {
	Dirs    int
	Files   int
	Skipped int
	Tables  int
	Rows    int64
	Size    int64
}

// BackupResult is the terminal outcome of one run. OK is false for every
// failure; there is no partial success.
type BackupResult struct {
	OK       bool
	Path     string
	Message  string
	Kind     ErrorKind
	Err      error
	Stats    BackupStats
	Started  time.Time
	Finished time.Time
}

func (r BackupResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Notifier relays a finished run to an external party.
type Notifier interface {
	Notify(ctx context.Context, result BackupResult) error
}
