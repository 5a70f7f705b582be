package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/semmidev/wpbackup/internal/domain"
)

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

type TreeStats struct {
	Dirs     int
	Files    int
	Excluded int
	Skipped  int
}

// FileTree adds a directory tree to an archive, parents before children.
type FileTree struct {
	logger Logger
	policy domain.Policy
}

func NewFileTree(logger Logger, policy domain.Policy) *FileTree {
	if !policy.Valid() {
		policy = domain.PolicyStrict
	}
	return &FileTree{logger: logger, policy: policy}
}

// Archive walks rootDir and adds every entry not matched by exclusions.
// Excluded directories are not descended into. observe, when set, is called
// after each added entry with its relative path.
func (ft *FileTree) Archive(
	ctx context.Context,
	rootDir string,
	archive domain.Archive,
	exclusions domain.ExclusionSet,
	observe func(rel string, stats TreeStats),
) (TreeStats, error) {
	var stats TreeStats
	root := normalizeRoot(rootDir)

	info, err := os.Stat(root)
	if err != nil {
		return stats, domain.NewBackupError(domain.KindUnknown, "read root directory", err)
	}
	if !info.IsDir() {
		return stats, domain.NewBackupError(domain.KindUnknown, "read root directory",
			fmt.Errorf("%s is not a directory", root))
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return domain.NewBackupError(domain.KindUnknown, "read root directory", walkErr)
			}
			return ft.unreadable(path, walkErr, &stats)
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if exclusions.Excludes(rel) {
			stats.Excluded++
			ft.logger.Debugf("Excluded %s", rel)
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if err := ft.add(archive, path, rel, d, &stats); err != nil {
			return err
		}
		if observe != nil {
			observe(rel, stats)
		}
		return nil
	})

	return stats, err
}

func (ft *FileTree) add(archive domain.Archive, path, rel string, d fs.DirEntry, stats *TreeStats) error {
	mode := d.Type()

	// Links are resolved; a link to a directory is recorded but not followed.
	if mode&fs.ModeSymlink != 0 {
		target, err := os.Stat(path)
		if err != nil {
			return ft.unreadable(path, err, stats)
		}
		mode = target.Mode().Type()
	}

	switch {
	case mode.IsDir():
		if err := archive.AddDir(rel); err != nil {
			return domain.NewBackupError(domain.KindPartialWriteFailure, "add directory "+rel, err)
		}
		stats.Dirs++
	case mode.IsRegular():
		if err := archive.AddFile(path, rel); err != nil {
			if isSourceError(err) {
				return ft.unreadable(path, err, stats)
			}
			return domain.NewBackupError(domain.KindPartialWriteFailure, "add file "+rel, err)
		}
		stats.Files++
	default:
		ft.logger.Warnf("Skipping special file %s (%s)", rel, mode)
		stats.Skipped++
	}
	return nil
}

// unreadable applies the failure policy to a source entry that cannot be
// read.
func (ft *FileTree) unreadable(path string, err error, stats *TreeStats) error {
	if ft.policy == domain.PolicyStrict {
		return domain.NewBackupError(domain.KindUnknown, "read "+path, err)
	}
	ft.logger.Warnf("Skipping unreadable entry %s: %v", path, err)
	stats.Skipped++
	return nil
}

// isSourceError reports whether an AddFile failure came from opening the
// source rather than from writing the archive.
func isSourceError(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)
}

func normalizeRoot(dir string) string {
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" {
		return string(filepath.Separator)
	}
	return filepath.Clean(trimmed)
}
