package domain

import "io"

// Archive is an exclusively owned archive being written. Names use forward
// slashes. No entry may be added after Close, and Close succeeds only once.
type Archive interface {
	AddDir(name string) error
	AddFile(srcPath, name string) error
	AddReader(name string, r io.Reader) error
	AddString(name, content string) error
	Close() error
}

// ArchiveOpener creates or truncates the archive at path.
type ArchiveOpener func(path string) (Archive, error)
