package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/semmidev/wpbackup/internal/domain"
)

// ZipArchive writes a standard zip file (local headers plus central
// directory) at a fixed path.
type ZipArchive struct {
	path   string
	file   *os.File
	writer *zip.Writer
	closed bool
}

// OpenZip creates or truncates the zip file at path.
func OpenZip(path string) (domain.Archive, error) {
	z, err := NewZip(path)
	if err != nil {
		return nil, err
	}
	return z, nil
}

func NewZip(path string) (*ZipArchive, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	return &ZipArchive{
		path:   path,
		file:   file,
		writer: zip.NewWriter(file),
	}, nil
}

func (z *ZipArchive) Path() string {
	return z.path
}

func (z *ZipArchive) AddDir(name string) error {
	if z.closed {
		return domain.ErrArchiveClosed
	}

	name = strings.TrimSuffix(normalizeName(name), "/") + "/"
	if _, err := z.writer.Create(name); err != nil {
		return fmt.Errorf("failed to add directory %s: %w", name, err)
	}
	return nil
}

func (z *ZipArchive) AddFile(srcPath, name string) error {
	if z.closed {
		return domain.ErrArchiveClosed
	}

	source, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", name, err)
	}
	header.Name = normalizeName(name)
	header.Method = zip.Deflate

	w, err := z.writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add file %s: %w", name, err)
	}
	if _, err := io.Copy(w, source); err != nil {
		return fmt.Errorf("failed to write file %s: %w", name, err)
	}
	return nil
}

func (z *ZipArchive) AddReader(name string, r io.Reader) error {
	if z.closed {
		return domain.ErrArchiveClosed
	}

	w, err := z.writer.Create(normalizeName(name))
	if err != nil {
		return fmt.Errorf("failed to add entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

func (z *ZipArchive) AddString(name, content string) error {
	return z.AddReader(name, strings.NewReader(content))
}

// Close writes the central directory and closes the file. Both steps are
// attempted; their errors are combined.
func (z *ZipArchive) Close() error {
	if z.closed {
		return domain.ErrArchiveClosed
	}
	z.closed = true

	err := multierr.Append(z.writer.Close(), z.file.Close())
	if err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimLeft(name, "/")
}
