package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrArchiveClosed         = errors.New("archive already closed")
	ErrEmptyDatabase         = errors.New("no tables found in database")
	ErrEmptyDump             = errors.New("sql dump is empty")
	ErrConnectionUnavailable = errors.New("database connection unavailable")
	ErrUnsupportedDatabase   = errors.New("unsupported database type")
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindUnsupportedEnvironment
	KindEmptyDatabase
	KindPartialWriteFailure
	KindConnectionUnavailable
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindUnsupportedEnvironment:
		return "UnsupportedEnvironment"
	case KindEmptyDatabase:
		return "EmptyDatabase"
	case KindPartialWriteFailure:
		return "PartialWriteFailure"
	case KindConnectionUnavailable:
		return "ConnectionUnavailable"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// BackupError ties a failure to the stage that produced it.
type BackupError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// NewBackupError wraps err for op. When kind is KindUnknown the kind is
// derived from err.
func NewBackupError(kind ErrorKind, op string, err error) *BackupError {
	if kind == KindUnknown {
		kind = KindOf(err)
	}
	return &BackupError{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err, preferring an explicit kind found in the chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var be *BackupError
	if errors.As(err, &be) && be.Kind != KindUnknown {
		return be.Kind
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, ErrEmptyDatabase), errors.Is(err, ErrEmptyDump):
		return KindEmptyDatabase
	case errors.Is(err, ErrConnectionUnavailable):
		return KindConnectionUnavailable
	case errors.Is(err, ErrUnsupportedDatabase):
		return KindUnsupportedEnvironment
	case errors.Is(err, ErrArchiveClosed):
		return KindPartialWriteFailure
	}
	return KindUnknown
}
