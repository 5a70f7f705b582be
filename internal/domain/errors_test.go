package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKindOf(t *testing.T) {
	Convey("Given errors from different failure sources", t, func() {
		Convey("Permission errors should map to PermissionDenied", func() {
			err := fmt.Errorf("open: %w", fs.ErrPermission)
			So(KindOf(err), ShouldEqual, KindPermissionDenied)
		})

		Convey("Context errors should map to Canceled", func() {
			So(KindOf(context.Canceled), ShouldEqual, KindCanceled)
			So(KindOf(fmt.Errorf("walk: %w", context.DeadlineExceeded)), ShouldEqual, KindCanceled)
		})

		Convey("Sentinels should map to their kinds", func() {
			So(KindOf(ErrEmptyDatabase), ShouldEqual, KindEmptyDatabase)
			So(KindOf(ErrConnectionUnavailable), ShouldEqual, KindConnectionUnavailable)
			So(KindOf(ErrUnsupportedDatabase), ShouldEqual, KindUnsupportedEnvironment)
			So(KindOf(ErrArchiveClosed), ShouldEqual, KindPartialWriteFailure)
		})

		Convey("An explicit kind in the chain should win", func() {
			inner := NewBackupError(KindPartialWriteFailure, "add file", fs.ErrPermission)
			So(KindOf(fmt.Errorf("files: %w", inner)), ShouldEqual, KindPartialWriteFailure)
		})

		Convey("NewBackupError should derive an unknown kind", func() {
			be := NewBackupError(KindUnknown, "open", fs.ErrPermission)
			So(be.Kind, ShouldEqual, KindPermissionDenied)
			So(be.Error(), ShouldContainSubstring, "open")
			So(errors.Is(be, fs.ErrPermission), ShouldBeTrue)
		})

		Convey("Nil and plain errors should be Unknown", func() {
			So(KindOf(nil), ShouldEqual, KindUnknown)
			So(KindOf(errors.New("boom")), ShouldEqual, KindUnknown)
			So(KindUnknown.String(), ShouldEqual, "Unknown")
			So(KindEmptyDatabase.String(), ShouldEqual, "EmptyDatabase")
		})
	})
}
