package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errSave = errors.New("save failed")

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func TestSavePhoto(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", KindPhoto, "image/png", []byte("\x89PNG\r\n\x1a\n")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock)
	url, err := svc.SavePhoto(context.Background(), "user-1", pngDataURL)
	if err != nil {
		t.Fatalf("save photo: %v", err)
	}
	if !strings.HasPrefix(url, "/storage/photos/") || len(url) <= len("/storage/photos/") {
		t.Fatalf("unexpected url %q", url)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSavePhotoPassesURLsThrough(t *testing.T) {
	svc := NewService(nil)
	url, err := svc.SavePhoto(context.Background(), "user-1", "/storage/photos/abc")
	if err != nil || url != "/storage/photos/abc" {
		t.Fatalf("expected url unchanged, got %q %v", url, err)
	}
}

func TestSavePhotoErrors(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	svc := NewService(mock)

	for _, bad := range []string{"data:image/png;base64", "data:image/png,raw", "data:image/png;base64,@@@"} {
		if _, err := svc.SavePhoto(context.Background(), "user-1", bad); !errors.Is(err, ErrBadDataURL) {
			t.Fatalf("%q: expected bad data url, got %v", bad, err)
		}
	}

	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", KindPhoto, "image/png", pgxmock.AnyArg()).
		WillReturnError(errSave)
	if _, err := svc.SavePhoto(context.Background(), "user-1", pngDataURL); !errors.Is(err, errSave) {
		t.Fatalf("expected save error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSavePhotoWithUsesGivenQuerier(t *testing.T) {
	tx, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer tx.Close()

	tx.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-2", KindPhoto, "image/png", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(nil)
	url, err := svc.SavePhotoWith(context.Background(), tx, "user-2", pngDataURL)
	if err != nil || !strings.HasPrefix(url, "/storage/photos/") {
		t.Fatalf("unexpected result %q %v", url, err)
	}
	if err := tx.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDecodeDataURLDefaultsContentType(t *testing.T) {
	contentType, data, err := decodeDataURL("data:;base64,aGk=")
	if err != nil || contentType != "application/octet-stream" || string(data) != "hi" {
		t.Fatalf("unexpected decode: %q %q %v", contentType, data, err)
	}
}

func TestPhoto(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()
	svc := NewService(mock)

	mock.ExpectQuery(`SELECT id, user_id, kind, content_type, data, created_at`).
		WithArgs("obj-1", KindPhoto).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "kind", "content_type", "data", "created_at"}).
			AddRow("obj-1", "user-1", KindPhoto, "image/jpeg", []byte("jpg"), time.Now()))

	obj, err := svc.Photo(context.Background(), "obj-1")
	if err != nil || obj.ContentType != "image/jpeg" || string(obj.Data) != "jpg" {
		t.Fatalf("unexpected photo %+v %v", obj, err)
	}

	mock.ExpectQuery(`SELECT id, user_id, kind, content_type, data, created_at`).
		WithArgs("missing", KindPhoto).
		WillReturnError(pgx.ErrNoRows)
	if _, err := svc.Photo(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
