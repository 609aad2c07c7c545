package storage

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestStorageUploadHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", KindPhoto, "image/png", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/storage"), NewService(mock), asUser("user-1"))

	body, _ := json.Marshal(map[string]string{"content": pngDataURL})
	req := httptest.NewRequest(http.MethodPost, "/storage/photos", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status: %v", err)
	}
}

func TestStorageUploadBadRequest(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/storage"), NewService(nil), asUser("user-1"))

	for _, payload := range []string{`{}`, `{"content":"data:image/png,raw"}`} {
		req := httptest.NewRequest(http.MethodPost, "/storage/photos", bytes.NewReader([]byte(payload)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected bad request, got %d", payload, resp.StatusCode)
		}
	}
}

func TestStorageUploadError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO storage_objects`).
		WithArgs(pgxmock.AnyArg(), "user-1", KindPhoto, "image/png", pgxmock.AnyArg()).
		WillReturnError(errSave)

	app := fiber.New()
	RegisterRoutes(app.Group("/storage"), NewService(mock), asUser("user-1"))

	body, _ := json.Marshal(map[string]string{"content": pngDataURL})
	req := httptest.NewRequest(http.MethodPost, "/storage/photos", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected error status")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("insert must reach the database: %v", err)
	}
}

func TestStorageServePhoto(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, kind, content_type, data, created_at`).
		WithArgs("obj-1", KindPhoto).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "kind", "content_type", "data", "created_at"}).
			AddRow("obj-1", "user-1", KindPhoto, "image/png", []byte("png-bytes"), time.Now()))
	mock.ExpectQuery(`SELECT id, user_id, kind, content_type, data, created_at`).
		WithArgs("missing", KindPhoto).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id, user_id, kind, content_type, data, created_at`).
		WithArgs("broken", KindPhoto).
		WillReturnError(errSave)

	app := fiber.New()
	RegisterRoutes(app.Group("/storage"), NewService(mock), asUser("user-1"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/storage/photos/obj-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("serve status: %v", err)
	}
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected body %q", data)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/storage/photos/missing", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/storage/photos/broken", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
