package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"backend-accessnature/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	KindPhoto = "photo"
	photoPath = "/storage/photos/"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// SavePhoto stores inline image content and returns the URL it is served
// from. Content that is already a URL is returned unchanged.
func (s *Service) SavePhoto(ctx context.Context, userID, content string) (string, error) {
	return s.SavePhotoWith(ctx, s.db, userID, content)
}

// SavePhotoWith is SavePhoto run on q, typically a transaction the caller
// commits together with the document referencing the photo.
func (s *Service) SavePhotoWith(ctx context.Context, q db.Querier, userID, content string) (string, error) {
	if !strings.HasPrefix(content, "data:") {
		return content, nil
	}
	contentType, data, err := decodeDataURL(content)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = q.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, kind, content_type, data)
		VALUES ($1,$2,$3,$4,$5)
	`, id, userID, KindPhoto, contentType, data)
	if err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}
	return photoPath + id, nil
}

func (s *Service) Photo(ctx context.Context, id string) (Object, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, kind, content_type, data, created_at
		FROM storage_objects WHERE id=$1 AND kind=$2
	`, id, KindPhoto)
	var obj Object
	if err := row.Scan(&obj.ID, &obj.UserID, &obj.Kind, &obj.ContentType, &obj.Data, &obj.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Object{}, ErrNotFound
		}
		return Object{}, err
	}
	return obj, nil
}

// decodeDataURL splits "data:<type>;base64,<payload>".
func decodeDataURL(content string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(content, "data:"), ",")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	contentType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, ErrBadDataURL
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return contentType, data, nil
}
