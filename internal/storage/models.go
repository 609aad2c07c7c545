package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrBadDataURL = errors.New("malformed data url")
)

type Object struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
