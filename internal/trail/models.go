package trail

import (
	"errors"
	"time"

	"backend-accessnature/internal/route"
)

var ErrNotFound = errors.New("trail not found")

// Route is a finished recording stored upstream. Entries is empty in
// listings.
type Route struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Name            string        `json:"name"`
	TotalDistanceKm float64       `json:"total_distance_km"`
	ElapsedTimeMs   int64         `json:"elapsed_time_ms"`
	Counts          route.Counts  `json:"counts"`
	Entries         []route.Entry `json:"entries,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	CreatedAt       time.Time     `json:"created_at"`
}
