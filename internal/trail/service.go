package trail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-accessnature/internal/db"
	"backend-accessnature/internal/route"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// PhotoStore moves inline photo content out of the route document. Photos
// are written through q so they commit or roll back with the trail row.
type PhotoStore interface {
	SavePhotoWith(ctx context.Context, q db.Querier, userID, content string) (string, error)
}

type Service struct {
	db     db.Querier
	photos PhotoStore
}

// NewService builds the trail service. photos may be nil, in which case
// photo content is stored inline.
func NewService(db db.Querier, photos PhotoStore) *Service {
	return &Service{db: db, photos: photos}
}

// SaveRoute stores the session as a trail. Offloaded photos and the trail
// row are written in one transaction.
func (s *Service) SaveRoute(ctx context.Context, userID, name string, session route.Session) (Route, error) {
	r := Route{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            name,
		TotalDistanceKm: session.TotalDistanceKm,
		ElapsedTimeMs:   session.ElapsedTimeMs,
		Counts:          session.Counts(),
		StartedAt:       session.StartTimestamp,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Route{}, fmt.Errorf("begin trail save: %w", err)
	}
	defer tx.Rollback(ctx)

	entries := make([]route.Entry, len(session.Entries))
	copy(entries, session.Entries)
	for i, e := range entries {
		if e.Type != route.EntryPhoto || s.photos == nil || e.Content == "" {
			continue
		}
		url, err := s.photos.SavePhotoWith(ctx, tx, userID, e.Content)
		if err != nil {
			return Route{}, fmt.Errorf("offload photo %d: %w", i, err)
		}
		entries[i].Content = url
	}
	r.Entries = entries

	payload, err := json.Marshal(entries)
	if err != nil {
		return Route{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO trails (id, user_id, name, total_distance_km, elapsed_time_ms, location_count, photo_count, note_count, entries, path, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, ST_GeogFromText($10), $11)
		RETURNING created_at
	`, r.ID, r.UserID, r.Name, r.TotalDistanceKm, r.ElapsedTimeMs,
		r.Counts.Locations, r.Counts.Photos, r.Counts.Notes, payload, pathWKT(entries), timePtr(r.StartedAt))
	if err := row.Scan(&r.CreatedAt); err != nil {
		return Route{}, fmt.Errorf("save trail: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Route{}, fmt.Errorf("commit trail save: %w", err)
	}
	return r, nil
}

func (s *Service) RoutesForUser(ctx context.Context, userID string) ([]Route, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM trails WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// RoutesNear lists trails whose path passes within radiusKm of the point.
func (s *Service) RoutesNear(ctx context.Context, lat, lng, radiusKm float64) ([]Route, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM trails
		WHERE path IS NOT NULL
		  AND ST_DWithin(path, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
		ORDER BY created_at DESC
	`, lng, lat, radiusKm*1000)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

const summaryColumns = `id, user_id, name, total_distance_km, elapsed_time_ms, location_count, photo_count, note_count,
			COALESCE(started_at, created_at), created_at`

func scanSummaries(rows pgx.Rows) ([]Route, error) {
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var r Route
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.TotalDistanceKm, &r.ElapsedTimeMs,
			&r.Counts.Locations, &r.Counts.Photos, &r.Counts.Notes, &r.StartedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (s *Service) GetRoute(ctx context.Context, id string) (Route, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, total_distance_km, elapsed_time_ms, location_count, photo_count, note_count, entries,
			COALESCE(started_at, created_at), created_at
		FROM trails WHERE id=$1
	`, id)
	var r Route
	var payload []byte
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.TotalDistanceKm, &r.ElapsedTimeMs,
		&r.Counts.Locations, &r.Counts.Photos, &r.Counts.Notes, &payload, &r.StartedAt, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, ErrNotFound
		}
		return Route{}, err
	}
	if err := json.Unmarshal(payload, &r.Entries); err != nil {
		return Route{}, fmt.Errorf("decode trail entries: %w", err)
	}
	return r, nil
}

// DeleteRoute removes a trail owned by userID.
func (s *Service) DeleteRoute(ctx context.Context, id, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trails WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// pathWKT renders the location fixes as a WKT linestring, or nil when there
// are too few to form a line.
func pathWKT(entries []route.Entry) *string {
	var line orb.LineString
	for _, e := range entries {
		if e.Type == route.EntryLocation && e.Coords != nil {
			line = append(line, orb.Point{e.Coords.Lng, e.Coords.Lat})
		}
	}
	if len(line) < 2 {
		return nil
	}
	s := wkt.MarshalString(line)
	return &s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
