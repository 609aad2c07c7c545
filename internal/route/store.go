package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"backend-accessnature/internal/kv"

	"github.com/google/uuid"
)

const (
	BackupKey   = "route_backup"
	SessionsKey = "sessions"
)

// Store owns the active Session and its recovery snapshot. It holds no
// policy about when to snapshot or how entries are interpreted.
type Store struct {
	mu      sync.RWMutex
	session Session

	kv     kv.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(kvStore kv.Store, logger *slog.Logger, now func() time.Time) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{kv: kvStore, now: now, logger: logger}
}

// Clear resets the session. Any stored recovery snapshot is left for the
// caller to delete.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
}

func (s *Store) AddEntry(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Entries = append(s.session.Entries, e.clone())
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.session.Entries)
}

// UpdateDistance overwrites the total; the caller keeps it monotonic.
func (s *Store) UpdateDistance(km float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.TotalDistanceKm = km
}

func (s *Store) TotalDistance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.TotalDistanceKm
}

func (s *Store) SetElapsedTime(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.ElapsedTimeMs = ms
}

func (s *Store) ElapsedTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.ElapsedTimeMs
}

func (s *Store) SetStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.StartTimestamp = t
}

func (s *Store) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.StartTimestamp
}

func (s *Store) SetTrackingState(isTracking, isPaused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.IsTracking = isTracking
	s.session.IsPaused = isTracking && isPaused
}

func (s *Store) TrackingState() (isTracking, isPaused bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsTracking, s.session.IsPaused
}

// LastCoordinates returns the position of the most recent location entry.
func (s *Store) LastCoordinates() (Coordinates, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.session.Entries) - 1; i >= 0; i-- {
		e := s.session.Entries[i]
		if e.Type == EntryLocation && e.Coords != nil {
			return *e.Coords, true
		}
	}
	return Coordinates{}, false
}

// Data returns a deep copy of the session, safe to hand to a save while
// recording keeps appending.
func (s *Store) Data() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

func (s *Store) Restore(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session.clone()
}

// WriteRecoverySnapshot persists the session under BackupKey, replacing any
// previous snapshot. Failures are logged and otherwise ignored.
func (s *Store) WriteRecoverySnapshot(ctx context.Context) {
	snap := Snapshot{Session: s.Data(), CaptureTimestamp: s.now()}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("route: encode recovery snapshot", "error", err)
		return
	}
	if err := s.kv.Set(ctx, BackupKey, string(payload)); err != nil {
		s.logger.Warn("route: write recovery snapshot failed", "error", err, "entries", len(snap.Session.Entries))
	}
}

// ReadRecoverySnapshot returns the stored snapshot. Absent, unreadable and
// malformed snapshots all report false.
func (s *Store) ReadRecoverySnapshot(ctx context.Context) (Snapshot, bool) {
	raw, err := s.kv.Get(ctx, BackupKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("route: read recovery snapshot failed", "error", err)
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warn("route: recovery snapshot is corrupt, ignoring", "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *Store) DeleteRecoverySnapshot(ctx context.Context) {
	if err := s.kv.Delete(ctx, BackupKey); err != nil {
		s.logger.Warn("route: delete recovery snapshot failed", "error", err)
	}
}

// SaveLocal appends the current session to the locally saved list.
func (s *Store) SaveLocal(ctx context.Context, name string) (LocalSession, error) {
	return s.PutLocal(ctx, uuid.NewString(), name)
}

// PutLocal stores the current session under id, replacing an earlier copy
// with the same id in place or appending a new one.
func (s *Store) PutLocal(ctx context.Context, id, name string) (LocalSession, error) {
	sessions, err := s.LocalSessions(ctx)
	if err != nil {
		return LocalSession{}, err
	}

	data := s.Data()
	data.IsTracking, data.IsPaused = false, false
	saved := LocalSession{
		ID:              id,
		Name:            name,
		SavedAt:         s.now(),
		TotalDistanceKm: data.TotalDistanceKm,
		ElapsedTimeMs:   data.ElapsedTimeMs,
		Counts:          data.Counts(),
		Data:            data,
	}
	if i := indexLocal(sessions, id); i >= 0 {
		sessions[i] = saved
	} else {
		sessions = append(sessions, saved)
	}

	if err := s.writeLocal(ctx, sessions); err != nil {
		return LocalSession{}, err
	}
	return saved, nil
}

// DeleteLocal removes the locally saved session with the given id. An
// unknown id is not an error.
func (s *Store) DeleteLocal(ctx context.Context, id string) error {
	sessions, err := s.LocalSessions(ctx)
	if err != nil {
		return err
	}
	i := indexLocal(sessions, id)
	if i < 0 {
		return nil
	}
	return s.writeLocal(ctx, append(sessions[:i], sessions[i+1:]...))
}

func (s *Store) writeLocal(ctx context.Context, sessions []LocalSession) error {
	if sessions == nil {
		sessions = []LocalSession{}
	}
	payload, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, SessionsKey, string(payload)); err != nil {
		return fmt.Errorf("save local session: %w", err)
	}
	return nil
}

func indexLocal(sessions []LocalSession, id string) int {
	for i, ls := range sessions {
		if ls.ID == id {
			return i
		}
	}
	return -1
}

// LocalSessions returns the locally saved sessions in save order. A corrupt
// list is treated as empty.
func (s *Store) LocalSessions(ctx context.Context) ([]LocalSession, error) {
	raw, err := s.kv.Get(ctx, SessionsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load local sessions: %w", err)
	}
	var sessions []LocalSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		s.logger.Warn("route: local sessions list is corrupt, starting over", "error", err)
		return nil, nil
	}
	return sessions, nil
}
