package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend-accessnature/internal/tracking"

	"github.com/tkrajina/gpxgo/gpx"
)

// hdopMeters converts horizontal dilution of precision into an accuracy
// estimate for receivers that do not report one directly.
const hdopMeters = 5.0

// GPXReplay replays the track points of a GPX document as a position stream.
// Speed scales the recorded timing; zero or less replays without delay.
type GPXReplay struct {
	mu              sync.Mutex
	fixes           []tracking.Fix
	Speed           float64
	DefaultAccuracy float64
}

func NewGPXReplay(data []byte, speed float64) (*GPXReplay, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	r := &GPXReplay{Speed: speed, DefaultAccuracy: 5}
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				fix := tracking.Fix{Lat: p.Latitude, Lng: p.Longitude, Timestamp: p.Timestamp}
				if p.HorizontalDilution.NotNull() {
					fix.AccuracyM = p.HorizontalDilution.Value() * hdopMeters
				}
				r.fixes = append(r.fixes, fix)
			}
		}
	}
	if len(r.fixes) == 0 {
		return nil, fmt.Errorf("parse gpx: no track points")
	}
	return r, nil
}

// Remaining reports how many fixes have not been emitted yet.
func (r *GPXReplay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixes)
}

// Watch emits the remaining fixes in order. Replay continues where a
// cancelled subscription stopped, so pausing does not replay points twice.
func (r *GPXReplay) Watch(ctx context.Context, _ tracking.WatchOptions) (<-chan tracking.Reading, error) {
	out := make(chan tracking.Reading)
	go func() {
		defer close(out)
		r.mu.Lock()
		defer r.mu.Unlock()
		var prev time.Time
		for len(r.fixes) > 0 {
			fix := r.fixes[0]
			if wait := r.delay(prev, fix.Timestamp); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			if fix.AccuracyM == 0 {
				fix.AccuracyM = r.DefaultAccuracy
			}
			select {
			case <-ctx.Done():
				return
			case out <- tracking.Reading{Fix: fix}:
				r.fixes = r.fixes[1:]
				prev = fix.Timestamp
			}
		}
	}()
	return out, nil
}

func (r *GPXReplay) delay(prev, next time.Time) time.Duration {
	if r.Speed <= 0 || prev.IsZero() || next.IsZero() || !next.After(prev) {
		return 0
	}
	return time.Duration(float64(next.Sub(prev)) / r.Speed)
}
