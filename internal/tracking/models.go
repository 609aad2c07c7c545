package tracking

import (
	"context"
	"time"

	"backend-accessnature/internal/route"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// Outcome reports how a Stop was resolved.
type Outcome string

const (
	OutcomeEmpty      Outcome = "empty"
	OutcomeSaved      Outcome = "saved"
	OutcomeDiscarded  Outcome = "discarded"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeSaveFailed Outcome = "save_failed"
)

type SnapshotPolicy string

const (
	SnapshotEveryFix SnapshotPolicy = "every-fix"
	SnapshotInterval SnapshotPolicy = "interval"
)

// Fix is a single reported GPS position.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	AccuracyM float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Reading is one item of a position stream: either a fix or an error.
type Reading struct {
	Fix Fix
	Err error
}

type WatchOptions struct {
	HighAccuracy bool
	MaxCachedAge time.Duration
	Timeout      time.Duration
}

// PositionSource opens a continuous position subscription. The returned
// channel must be closed once ctx is cancelled or the source runs dry.
type PositionSource interface {
	Watch(ctx context.Context, opts WatchOptions) (<-chan Reading, error)
}

// Renderer receives display updates. Calls are fire-and-forget.
type Renderer interface {
	OnDistanceUpdate(km float64)
	OnMarkerPosition(c route.Coordinates)
	OnMarkerBearing(deg float64)
	OnRouteSegment(prev, next route.Coordinates)
}

// Prompter asks the user for decisions.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
	// PromptName returns ok=false when the user dismisses the prompt.
	PromptName(ctx context.Context, defaultName string) (name string, ok bool, err error)
	Notify(ctx context.Context, message string)
}

// Uploader persists a finished session upstream and returns its id.
type Uploader interface {
	SaveRoute(ctx context.Context, name string, session route.Session) (string, error)
}

type Options struct {
	AccuracyThresholdM float64
	JitterThresholdM   float64
	SnapshotPolicy     SnapshotPolicy
	SnapshotInterval   time.Duration
	FixTimeout         time.Duration
	HighAccuracy       bool
	MaxCachedAge       time.Duration
}

func DefaultOptions() Options {
	return Options{
		AccuracyThresholdM: 100,
		JitterThresholdM:   3,
		SnapshotPolicy:     SnapshotEveryFix,
		SnapshotInterval:   30 * time.Second,
		FixTimeout:         15 * time.Second,
		HighAccuracy:       true,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.AccuracyThresholdM <= 0 {
		o.AccuracyThresholdM = def.AccuracyThresholdM
	}
	if o.JitterThresholdM <= 0 {
		o.JitterThresholdM = def.JitterThresholdM
	}
	if o.SnapshotPolicy == "" {
		o.SnapshotPolicy = def.SnapshotPolicy
	}
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = def.SnapshotInterval
	}
	if o.FixTimeout <= 0 {
		o.FixTimeout = def.FixTimeout
	}
	return o
}

// WatchOptions derives the subscription options for a PositionSource.
func (o Options) WatchOptions() WatchOptions {
	return WatchOptions{HighAccuracy: o.HighAccuracy, MaxCachedAge: o.MaxCachedAge, Timeout: o.FixTimeout}
}

// RecoverySummary describes an unsaved route found at startup.
type RecoverySummary struct {
	CaptureTimestamp time.Time `json:"capture_timestamp"`
	TotalDistanceKm  float64   `json:"total_distance_km"`
	ElapsedTimeMs    int64     `json:"elapsed_time_ms"`
	PointCount       int       `json:"point_count"`
	PhotoCount       int       `json:"photo_count"`
	NoteCount        int       `json:"note_count"`
	AgeHours         float64   `json:"age_hours"`
	Age              string    `json:"age"`
	Restored         bool      `json:"restored"`
	Discarded        bool      `json:"discarded"`
}
