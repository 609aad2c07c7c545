package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"backend-accessnature/internal/route"
	"backend-accessnature/internal/shared/geo"
)

var ErrNoFix = errors.New("no position fix recorded yet")

const permissionMessage = "Location access was denied, so recording stopped. Enable location permission for this app and press start to continue."

// Deps are the collaborators of a Controller. Store is required; a nil
// Source means fixes are pushed through PositionUpdate by the host.
// OnStreamEnd, when set, runs after the current subscription's source ran
// dry and every reading it delivered has been processed.
type Deps struct {
	Store       *route.Store
	Source      PositionSource
	Renderer    Renderer
	Prompter    Prompter
	Uploader    Uploader
	Clock       func() time.Time
	Logger      *slog.Logger
	OnStreamEnd func()
}

// Controller drives the recording state machine over a route.Store.
type Controller struct {
	mu    sync.Mutex
	state State
	opts  Options

	store    *route.Store
	source   PositionSource
	renderer Renderer
	prompter Prompter
	uploader Uploader
	now      func() time.Time
	logger   *slog.Logger
	onEnd    func()

	cancelWatch  context.CancelFunc
	watchGen     uint64
	deciding     bool
	lastSnapshot time.Time
	failedFixes  int

	// localCopyID is only touched while a Stop decision is in progress.
	localCopyID string
}

func NewController(deps Deps, opts Options) *Controller {
	c := &Controller{
		state:    StateIdle,
		opts:     opts.withDefaults(),
		store:    deps.Store,
		source:   deps.Source,
		renderer: deps.Renderer,
		prompter: deps.Prompter,
		uploader: deps.Uploader,
		now:      deps.Clock,
		logger:   deps.Logger,
		onEnd:    deps.OnStreamEnd,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Options() Options {
	return c.opts
}

// Session returns a copy of the route recorded so far.
func (c *Controller) Session() route.Session {
	return c.store.Data()
}

// Elapsed is the visible recording time: it runs while recording and is
// frozen otherwise.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// Start begins recording. A store holding entries and elapsed time is
// resumed with its timer continuing where it stopped; anything else starts
// a fresh route.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRecording || c.state == StatePaused {
		return ErrAlreadyTracking
	}
	if c.deciding {
		return ErrBusy
	}

	prev := c.state
	now := c.now()
	elapsed := c.store.ElapsedTime()
	if c.store.Len() > 0 && elapsed > 0 {
		c.store.SetStartTime(now.Add(-millis(elapsed)))
		c.logger.Info("tracking: resuming route", "entries", c.store.Len(), "elapsed_ms", elapsed)
	} else {
		c.store.Clear()
		c.store.SetStartTime(now)
		c.logger.Info("tracking: starting new route")
	}

	c.state = StateRecording
	c.failedFixes = 0
	c.store.SetTrackingState(true, false)
	if err := c.openWatchLocked(ctx); err != nil {
		c.state = prev
		c.store.SetTrackingState(false, false)
		return err
	}
	return nil
}

// Pause toggles between recording and paused.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateRecording:
		c.store.SetElapsedTime(c.elapsedLocked().Milliseconds())
		c.closeWatchLocked()
		c.state = StatePaused
		c.store.SetTrackingState(true, true)
		elapsed := c.store.ElapsedTime()
		c.mu.Unlock()

		c.logger.Info("tracking: paused", "elapsed_ms", elapsed)
		c.snapshotActive(ctx)
		return nil

	case StatePaused:
		elapsed := c.store.ElapsedTime()
		c.store.SetStartTime(c.now().Add(-millis(elapsed)))
		c.state = StateRecording
		c.store.SetTrackingState(true, false)
		if err := c.openWatchLocked(ctx); err != nil {
			c.state = StatePaused
			c.store.SetTrackingState(true, true)
			c.mu.Unlock()
			return err
		}
		c.mu.Unlock()

		c.logger.Info("tracking: resumed", "elapsed_ms", elapsed)
		return nil

	default:
		c.mu.Unlock()
		return ErrNotTracking
	}
}

// Stop ends recording and asks the user whether to save or discard the
// route. Calling Stop again after a cancelled decision re-opens the prompt.
func (c *Controller) Stop(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return "", ErrNotTracking
	}
	if c.deciding {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.haltLocked()
	c.deciding = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.deciding = false
		c.mu.Unlock()
	}()

	session := c.store.Data()
	c.logger.Info("tracking: stopped", "entries", len(session.Entries), "distance_km", session.TotalDistanceKm, "elapsed_ms", session.ElapsedTimeMs)
	if session.Empty() {
		c.finish(ctx)
		return OutcomeEmpty, nil
	}

	c.store.WriteRecoverySnapshot(ctx)
	return c.resolve(ctx, session)
}

// PositionUpdate processes one fix. It reports whether the fix was recorded.
func (c *Controller) PositionUpdate(ctx context.Context, fix Fix) bool {
	return c.processFix(ctx, 0, fix)
}

// PositionError handles an error reported by the position stream. Permission
// errors stop the recording; everything else is logged and skipped.
func (c *Controller) PositionError(ctx context.Context, err error) {
	c.processError(ctx, 0, err)
}

// AddPhoto attaches image content at the last recorded position.
func (c *Controller) AddPhoto(ctx context.Context, content string) error {
	return c.annotate(ctx, func(pos *route.Coordinates, at time.Time) (route.Entry, error) {
		if pos == nil {
			return route.Entry{}, ErrNoFix
		}
		return route.NewPhoto(*pos, at, content), nil
	})
}

// AddNote attaches a text note at the last recorded position, or without a
// position when no fix has been recorded yet.
func (c *Controller) AddNote(ctx context.Context, text string) error {
	return c.annotate(ctx, func(pos *route.Coordinates, at time.Time) (route.Entry, error) {
		return route.NewNote(pos, at, text), nil
	})
}

func (c *Controller) annotate(ctx context.Context, build func(*route.Coordinates, time.Time) (route.Entry, error)) error {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return ErrNotTracking
	}
	var pos *route.Coordinates
	if last, ok := c.store.LastCoordinates(); ok {
		pos = &last
	}
	entry, err := build(pos, c.now())
	if err == nil {
		err = c.store.AddEntry(entry)
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.snapshotActive(ctx)
	return nil
}

type fixUpdate struct {
	totalKm float64
	pos     route.Coordinates
	prev    route.Coordinates
	hasPrev bool
	bearing float64
}

func (c *Controller) processFix(ctx context.Context, gen uint64, fix Fix) bool {
	c.mu.Lock()
	if gen != 0 && gen != c.watchGen {
		c.mu.Unlock()
		return false
	}
	upd, ok := c.acceptLocked(fix)
	snapshot := ok && c.snapshotDueLocked()
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.publish(upd)
	if snapshot {
		c.snapshotActive(ctx)
	}
	return true
}

func (c *Controller) acceptLocked(fix Fix) (fixUpdate, bool) {
	if c.state != StateRecording {
		c.logger.Debug("tracking: fix ignored, not recording", "state", c.state)
		return fixUpdate{}, false
	}
	if fix.AccuracyM > c.opts.AccuracyThresholdM {
		c.logger.Debug("tracking: fix dropped for poor accuracy", "accuracy_m", fix.AccuracyM)
		return fixUpdate{}, false
	}

	upd := fixUpdate{pos: route.Coordinates{Lat: fix.Lat, Lng: fix.Lng}}
	total := c.store.TotalDistance()
	if prev, ok := c.store.LastCoordinates(); ok {
		km := geo.HaversineKm(prev.Lat, prev.Lng, fix.Lat, fix.Lng)
		if km*1000 < c.opts.JitterThresholdM {
			c.logger.Debug("tracking: micro-movement suppressed", "distance_m", km*1000)
			return fixUpdate{}, false
		}
		upd.prev, upd.hasPrev = prev, true
		upd.bearing = geo.BearingDeg(prev.Lat, prev.Lng, fix.Lat, fix.Lng)
		total += km
	}

	at := fix.Timestamp
	if at.IsZero() {
		at = c.now()
	}
	if err := c.store.AddEntry(route.NewLocation(upd.pos, at, fix.AccuracyM)); err != nil {
		c.logger.Error("tracking: append fix", "error", err)
		return fixUpdate{}, false
	}
	c.store.UpdateDistance(total)
	c.store.SetElapsedTime(c.elapsedLocked().Milliseconds())
	c.failedFixes = 0

	upd.totalKm = total
	return upd, true
}

func (c *Controller) processError(ctx context.Context, gen uint64, err error) {
	c.mu.Lock()
	if gen != 0 && gen != c.watchGen {
		c.mu.Unlock()
		return
	}
	if !IsFatal(err) {
		c.failedFixes++
		n := c.failedFixes
		c.mu.Unlock()
		c.logger.Warn("tracking: position error, skipping", "error", err, "consecutive", n)
		return
	}

	ctx = context.WithoutCancel(ctx)
	if c.state == StateRecording || c.state == StatePaused {
		c.haltLocked()
		c.store.WriteRecoverySnapshot(ctx)
	}
	c.mu.Unlock()

	c.logger.Error("tracking: location permission denied, recording stopped", "error", err)
	c.notify(ctx, permissionMessage)
}

// snapshotActive writes the recovery snapshot only while a session is being
// recorded. Hooks run outside the lock, so a write landing after Stop has
// cleared the session must not recreate the snapshot.
func (c *Controller) snapshotActive(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording || c.state == StatePaused {
		c.store.WriteRecoverySnapshot(ctx)
	}
}

func (c *Controller) snapshotDueLocked() bool {
	now := c.now()
	if c.opts.SnapshotPolicy == SnapshotInterval && !c.lastSnapshot.IsZero() && now.Sub(c.lastSnapshot) < c.opts.SnapshotInterval {
		return false
	}
	c.lastSnapshot = now
	return true
}

// haltLocked freezes the timer, closes the stream and enters Stopped.
func (c *Controller) haltLocked() {
	if c.state == StateRecording {
		c.store.SetElapsedTime(c.elapsedLocked().Milliseconds())
	}
	c.closeWatchLocked()
	c.state = StateStopped
	c.store.SetTrackingState(false, false)
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.state != StateRecording {
		return millis(c.store.ElapsedTime())
	}
	d := c.now().Sub(c.store.StartTime())
	if d < 0 {
		return 0
	}
	return d
}

func (c *Controller) openWatchLocked(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	readings, err := c.source.Watch(watchCtx, c.opts.WatchOptions())
	if err != nil {
		cancel()
		return fmt.Errorf("open position stream: %w", err)
	}
	c.watchGen++
	c.cancelWatch = cancel
	go c.pump(watchCtx, c.watchGen, readings)
	return nil
}

func (c *Controller) closeWatchLocked() {
	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
	c.watchGen++
}

func (c *Controller) pump(ctx context.Context, gen uint64, readings <-chan Reading) {
	for r := range readings {
		if r.Err != nil {
			c.processError(ctx, gen, r.Err)
			continue
		}
		c.processFix(ctx, gen, r.Fix)
	}
	if ctx.Err() == nil {
		c.streamEnded(gen)
	}
}

// streamEnded reports a subscription that closed without being cancelled.
func (c *Controller) streamEnded(gen uint64) {
	c.mu.Lock()
	current := gen == c.watchGen
	c.mu.Unlock()
	if !current {
		return
	}
	c.logger.Info("tracking: position stream ended")
	if c.onEnd != nil {
		c.onEnd()
	}
}

func (c *Controller) publish(u fixUpdate) {
	c.render(func(r Renderer) { r.OnDistanceUpdate(u.totalKm) })
	c.render(func(r Renderer) { r.OnMarkerPosition(u.pos) })
	if u.hasPrev {
		c.render(func(r Renderer) { r.OnMarkerBearing(u.bearing) })
		c.render(func(r Renderer) { r.OnRouteSegment(u.prev, u.pos) })
	}
}

func (c *Controller) render(call func(Renderer)) {
	if c.renderer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("tracking: renderer hook panicked", "panic", r)
		}
	}()
	call(c.renderer)
}

func (c *Controller) notify(ctx context.Context, message string) {
	if c.prompter != nil {
		c.prompter.Notify(ctx, message)
	}
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
