package tracking

import (
	"context"
	"fmt"
	"time"

	"backend-accessnature/internal/route"
)

const recoveryDiscardMessage = "Permanently delete the unsaved route? This cannot be undone."

// CheckForUnsavedRoute offers a recovery snapshot left by an earlier run.
// Restoring repopulates the store without resuming GPS; pressing start
// afterwards continues the route. It returns nil when nothing was found.
func (c *Controller) CheckForUnsavedRoute(ctx context.Context) (*RecoverySummary, error) {
	if c.State() != StateIdle {
		return nil, ErrAlreadyTracking
	}

	snap, ok := c.store.ReadRecoverySnapshot(ctx)
	if !ok || snap.Session.Empty() {
		c.logger.Info("tracking: no unsaved route found")
		return nil, nil
	}

	summary := summarize(snap, c.now())
	c.logger.Info("tracking: unsaved route found", "entries", len(snap.Session.Entries), "age", summary.Age)
	if c.prompter == nil {
		return &summary, nil
	}

	restore, err := c.prompter.Confirm(ctx, summary.Message())
	if err != nil {
		return &summary, fmt.Errorf("recovery prompt: %w", err)
	}
	if restore {
		if !c.restore(snap.Session) {
			return &summary, ErrAlreadyTracking
		}
		summary.Restored = true
		return &summary, nil
	}

	discard, err := c.prompter.Confirm(ctx, recoveryDiscardMessage)
	if err != nil {
		return &summary, fmt.Errorf("recovery discard prompt: %w", err)
	}
	if discard {
		c.store.DeleteRecoverySnapshot(ctx)
		summary.Discarded = true
		c.logger.Info("tracking: unsaved route discarded")
	}
	return &summary, nil
}

func (c *Controller) restore(session route.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return false
	}
	session.IsTracking, session.IsPaused = false, false
	session.StartTimestamp = c.now().Add(-millis(session.ElapsedTimeMs))
	c.store.Restore(session)
	return true
}

func summarize(snap route.Snapshot, now time.Time) RecoverySummary {
	age := now.Sub(snap.CaptureTimestamp)
	if age < 0 {
		age = 0
	}
	counts := snap.Session.Counts()
	return RecoverySummary{
		CaptureTimestamp: snap.CaptureTimestamp,
		TotalDistanceKm:  snap.Session.TotalDistanceKm,
		ElapsedTimeMs:    snap.Session.ElapsedTimeMs,
		PointCount:       counts.Locations,
		PhotoCount:       counts.Photos,
		NoteCount:        counts.Notes,
		AgeHours:         age.Hours(),
		Age:              FormatAge(age),
	}
}

// FormatAge renders a duration as "Xh Ym ago".
func FormatAge(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm ago", h, m)
}

func (s RecoverySummary) Message() string {
	return fmt.Sprintf("Unsaved route from %s (%s): %.2f km, %d points, %d photos, %d notes. Restore it?",
		s.CaptureTimestamp.Local().Format("2006-01-02 15:04"), s.Age,
		s.TotalDistanceKm, s.PointCount, s.PhotoCount, s.NoteCount)
}
