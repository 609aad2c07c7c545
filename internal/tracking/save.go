package tracking

import (
	"context"
	"fmt"
	"time"

	"backend-accessnature/internal/route"
)

const discardMessage = "Discard this route? All recorded points, photos and notes will be deleted. This cannot be undone."

// resolve runs the save/discard prompt for a stopped, non-empty session.
func (c *Controller) resolve(ctx context.Context, session route.Session) (Outcome, error) {
	if c.prompter == nil {
		return OutcomeCancelled, nil
	}

	save, err := c.prompter.Confirm(ctx, saveMessage(session))
	if err != nil {
		return OutcomeCancelled, fmt.Errorf("save prompt: %w", err)
	}
	if save {
		name, ok, err := c.prompter.PromptName(ctx, c.defaultName())
		if err != nil {
			return OutcomeCancelled, fmt.Errorf("name prompt: %w", err)
		}
		if !ok {
			return OutcomeCancelled, nil
		}
		if name == "" {
			name = c.defaultName()
		}
		return c.save(ctx, name, session)
	}

	discard, err := c.prompter.Confirm(ctx, discardMessage)
	if err != nil {
		return OutcomeCancelled, fmt.Errorf("discard prompt: %w", err)
	}
	if !discard {
		c.logger.Info("tracking: save decision postponed", "entries", len(session.Entries))
		return OutcomeCancelled, nil
	}
	c.finish(ctx)
	c.logger.Info("tracking: route discarded", "entries", len(session.Entries))
	return OutcomeDiscarded, nil
}

func (c *Controller) save(ctx context.Context, name string, session route.Session) (Outcome, error) {
	if c.uploader == nil {
		saved, err := c.store.SaveLocal(ctx, name)
		if err != nil {
			c.logger.Error("tracking: local save failed, keeping session", "error", err)
			c.notify(ctx, "The route could not be saved on this device. It is kept so you can try again.")
			return OutcomeSaveFailed, err
		}
		c.logger.Info("tracking: route saved locally", "id", saved.ID, "name", name)
		c.finish(ctx)
		return OutcomeSaved, nil
	}

	id, err := c.uploader.SaveRoute(ctx, name, session)
	if err != nil {
		c.logger.Warn("tracking: upload failed, keeping session", "error", err)
		c.keepLocalCopy(ctx, name)
		c.notify(ctx, "Saving to the cloud failed. The route is kept on this device; try again later.")
		return OutcomeSaveFailed, fmt.Errorf("upload route: %w", err)
	}

	c.logger.Info("tracking: route uploaded", "id", id, "name", name, "distance_km", session.TotalDistanceKm)
	c.finish(ctx)
	return OutcomeSaved, nil
}

// keepLocalCopy stores the session on the device after a failed upload.
// Retries overwrite the same copy instead of adding another one.
func (c *Controller) keepLocalCopy(ctx context.Context, name string) {
	if c.localCopyID == "" {
		saved, err := c.store.SaveLocal(ctx, name)
		if err != nil {
			c.logger.Error("tracking: local fallback save failed", "error", err)
			return
		}
		c.localCopyID = saved.ID
		return
	}
	if _, err := c.store.PutLocal(ctx, c.localCopyID, name); err != nil {
		c.logger.Error("tracking: local fallback save failed", "error", err, "id", c.localCopyID)
	}
}

// finish clears the session and its snapshot and readies the next one. A
// fallback copy left by an earlier failed upload goes with it.
func (c *Controller) finish(ctx context.Context) {
	c.store.Clear()
	c.store.DeleteRecoverySnapshot(ctx)
	if c.localCopyID != "" {
		if err := c.store.DeleteLocal(ctx, c.localCopyID); err != nil {
			c.logger.Warn("tracking: drop local fallback copy", "error", err, "id", c.localCopyID)
		}
		c.localCopyID = ""
	}

	c.mu.Lock()
	c.state = StateIdle
	c.lastSnapshot = time.Time{}
	c.mu.Unlock()
}

func (c *Controller) defaultName() string {
	return "Route " + c.now().Format("2006-01-02 15:04")
}

func saveMessage(s route.Session) string {
	counts := s.Counts()
	return fmt.Sprintf("Save this route? %.2f km, %d points, %d photos, %d notes.",
		s.TotalDistanceKm, counts.Locations, counts.Photos, counts.Notes)
}
