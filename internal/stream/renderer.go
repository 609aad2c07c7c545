package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"backend-accessnature/internal/route"
)

const (
	EventDistance = "distance"
	EventPosition = "position"
	EventBearing  = "bearing"
	EventSegment  = "segment"
)

// Event is the JSON message live viewers receive.
type Event struct {
	Type       string             `json:"type"`
	DistanceKm float64            `json:"distance_km,omitempty"`
	Position   *route.Coordinates `json:"position,omitempty"`
	BearingDeg *float64           `json:"bearing_deg,omitempty"`
	From       *route.Coordinates `json:"from,omitempty"`
	To         *route.Coordinates `json:"to,omitempty"`
}

// Renderer publishes a recording session's display updates to its live
// viewers.
type Renderer struct {
	Hub       *Hub
	SessionID string
	Logger    *slog.Logger
}

func NewRenderer(hub *Hub, sessionID string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{Hub: hub, SessionID: sessionID, Logger: logger}
}

func (r *Renderer) OnDistanceUpdate(km float64) {
	r.publish(Event{Type: EventDistance, DistanceKm: km})
}

func (r *Renderer) OnMarkerPosition(c route.Coordinates) {
	r.publish(Event{Type: EventPosition, Position: &c})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Hub.RecordPosition(ctx, r.SessionID, c.Lat, c.Lng); err != nil {
		r.Logger.Warn("stream: record position failed", "session", r.SessionID, "error", err)
	}
}

func (r *Renderer) OnMarkerBearing(deg float64) {
	r.publish(Event{Type: EventBearing, BearingDeg: &deg})
}

func (r *Renderer) OnRouteSegment(prev, next route.Coordinates) {
	r.publish(Event{Type: EventSegment, From: &prev, To: &next})
}

func (r *Renderer) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.Logger.Error("stream: encode event", "type", ev.Type, "error", err)
		return
	}
	r.Hub.Broadcast(r.SessionID, payload)
}
