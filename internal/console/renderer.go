package console

import (
	"fmt"
	"io"
	"sync"

	"backend-accessnature/internal/route"
)

// Renderer prints one status line per accepted fix. The heading shown is
// the last one reported before the fix.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	km       float64
	bearing  float64
	segments int
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) OnDistanceUpdate(km float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.km = km
}

func (r *Renderer) OnMarkerPosition(c route.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%7.3f km  %5.1f°  (%.5f, %.5f)  %d segments\n",
		r.km, r.bearing, c.Lat, c.Lng, r.segments)
}

func (r *Renderer) OnMarkerBearing(deg float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bearing = deg
}

func (r *Renderer) OnRouteSegment(_, _ route.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments++
}
