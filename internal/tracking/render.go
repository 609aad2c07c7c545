package tracking

import "backend-accessnature/internal/route"

// Renderers fans every hook out to each renderer in order.
type Renderers []Renderer

func (rs Renderers) OnDistanceUpdate(km float64) {
	for _, r := range rs {
		r.OnDistanceUpdate(km)
	}
}

func (rs Renderers) OnMarkerPosition(c route.Coordinates) {
	for _, r := range rs {
		r.OnMarkerPosition(c)
	}
}

func (rs Renderers) OnMarkerBearing(deg float64) {
	for _, r := range rs {
		r.OnMarkerBearing(deg)
	}
}

func (rs Renderers) OnRouteSegment(prev, next route.Coordinates) {
	for _, r := range rs {
		r.OnRouteSegment(prev, next)
	}
}
