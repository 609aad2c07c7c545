package trail

import (
	"backend-accessnature/internal/route"

	"github.com/tkrajina/gpxgo/gpx"
)

// ExportGPX renders the route as a GPX 1.1 document: location fixes become
// one track segment, photos and notes with a position become waypoints.
func ExportGPX(r Route) ([]byte, error) {
	doc := gpx.GPX{
		Version: "1.1",
		Creator: "accessnature",
		Name:    r.Name,
	}

	var segment gpx.GPXTrackSegment
	for _, e := range r.Entries {
		if e.Coords == nil {
			continue
		}
		point := gpx.GPXPoint{
			Point:     gpx.Point{Latitude: e.Coords.Lat, Longitude: e.Coords.Lng},
			Timestamp: e.Timestamp,
		}
		switch e.Type {
		case route.EntryLocation:
			segment.Points = append(segment.Points, point)
		case route.EntryPhoto:
			point.Name = "photo"
			point.Type = string(e.Type)
			point.Description = e.Content
			doc.Waypoints = append(doc.Waypoints, point)
		case route.EntryNote:
			point.Name = "note"
			point.Type = string(e.Type)
			point.Description = e.Content
			doc.Waypoints = append(doc.Waypoints, point)
		}
	}
	doc.Tracks = []gpx.GPXTrack{{Name: r.Name, Segments: []gpx.GPXTrackSegment{segment}}}

	return doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}
