package position

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"backend-accessnature/internal/tracking"
)

// line is one record of a JSON-lines position feed, either a fix or an
// error given by name ("timeout") or platform code (3).
type line struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp string   `json:"timestamp"`
	Error     string   `json:"error"`
	Code      int      `json:"code"`
}

// JSONLines reads fixes from a newline-delimited JSON stream such as a
// serial GPS bridge or a recorded log.
type JSONLines struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	pending *tracking.Reading
}

func NewJSONLines(r io.Reader) *JSONLines {
	return &JSONLines{scanner: bufio.NewScanner(r)}
}

func (j *JSONLines) Watch(ctx context.Context, _ tracking.WatchOptions) (<-chan tracking.Reading, error) {
	out := make(chan tracking.Reading)
	go func() {
		defer close(out)
		j.mu.Lock()
		defer j.mu.Unlock()
		for {
			reading, ok := j.next()
			if !ok {
				return
			}
			// a line read after cancellation is held for the next subscription
			if ctx.Err() != nil {
				j.pending = &reading
				return
			}
			select {
			case <-ctx.Done():
				j.pending = &reading
				return
			case out <- reading:
			}
		}
	}()
	return out, nil
}

func (j *JSONLines) next() (tracking.Reading, bool) {
	if j.pending != nil {
		r := *j.pending
		j.pending = nil
		return r, true
	}
	for j.scanner.Scan() {
		text := strings.TrimSpace(j.scanner.Text())
		if text != "" {
			return parseLine(text), true
		}
	}
	return tracking.Reading{}, false
}

func parseLine(text string) tracking.Reading {
	var l line
	if err := json.Unmarshal([]byte(text), &l); err != nil {
		return tracking.Reading{Err: tracking.ParsePositionError("malformed record")}
	}
	switch {
	case l.Error != "":
		return tracking.Reading{Err: tracking.ParsePositionError(l.Error)}
	case l.Code != 0:
		return tracking.Reading{Err: tracking.FromCode(l.Code)}
	case l.Lat == nil || l.Lng == nil:
		return tracking.Reading{Err: tracking.ParsePositionError("missing coordinates")}
	}
	fix := tracking.Fix{Lat: *l.Lat, Lng: *l.Lng, AccuracyM: l.Accuracy}
	if l.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, l.Timestamp); err == nil {
			fix.Timestamp = ts
		}
	}
	return tracking.Reading{Fix: fix}
}
