// Package sse reads and writes server-sent event streams.
package sse

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	gosse "github.com/tmaxmax/go-sse"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

const maxEventSize = 8 << 20

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Event is one server-sent event. Type is empty for the default "message" event.
// Retry is only written, never reported by Read.
type Event struct {
	ID    string
	Type  string
	Data  string
	Retry time.Duration
}

// Read yields the events dispatched by the stream in r. Blocks without data are not
// dispatched and reset the event type. The sequence ends when r is exhausted.
func Read(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		cfg := &gosse.ReadConfig{MaxEventSize: maxEventSize}
		for e, err := range gosse.Read(r, cfg) {
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(Event{ID: e.LastEventID, Type: e.Type, Data: e.Data}, nil) {
				return
			}
		}
	}
}

// Stream prepares w for an event stream and returns its flusher.
func Stream(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, nil
}

// WriteEvent writes one event frame. Multi-line data is split over several data lines.
func WriteEvent(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	if ev.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", ev.Retry.Milliseconds())
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteRetry writes a retry-only frame telling clients how long to wait before
// reconnecting.
func WriteRetry(w io.Writer, d time.Duration) error {
	_, err := fmt.Fprintf(w, "retry: %d\n\n", d.Milliseconds())
	return err
}
