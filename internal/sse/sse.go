// Package sse implements the text/event-stream framing used between the orchestrator,
// the upstream agent service and stream consumers.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// MaxFrameSize bounds a single line of the stream. Agents return whole reports in one
// data line, so the default bufio limit is too small.
const MaxFrameSize = 8 << 20

// Event is one parsed SSE frame.
type Event struct {
	ID    string
	Event string
	Data  string
}

// Handler is called for each SSE event.
type Handler func(event Event) error

// Parse reads an SSE stream and calls handler for every complete event.
func Parse(reader io.Reader, handler Handler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)

	var (
		event   Event
		hasData bool
	)

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || hasData {
				if err := handler(event); err != nil {
					return err
				}
			}
			event = Event{}
			hasData = false
			continue
		}

		// Comments (keep-alives) start with ':'
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "id":
			event.ID = value
		}
	}

	// Handle any remaining event
	if event.Event != "" || hasData {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// Writer writes SSE frames and flushes after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher every frame is flushed immediately.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// SetHeaders sets the response headers of an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Write sends one frame. Multi-line data is split across data lines.
func (w *Writer) Write(e Event) error {
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Event)
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// Comment sends a comment line, used as a keep-alive.
func (w *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", text); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// Flush flushes the underlying writer if it supports flushing.
func (w *Writer) Flush() {
	if w.flusher != nil {
		w.flusher.Flush()
	}
}
