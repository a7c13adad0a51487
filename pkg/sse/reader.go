package sse

import (
	"bufio"
	"io"
	"strings"
)

// Reader parses events from a stream.
type Reader struct {
	scanner *bufio.Scanner

	ev      Event
	started bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{scanner: scanner}
}

// Next blocks until a complete event is read. It returns nil, nil once src
// is exhausted; a final event without its blank line is still returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case line == "":
			if r.started {
				return r.take(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment or keep-alive
		default:
			r.field(line)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.started {
		return r.take(), nil
	}
	return nil, nil
}

// All reads events until src is exhausted.
func (r *Reader) All() ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if err != nil || ev == nil {
			return events, err
		}
		events = append(events, *ev)
	}
}

// field adds one "name: value" line to the pending event. A single space
// after the colon is not part of the value.
func (r *Reader) field(line string) {
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "data":
		if r.started && r.ev.Data != "" {
			r.ev.Data += "\n"
		}
		r.ev.Data += value
	case "event":
		r.ev.Type = value
	case "id":
		r.ev.ID = value
	default:
		// retry and unknown fields
		return
	}
	r.started = true
}

func (r *Reader) take() *Event {
	ev := r.ev
	r.ev, r.started = Event{}, false
	return &ev
}
