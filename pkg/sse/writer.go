package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Write writes ev to w. Data containing newlines is split into several
// "data:" lines, which a reader joins back.
func Write(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Type)
	}
	for line := range strings.SplitSeq(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes v as the data of an event of type typ.
func WriteJSON(w io.Writer, typ, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", typ, err)
	}
	return Write(w, Event{Type: typ, ID: id, Data: string(data)})
}

// Flusher is implemented by buffered writers such as *bufio.Writer.
type Flusher interface {
	Flush() error
}

// Send writes v like WriteJSON and flushes w when it buffers.
func Send(w io.Writer, typ, id string, v any) error {
	if err := WriteJSON(w, typ, id, v); err != nil {
		return err
	}
	if f, ok := w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
