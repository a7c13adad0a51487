// Package sse writes and reads the Server-Sent Events streams that carry
// reduction progress from the API to its clients.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event types sent on a reduction stream.
const (
	// TypeProgress is sent after every slice of a streamed reduction.
	TypeProgress = "progress"

	// TypeResult is the last event of a stream that ran to its end.
	TypeResult = "result"

	// TypeError ends a stream that could not run.
	TypeError = "error"
)

// Event is one event, delimited by a blank line on the wire.
type Event struct {
	// Type is the "event:" field. Empty means "message".
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	ID string
}
