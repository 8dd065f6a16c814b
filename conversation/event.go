package conversation

import (
	"context"
	"strings"
)

// Event is one element of a chat stream. The concrete types are ChunkEvent,
// DoneEvent and ErrorEvent; consumers switch on them exhaustively. Every
// stream ends with exactly one DoneEvent or ErrorEvent.
type Event interface {
	// Type returns the wire tag of the event: "chunk", "done" or "error".
	Type() string

	isEvent()
}

// ChunkEvent carries one increment of the assistant reply.
type ChunkEvent struct {
	Content string `json:"content"`
}

// DoneEvent ends a successful stream.
type DoneEvent struct {
	SessionID     string `json:"session_id"`
	EmailProvided bool   `json:"email_provided"`
	TurnCount     int    `json:"turn_count"`
}

// ErrorEvent ends a failed stream. Chunks sent before it remain valid.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ChunkEvent) Type() string { return "chunk" }
func (DoneEvent) Type() string  { return "done" }
func (ErrorEvent) Type() string { return "error" }

func (ChunkEvent) isEvent() {}
func (DoneEvent) isEvent()  {}
func (ErrorEvent) isEvent() {}

// Sink receives events in order. Returning an error stops generation; the
// stream is then closed with an ErrorEvent that the sink may ignore.
type Sink func(ctx context.Context, ev Event) error

// Collector is a Sink that keeps every event, for non-streaming callers and tests.
type Collector struct {
	Events []Event
}

// Sink returns the collecting sink.
func (c *Collector) Sink() Sink {
	return func(ctx context.Context, ev Event) error {
		c.Events = append(c.Events, ev)
		return nil
	}
}

// Text concatenates the content of all collected chunks.
func (c *Collector) Text() string {
	var sb strings.Builder
	for _, ev := range c.Events {
		if chunk, ok := ev.(ChunkEvent); ok {
			sb.WriteString(chunk.Content)
		}
	}
	return sb.String()
}

// Terminal returns the final event, or nil if the stream has not ended.
func (c *Collector) Terminal() Event {
	if len(c.Events) == 0 {
		return nil
	}
	switch ev := c.Events[len(c.Events)-1].(type) {
	case DoneEvent, ErrorEvent:
		return ev
	}
	return nil
}
