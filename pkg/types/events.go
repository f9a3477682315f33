// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StreamEventType identifies a frame on the discovery event stream.
type StreamEventType string

const (
	// StreamEventFinal carries a complete result batch. Depending on the
	// merge mode it replaces the channel's papers or appends to them.
	StreamEventFinal StreamEventType = "final"

	// StreamEventDone marks the end of a successful stream. It carries no
	// payload and is the endpoint for elapsed-time measurement.
	StreamEventDone StreamEventType = "done"

	// StreamEventError carries a backend failure message. Decoding stops
	// and the error propagates to the caller.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one decoded frame from the discovery stream.
type StreamEvent struct {
	Type    StreamEventType   `json:"type"`
	Papers  []DiscoveredPaper `json:"papers,omitempty"`
	Message string            `json:"message,omitempty"`
}
