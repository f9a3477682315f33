// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream decodes the discovery backend's chunked event stream.
// The wire format is a sequence of "\n\n"-delimited frames, each a single
// "data: <json>" record with a type of final, done, or error.
package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/pdiddy/paperflow/pkg/types"
)

// frameDelimiter separates complete event records on the wire.
const frameDelimiter = "\n\n"

// StreamError is a backend-reported failure carried on an "error" frame.
// It ends decoding; prior events remain valid.
type StreamError struct {
	Message string
}

// Error returns the backend-provided failure message.
func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// Decoder yields typed events from an incrementally available byte source.
// It maintains a rolling text buffer: each read appends and splits on the
// frame delimiter, and the last (possibly incomplete) fragment is retained
// for the next read. Malformed frames are logged and skipped; they never
// abort the remaining stream.
//
// A Decoder is lazy and non-restartable. It is not safe for concurrent use.
type Decoder struct {
	r       io.Reader
	logger  *slog.Logger
	scratch []byte
	pending string
	frames  []string
	err     error
	eof     bool
}

// NewDecoder wraps r. A nil logger discards malformed-frame diagnostics.
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Decoder{
		r:       r,
		logger:  logger,
		scratch: make([]byte, 4096),
	}
}

// Next returns the next decoded event. It returns io.EOF when the stream
// ends without a done or error frame — a normal, successful completion —
// and io.EOF again after a done frame has been delivered. A backend error
// frame is returned as *StreamError. Reader failures are returned as-is;
// the caller is responsible for distinguishing cancellation from real
// transport errors.
func (d *Decoder) Next() (*types.StreamEvent, error) {
	if d.err != nil {
		return nil, d.err
	}

	for {
		for len(d.frames) > 0 {
			frame := d.frames[0]
			d.frames = d.frames[1:]

			event, ok := d.parseFrame(frame)
			if !ok {
				continue
			}
			switch event.Type {
			case types.StreamEventError:
				d.err = &StreamError{Message: event.Message}
				return nil, d.err
			case types.StreamEventDone:
				d.err = io.EOF
				return event, nil
			default:
				return event, nil
			}
		}

		if d.eof {
			d.err = io.EOF
			return nil, d.err
		}
		if err := d.fill(); err != nil {
			d.err = err
			return nil, d.err
		}
	}
}

// fill reads one chunk, appends it to the rolling buffer, and splits off
// any complete frames. At end of stream a non-empty trailing fragment is
// treated as one final frame.
func (d *Decoder) fill() error {
	n, err := d.r.Read(d.scratch)
	if n > 0 {
		d.pending += string(d.scratch[:n])
		parts := strings.Split(d.pending, frameDelimiter)
		d.pending = parts[len(parts)-1]
		d.frames = append(d.frames, parts[:len(parts)-1]...)
	}
	if err == io.EOF {
		d.eof = true
		if strings.TrimSpace(d.pending) != "" {
			d.frames = append(d.frames, d.pending)
			d.pending = ""
		}
		return nil
	}
	return err
}

// parseFrame strips the data: prefix and decodes the JSON payload.
// Returns ok=false for empty, comment, malformed, or unrecognized frames.
func (d *Decoder) parseFrame(frame string) (*types.StreamEvent, bool) {
	frame = strings.TrimSpace(frame)
	if frame == "" || strings.HasPrefix(frame, ":") {
		return nil, false
	}

	if strings.HasPrefix(frame, "data:") {
		frame = strings.TrimSpace(strings.TrimPrefix(frame, "data:"))
	}

	var event types.StreamEvent
	if err := json.Unmarshal([]byte(frame), &event); err != nil {
		d.logger.Warn("skipping malformed stream frame", "error", err)
		return nil, false
	}

	switch event.Type {
	case types.StreamEventFinal, types.StreamEventDone, types.StreamEventError:
		return &event, true
	default:
		d.logger.Warn("skipping unrecognized stream event", "type", string(event.Type))
		return nil, false
	}
}
