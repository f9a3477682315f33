// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/paperflow/pkg/types"
)

// chunkedReader delivers its payload in fixed-size chunks so frames land
// split across Read calls, the way a network body arrives.
type chunkedReader struct {
	data  string
	chunk int
	pos   int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.chunk
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func drain(t *testing.T, d *Decoder) ([]*types.StreamEvent, error) {
	t.Helper()
	var events []*types.StreamEvent
	for {
		ev, err := d.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestDecoderFinalThenDone(t *testing.T) {
	body := `data: {"type":"final","papers":[{"id":"p1","title":"A","source":"arxiv"}]}` + "\n\n" +
		`data: {"type":"done"}` + "\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(body), nil))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Type != types.StreamEventFinal || len(events[0].Papers) != 1 {
		t.Errorf("first event = %+v, want final with 1 paper", events[0])
	}
	if events[1].Type != types.StreamEventDone {
		t.Errorf("second event type = %q, want done", events[1].Type)
	}
}

func TestDecoderReassemblesPartialFrames(t *testing.T) {
	body := `data: {"type":"final","papers":[{"id":"p1","title":"Long Paper Title","source":"arxiv"}]}` + "\n\n" +
		`data: {"type":"final","papers":[{"id":"p2","title":"Another","source":"openalex"}]}` + "\n\n" +
		`data: {"type":"done"}` + "\n\n"

	// Chunk sizes chosen to split frames mid-record and mid-delimiter.
	for _, chunk := range []int{1, 3, 7, 16, 64} {
		d := NewDecoder(&chunkedReader{data: body, chunk: chunk}, nil)
		events, err := drain(t, d)
		if err != io.EOF {
			t.Fatalf("chunk %d: err = %v, want io.EOF", chunk, err)
		}
		if len(events) != 3 {
			t.Fatalf("chunk %d: len(events) = %d, want 3", chunk, len(events))
		}
		if events[0].Papers[0].ID != "p1" || events[1].Papers[0].ID != "p2" {
			t.Errorf("chunk %d: events out of order: %+v", chunk, events)
		}
	}
}

func TestDecoderSkipsMalformedFrames(t *testing.T) {
	body := `data: {not json` + "\n\n" +
		`data: {"type":"mystery"}` + "\n\n" +
		`: comment frame` + "\n\n" +
		`data: {"type":"final","papers":[{"id":"p1","title":"A","source":"arxiv"}]}` + "\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(body), nil))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1 (malformed frames skipped)", len(events))
	}
	if events[0].Type != types.StreamEventFinal {
		t.Errorf("event type = %q, want final", events[0].Type)
	}
}

func TestDecoderErrorFrameStopsDecoding(t *testing.T) {
	body := `data: {"type":"final","papers":[]}` + "\n\n" +
		`data: {"type":"error","message":"backend exploded"}` + "\n\n" +
		`data: {"type":"final","papers":[{"id":"late","title":"L","source":"arxiv"}]}` + "\n\n"

	d := NewDecoder(strings.NewReader(body), nil)
	events, err := drain(t, d)

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("err = %v, want *StreamError", err)
	}
	if streamErr.Message != "backend exploded" {
		t.Errorf("message = %q, want %q", streamErr.Message, "backend exploded")
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1 (decoding stops at error)", len(events))
	}

	// The error is sticky.
	if _, err := d.Next(); !errors.As(err, &streamErr) {
		t.Errorf("second Next err = %v, want the same *StreamError", err)
	}
}

func TestDecoderEOFWithoutDoneIsSuccess(t *testing.T) {
	body := `data: {"type":"final","papers":[{"id":"p1","title":"A","source":"arxiv"}]}` + "\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(body), nil))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
}

func TestDecoderTrailingFrameWithoutDelimiter(t *testing.T) {
	// Some proxies drop the final delimiter; the leftover fragment still parses.
	body := `data: {"type":"final","papers":[{"id":"p1","title":"A","source":"arxiv"}]}`

	events, err := drain(t, NewDecoder(strings.NewReader(body), nil))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
}

func TestDecoderDataPrefixWithoutSpace(t *testing.T) {
	body := `data:{"type":"done"}` + "\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(body), nil))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if len(events) != 1 || events[0].Type != types.StreamEventDone {
		t.Errorf("events = %+v, want single done", events)
	}
}

// failingReader returns data then a transport error.
type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestDecoderPropagatesReaderError(t *testing.T) {
	body := `data: {"type":"final","papers":[]}` + "\n\n"
	events, err := drain(t, NewDecoder(&failingReader{data: body}, nil))
	if err == nil || err == io.EOF {
		t.Fatalf("err = %v, want transport error", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1 before the failure", len(events))
	}
}
