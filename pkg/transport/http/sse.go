package http

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// streamWriter sends pre-framed SSE payloads to the client, flushing
// after every frame so deltas reach the client as they arrive.
type streamWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu      sync.Mutex
	started bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	return &streamWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteFrame writes one complete SSE frame. Frames arrive already
// terminated ("data: {...}\n\n") from the adapter's stream encoder.
func (s *streamWriter) WriteFrame(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureHeaders()
	if _, err := io.WriteString(s.w, frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing frame: %w", err)
	}
	return nil
}

// WriteDone emits the terminal sentinel frame.
func (s *streamWriter) WriteDone() error {
	return s.WriteFrame("data: [DONE]\n\n")
}

// Started reports whether any frame has been written. Once streaming
// has begun, errors can no longer change the HTTP status.
func (s *streamWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *streamWriter) ensureHeaders() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
}

// maxFrameSize bounds a single upstream SSE event. Inline images can
// make individual frames large.
const maxFrameSize = 10 << 20

// readFrames consumes an upstream SSE body and invokes fn with each
// event's data payload, "data:" prefix stripped and multi-line data
// joined. The [DONE] sentinel is not passed to fn.
func readFrames(r io.Reader, fn func(payload string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	var data []string
	flush := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		if strings.TrimSpace(payload) == "[DONE]" {
			return nil
		}
		return fn(payload)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(rest, " "))
		}
		// Other SSE fields (event:, id:, retry:, comments) are ignored.
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return flush()
}
