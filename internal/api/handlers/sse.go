package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentoven/ragserve/pkg/models"
)

// sseWriter frames streamed inference output. Headers are committed on the
// first frame, so a failure before any delta can still be answered with an
// ordinary JSON error.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) frame(format string, args ...interface{}) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Delta writes one text fragment.
func (s *sseWriter) Delta(text string) error {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	return s.frame("data: %s\n\n", data)
}

// Finish writes the full output followed by the close event.
func (s *sseWriter) Finish(out *models.InferenceOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := s.frame("data: %s\n\n", data); err != nil {
		return err
	}
	return s.frame("event: close\n\n")
}

// Fail writes the in-band error event.
func (s *sseWriter) Fail() error {
	if err := s.frame("data: Inference failed\n\n"); err != nil {
		return err
	}
	return s.frame("event: error\n\n")
}
