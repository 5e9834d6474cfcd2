package progress

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sse"
)

var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

// SSEWriter writes each event as a `data:` frame and flushes it immediately.
type SSEWriter struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers on w. ctx is the request
// context; once it is done, writes fail instead of buffering.
func NewSSEWriter(ctx context.Context, w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{ctx: ctx, w: w, flusher: flusher}, nil
}

func (s *SSEWriter) Write(ev Event) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if err := sse.Encode(s.w, sse.Event{Data: ev}); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) Close() error {
	s.flusher.Flush()
	return nil
}
