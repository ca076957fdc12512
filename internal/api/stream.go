package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/wavscribe/internal/jobs"
	"github.com/MrWong99/wavscribe/internal/observe"
	"github.com/MrWong99/wavscribe/internal/transcribe"
)

// writeTimeout bounds a single websocket write.
const writeTimeout = 10 * time.Second

// Event types sent on a job stream.
const (
	EventSegment = "segment"
	EventDone    = "done"
)

// Event is one websocket message of a job stream. Segment is set for
// EventSegment, Job for the final EventDone.
type Event struct {
	Type    string              `json:"type"`
	Segment *transcribe.Segment `json:"segment,omitempty"`
	Job     *jobs.Job           `json:"job,omitempty"`
}

// streamJob handles GET /v1/jobs/{id}/stream. Segments produced after the
// connection is established are forwarded as they arrive; a final done event
// carries the job state, then the socket is closed normally.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := observe.LoggerFrom(r.Context(), s.log).With("job_id", id)

	segments, unsubscribe, err := s.jobs.Subscribe(id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotRunning) {
			// Distinguish unknown jobs from finished ones.
			if _, gerr := s.jobs.Get(r.Context(), id); gerr != nil {
				err = gerr
			}
		}
		s.writeJobError(w, r, err)
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	// Incoming messages are ignored; CloseRead cancels ctx when the peer
	// goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			log.Debug("stream client disconnected")
			return
		case seg, ok := <-segments:
			if !ok {
				s.finishStream(ctx, conn, id, log)
				return
			}
			if err := writeEvent(ctx, conn, Event{Type: EventSegment, Segment: &seg}); err != nil {
				log.Debug("stream write failed", "err", err)
				return
			}
		}
	}
}

func (s *Server) finishStream(ctx context.Context, conn *websocket.Conn, id string, log *slog.Logger) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		log.Warn("failed to load finished job", "err", err)
		conn.Close(websocket.StatusInternalError, "job state unavailable")
		return
	}
	if err := writeEvent(ctx, conn, Event{Type: EventDone, Job: job}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, string(job.Status))
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
