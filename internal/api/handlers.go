package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/wavscribe/internal/jobs"
	"github.com/MrWong99/wavscribe/internal/observe"
	"github.com/MrWong99/wavscribe/internal/transcribe"
)

// maxBodyBytes bounds the size of a transcription request body.
const maxBodyBytes = 1 << 20

// stdinInput is the input name that reads from standard input on the command
// line. A server has no standard input to offer.
const stdinInput = "-"

type errorResponse struct {
	Error string `json:"error"`
}

// createTranscription handles POST /v1/transcriptions. The body is decoded
// over the configured defaults, so only differing fields need to be sent.
func (s *Server) createTranscription(w http.ResponseWriter, r *http.Request) {
	log := observe.LoggerFrom(r.Context(), s.log)

	p, configuredModel, err := s.decodeParams(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if slices.Contains(p.Inputs, stdinInput) {
		writeError(w, http.StatusBadRequest, errors.New("reading from standard input is not supported over HTTP"))
		return
	}
	if err := s.confine(&p, configuredModel); err != nil {
		log.Warn("rejected request path", "err", err)
		writeError(w, http.StatusForbidden, err)
		return
	}
	if err := transcribe.Check(p, s.lookup); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	job, err := s.jobs.Submit(r.Context(), p)
	if err != nil {
		if errors.Is(err, jobs.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		log.Error("failed to submit job", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Info("transcription submitted", "job_id", job.ID, "inputs", len(p.Inputs))

	if r.URL.Query().Get("wait") != "true" {
		w.Header().Set("Location", "/v1/jobs/"+job.ID)
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	done, err := s.jobs.Wait(r.Context(), job.ID)
	if err != nil {
		// The client went away; the job keeps running and stays queryable.
		log.Warn("stopped waiting for job", "job_id", job.ID, "err", err)
		return
	}
	if done.Status != jobs.StatusSucceeded {
		writeJSON(w, http.StatusInternalServerError, done)
		return
	}
	writeJSON(w, http.StatusOK, done)
}

// decodeParams decodes the body over the configured defaults and also
// returns the configured model.
func (s *Server) decodeParams(w http.ResponseWriter, r *http.Request) (transcribe.Params, string, error) {
	p := transcribe.DefaultParams()
	if s.defaults != nil {
		p = s.defaults()
	}
	p.Inputs = nil
	p.Outputs = nil
	configured := p.Model

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, configured, fmt.Errorf("invalid request body: %w", err)
	}
	return p, configured, nil
}

// listJobs handles GET /v1/jobs.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobs.List(r.Context(), s.historyLimit)
	if err != nil {
		observe.LoggerFrom(r.Context(), s.log).Error("failed to list jobs", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []jobs.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

// getJob handles GET /v1/jobs/{id}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// cancelJob handles DELETE /v1/jobs/{id}.
func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobs.Cancel(r.Context(), id); err != nil {
		s.writeJobError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, jobs.ErrFinished), errors.Is(err, jobs.ErrNotRunning):
		writeError(w, http.StatusConflict, err)
	default:
		observe.LoggerFrom(r.Context(), s.log).Error("job lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
