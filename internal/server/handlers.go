package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapdc/internal/state"
	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// uploadName is the table name given to CSV data sent in a request.
const uploadName = "upload"

// VerifyRequest is the body of POST /api/verify.
type VerifyRequest struct {
	Name          string `json:"name,omitempty"`
	CSV           string `json:"csv"`
	Delimiter     string `json:"delimiter,omitempty"`
	Header        *bool  `json:"header,omitempty"`
	Constraint    string `json:"constraint"`
	MaxViolations *int   `json:"max_violations,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
}

// VerifyResponse is the body returned by POST /api/verify.
type VerifyResponse struct {
	RunID string `json:"run_id,omitempty"`
	*verify.Result
}

// RunDetail is a run with its stored violations.
type RunDetail struct {
	*state.Run
	Violations []verify.Violation `json:"violations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	var req VerifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Constraint) == "" {
		writeError(w, http.StatusBadRequest, errors.New("constraint is required"))
		return
	}

	d, err := dc.Parse(req.Constraint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	delim, err := table.ParseDelimiter(req.Delimiter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	strategy, err := verify.ParseStrategy(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	header := true
	if req.Header != nil {
		header = *req.Header
	}
	limit := s.maxViolations
	if req.MaxViolations != nil {
		limit = *req.MaxViolations
	}

	ctx := r.Context()
	started := time.Now()
	status := http.StatusOK
	var res *verify.Result
	t, verr := table.ReadCSV(ctx, uploadName, strings.NewReader(req.CSV), delim, header)
	if verr != nil {
		status = http.StatusUnprocessableEntity
	} else {
		v := verify.New(verify.Options{MaxViolations: limit, Strategy: strategy, Logger: s.logger})
		v.LoadTable(t)
		if res, verr = v.ExecuteDC(ctx, d); verr != nil {
			status = statusFor(verr)
		}
	}

	resp := VerifyResponse{Result: res}
	if s.store != nil {
		run, err := s.store.RecordRun(ctx, state.RunInput{
			Name:       req.Name,
			Constraint: d.String(),
			Source:     uploadName,
			Engine:     "memory",
			StartedAt:  started,
			Result:     res,
			Err:        verr,
		})
		if err != nil {
			s.logger.Error("failed to record run", slog.Any("error", err))
		} else {
			resp.RunID = run.ID
			s.notifier.Broadcast(run)
		}
	}

	if verr != nil {
		writeError(w, status, verr)
		return
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", q))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*state.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	ctx := r.Context()

	run, err := s.store.FindRun(ctx, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, state.ErrAmbiguousRunID):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	violations, err := s.store.ListViolations(ctx, run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if violations == nil {
		violations = []verify.Violation{}
	}
	writeJSON(w, http.StatusOK, RunDetail{Run: run, Violations: violations})
}

// handleEvents streams each recorded run as a server-sent event until the
// client disconnects or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Debug("streaming unsupported", slog.Any("error", err))
		return
	}

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case run := <-updates:
			data, err := json.Marshal(run)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: run\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// statusFor maps a verification error to an HTTP status. Errors caused by
// the request's constraint or data are client errors.
func statusFor(err error) int {
	var colErr *dc.UnknownColumnError
	switch {
	case errors.As(err, &colErr),
		errors.Is(err, verify.ErrIncomparableColumns),
		errors.Is(err, verify.ErrStrategyMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
