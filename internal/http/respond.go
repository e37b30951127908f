package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dompet/internal/core"
	"dompet/internal/log"
	"dompet/internal/period"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks a request that could not be read at all, as opposed
// to one carrying invalid values.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusOf maps the domain error taxonomy onto HTTP statuses.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrParse),
		errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrEmptyDescription), errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyAccount):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	case errors.Is(err, core.ErrDuplicateBudget), errors.Is(err, core.ErrDuplicateAccount),
		errors.Is(err, core.ErrAlreadyPaid):
		return http.StatusConflict, log.ErrorTypeConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, log.ErrorTypeDatabase
	}
	return http.StatusInternalServerError, log.ErrorTypeInternal
}

// fail writes the error response for err. Client errors are logged at
// warn; server errors at error with their full chain, which the client never
// sees.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	status, errType := statusOf(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.LogError(r.Context(), msg, err, op, errType)
	} else {
		logger.WarnContext(r.Context(), msg, log.NewFields().WithError(err).WithOperation(op).WithErrorType(errType).ToSlice()...)
	}

	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "5")
		writeErrorMessage(w, status, "storage temporarily unavailable")
	case http.StatusInternalServerError:
		writeErrorMessage(w, status, "internal error")
	default:
		writeErrorMessage(w, status, err.Error())
	}
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return core.NewInvalidInput("amount", "must be a positive decimal")
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single JSON object", errBadRequest)
	}
	return nil
}

// parseDay accepts YYYY-MM-DD or RFC 3339. Empty yields the zero time.
func parseDay(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, core.NewInvalidInput(field, "must be YYYY-MM-DD")
}

// monthParam returns the month query parameter, defaulting to the current
// month.
func (s *Server) monthParam(r *http.Request) (string, error) {
	m := strings.TrimSpace(r.URL.Query().Get("month"))
	if m == "" {
		return period.MonthKey(s.now()), nil
	}
	if !period.Valid(m) {
		return "", core.NewInvalidInput("month", "month must be YYYY-MM")
	}
	return m, nil
}

// asOf is the instant a month's views are computed at: now for the current
// month, the last day of any other month.
func (s *Server) asOf(monthYear string) time.Time {
	now := s.now()
	k, err := period.ParseKey(monthYear)
	if err != nil || k == period.KeyOf(now) {
		return now
	}
	end := k.Add(1).Start().AddDate(0, 0, -1)
	return time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, now.Location())
}

func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, core.NewInvalidInput(name, fmt.Sprintf("must be an integer between %d and %d", min, max))
	}
	return n, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
