package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"loanwise/internal/core"
	"loanwise/internal/log"
	"loanwise/internal/middleware/trace"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// errBadJSON marks request bodies that could not be decoded.
var errBadJSON = errors.New("malformed JSON body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP statuses and stable error codes.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "invalid_json"
	case validationDetails(err) != nil:
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, core.ErrLoanNotFound), errors.Is(err, core.ErrProfileNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrLoanNotActive):
		return http.StatusConflict, "loan_not_active"
	case errors.Is(err, core.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, core.ErrNonAmortizingPayment):
		return http.StatusUnprocessableEntity, "non_amortizing_payment"
	case errors.Is(err, core.ErrScheduleCapExceeded):
		return http.StatusUnprocessableEntity, "schedule_cap_exceeded"
	case errors.Is(err, core.ErrNumericOverflow):
		return http.StatusUnprocessableEntity, "numeric_overflow"
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err. Server errors are logged and their details
// withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := errorResponse{
		Error:     err.Error(),
		Code:      code,
		Fields:    validationDetails(err),
		RequestID: trace.GetRequestID(r.Context()),
	}
	if resp.Fields != nil {
		resp.Error = "request validation failed"
	}

	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, r.Method+" "+r.Pattern, nil)
		resp.Error = "internal server error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, "code", code)
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads exactly one JSON object into dst and validates it.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", errBadJSON)
	}
	return s.validator.Validate(dst)
}
