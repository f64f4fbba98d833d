package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/falcone-gk/Finance-Instruments/internal/domain"
	"github.com/falcone-gk/Finance-Instruments/internal/modules/frontier"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	maxBodyBytes = 8 << 20
)

var validate *validator.Validate

var errRunsDisabled = errors.New("run history is disabled")

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string `json:"code" msgpack:"code"`
	Field   string `json:"field,omitempty" msgpack:"field,omitempty"`
	Message string `json:"message" msgpack:"message"`
}

type envelope struct {
	Data     interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
	Error    *apiError   `json:"error,omitempty" msgpack:"error,omitempty"`
	Metadata metadata    `json:"metadata" msgpack:"metadata"`
}

type apiError struct {
	Code    string            `json:"code" msgpack:"code"`
	Message string            `json:"message" msgpack:"message"`
	Details []ValidationError `json:"details,omitempty" msgpack:"details,omitempty"`
}

type metadata struct {
	Timestamp string `json:"timestamp" msgpack:"timestamp"`
	RequestID string `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
	RunID     string `json:"run_id,omitempty" msgpack:"run_id,omitempty"`
}

// bind decodes the body (JSON or msgpack by Content-Type), applies defaults
// and validates. A non-nil result is the list of problems to report.
func bind(w http.ResponseWriter, r *http.Request, req interface{}) []ValidationError {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeMsgpack) {
		err = msgpack.NewDecoder(body).Decode(req)
	} else {
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		err = dec.Decode(req)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []ValidationError{{Code: "ERR_EMPTY_BODY", Message: "request body is empty"}}
		}
		return []ValidationError{{Code: "ERR_DECODE", Message: err.Error()}}
	}

	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}

	if err := validate.StructCtx(r.Context(), req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
		}
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fieldPath(fe),
				Message: errorMessage(fe),
			})
		}
		return out
	}
	return nil
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func errorMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "ERR_INVALID_INPUT"
	case errors.Is(err, domain.ErrDegenerateInput):
		return http.StatusUnprocessableEntity, "ERR_DEGENERATE_INPUT"
	case errors.Is(err, domain.ErrConvergence):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, "ERR_TIMEOUT"
		}
		return http.StatusUnprocessableEntity, "ERR_CONVERGENCE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "ERR_TIMEOUT"
	case errors.Is(err, frontier.ErrRunNotFound):
		return http.StatusNotFound, "ERR_NOT_FOUND"
	case errors.Is(err, errRunsDisabled):
		return http.StatusServiceUnavailable, "ERR_RUNS_DISABLED"
	default:
		return http.StatusInternalServerError, "ERR_INTERNAL"
	}
}

func newMetadata(r *http.Request, runID string) metadata {
	return metadata{
		Timestamp: time.Now().Format(time.RFC3339),
		RequestID: middleware.GetReqID(r.Context()),
		RunID:     runID,
	}
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack)
}

// writeResponse writes an envelope as msgpack when the client asks for it, JSON otherwise
func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, status int, env envelope) {
	if wantsMsgpack(r) {
		payload, err := msgpack.Marshal(env)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode msgpack response")
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		if _, err := w.Write(payload); err != nil {
			h.log.Debug().Err(err).Msg("Failed to write response")
		}
		return
	}
	h.writeJSON(w, status, env)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeData(w http.ResponseWriter, r *http.Request, data interface{}, runID string) {
	h.writeResponse(w, r, http.StatusOK, envelope{Data: data, Metadata: newMetadata(r, runID)})
}

func (h *Handler) writeValidation(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	h.writeResponse(w, r, http.StatusBadRequest, envelope{
		Error: &apiError{
			Code:    "ERR_VALIDATION",
			Message: "request validation failed",
			Details: errs,
		},
		Metadata: newMetadata(r, ""),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	ev := h.log.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		ev = h.log.Error()
	}
	ev.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")

	h.writeResponse(w, r, status, envelope{
		Error:    &apiError{Code: code, Message: err.Error()},
		Metadata: newMetadata(r, ""),
	})
}
