// Package handlers exposes the service as a JSON API under /api.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"beatpost/internal/auth"
	"beatpost/internal/logging"
	"beatpost/internal/media"
	"beatpost/internal/service"
	"beatpost/internal/store"
	"beatpost/internal/validation"

	"github.com/goccy/go-json"
)

const (
	maxBodyBytes   = 12 << 20
	maxFormMemory  = 8 << 20
	maxUploadBytes = 10 << 20
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

type errorResponse struct {
	Detail  string         `json:"detail"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError maps err onto a status code. Conflicts answer 400 like any
// other rejected input.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve):
		api := ve.ToAPIError()
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: api.Message, Code: api.Code, Details: api.Details})
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		msg := "Could not validate credentials"
		if strings.Contains(err.Error(), "incorrect email or password") {
			msg = "Incorrect email or password"
		}
		respondJSON(w, http.StatusUnauthorized, errorResponse{Detail: msg, Code: "UNAUTHORIZED"})
	case errors.Is(err, service.ErrForbidden):
		respondJSON(w, http.StatusForbidden, errorResponse{Detail: err.Error(), Code: "FORBIDDEN"})
	case errors.Is(err, store.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, store.ErrConflict):
		respondJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error(), Code: "CONFLICT"})
	case errors.Is(err, media.ErrImagesUnavailable):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("image storage unavailable")
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: media.ErrImagesUnavailable.Error(), Code: "IMAGES_UNAVAILABLE"})
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal server error", Code: "INTERNAL"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validation.Field("body", "request body must be valid JSON")
	}
	return nil
}

// parseForm accepts both multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return validation.Field("body", "invalid form body")
	}
	return nil
}

// optionalForm returns nil when the field was not sent at all.
func optionalForm(r *http.Request, key string) *string {
	vals, ok := r.Form[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

// formFile returns nil when no file was uploaded under key.
func formFile(r *http.Request, key string) (*service.Image, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, fh, err := r.FormFile(key)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, validation.Field(key, "invalid file upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, validation.Field(key, "cannot read upload")
	}
	if len(data) > maxUploadBytes {
		return nil, validation.Field(key, "file is too large")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &service.Image{ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, validation.Field(key, "%s must be a non-negative integer", key)
	}
	return n, nil
}

func boolQuery(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, validation.Field(key, "%s must be true or false", key)
	}
	return &b, nil
}

// identity is set by RequireAuth.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
