package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/hosting"
	"github.com/woozymasta/speedrun/internal/ledger"
	"github.com/woozymasta/speedrun/internal/models"
	"github.com/woozymasta/speedrun/internal/storage"
)

var (
	errBodyTooLarge    = errors.New("request body too large")
	errHostingDisabled = errors.New("hosting API is not configured")
	errUnknownBoard    = fmt.Errorf("%w: board must be random or set_seed", models.ErrValidation)
	errInternal        = errors.New("internal error")
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error        string `json:"error"`
	RemoteBody   string `json:"remote_body,omitempty"`
	RemoteStatus int    `json:"remote_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes it as JSON.
// Unexpected errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var terr *hosting.TransportError

	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, ledger.ErrUnknownAction):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, errBodyTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case errors.Is(err, errHostingDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.As(err, &terr):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Hosting API call failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:        "hosting API error",
			RemoteStatus: terr.StatusCode,
			RemoteBody:   terr.Body,
		})
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errInternal.Error()})
	}
}

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v untouched.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if s.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		default:
			return fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err)
		}
	}

	return nil
}
