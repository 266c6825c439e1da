package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sablehq/go-session-server/internal/apperr"
	"github.com/sablehq/go-session-server/internal/config"
)

// envelope is the uniform response body. Success responses carry data,
// failure responses carry the error block; never both.
type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	ShouldRefresh bool   `json:"shouldRefresh,omitempty"`
	Stack         string `json:"stack,omitempty"`
}

func (s *Server) respondSuccess(w http.ResponseWriter, status int, message string, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondError is the single error boundary: every handler failure
// funnels through here so the status/code mapping lives in one place.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)

	if appErr.Kind == apperr.KindInternal {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	}

	body := &errorBody{
		Code:          appErr.Kind.Code(),
		Message:       appErr.Message,
		ShouldRefresh: appErr.Kind.ShouldRefresh(),
	}
	if s.env != config.EnvProduction && appErr.Err != nil {
		body.Stack = appErr.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   body,
	})
}
