package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rcliao/devplan/internal/builder"
	"github.com/rcliao/devplan/internal/lexer"
	"github.com/rcliao/devplan/internal/library"
	"github.com/rcliao/devplan/internal/parser"
	"github.com/rcliao/devplan/internal/pipeline"
	"github.com/rcliao/devplan/internal/renderer"
	"github.com/rcliao/devplan/internal/store"
)

type errorResponse struct {
	Error  string `json:"error"`
	Class  string `json:"class,omitempty"`
	Detail any    `json:"detail,omitempty"`
}

// statusFor maps a pipeline, store or library error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound), store.IsKind(err, store.NotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrInvalidName):
		return http.StatusBadRequest
	}
	switch pipeline.Classify(err) {
	case pipeline.ClassLex, pipeline.ClassParse, pipeline.ClassConfig:
		return http.StatusUnprocessableEntity
	case pipeline.ClassBackpressure:
		return http.StatusTooManyRequests
	case pipeline.ClassRender:
		if renderer.IsKind(err, renderer.Timeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorDetail exposes the structured part of a typed error.
func errorDetail(err error) any {
	var (
		lexErr    *lexer.Error
		parseErr  *parser.Error
		configErr *builder.ConfigError
		renderErr *renderer.Error
	)
	switch {
	case errors.As(err, &lexErr):
		return lexErr
	case errors.As(err, &parseErr):
		return parseErr
	case errors.As(err, &configErr):
		return configErr
	case errors.As(err, &renderErr):
		return renderErr
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Detail: errorDetail(err)}
	if c := pipeline.Classify(err); c != pipeline.ClassInternal {
		resp.Class = string(c)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
