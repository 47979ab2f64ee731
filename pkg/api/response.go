package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "github.com/tendant/simple-secure/pkg/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)

	body := ErrorResponse{Error: "internal error", Code: string(code)}
	var appErr *apperrors.Error
	if apperrors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Details = appErr.Details
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "code", code)
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
