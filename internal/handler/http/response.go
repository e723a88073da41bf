// Package http holds the HTTP handlers, middleware, and router.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	errs "github.com/identware/identity-service/pkg/errors"
	"github.com/identware/identity-service/pkg/logger"
	"github.com/identware/identity-service/pkg/validator"
)

// maxBodyBytes bounds request bodies; nothing this API accepts is large.
const maxBodyBytes = 1 << 20

type response struct {
	Data  any `json:"data,omitempty"`
	Error any `json:"error,omitempty"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(response{Data: data}); err != nil {
		slog.Default().Error("encode response", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeError maps service errors onto the wire format. Internal errors are
// logged with their cause and returned opaque.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *validator.ValidationError
	if errors.As(err, &vErr) {
		writeErrorBody(w, http.StatusBadRequest, errorBody{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  vErr.Fields(),
		})
		return
	}

	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", appErr.Error()),
			)
			writeErrorBody(w, appErr.Status, errorBody{
				Code:    appErr.Code,
				Message: "an internal error occurred",
			})
			return
		}
		writeErrorBody(w, appErr.Status, errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
		})
		return
	}

	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeErrorBody(w, status, errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "an internal error occurred",
		})
		return
	}
	writeErrorBody(w, status, errorBody{
		Code:    "ERROR",
		Message: err.Error(),
	})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Error: body}); err != nil {
		slog.Default().Error("encode error response", slog.String("error", err.Error()))
	}
}

// decode reads and validates a JSON body into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var vErr *validator.ValidationError
		if errors.As(err, &vErr) {
			return vErr
		}
		return errs.InvalidInput("invalid request body")
	}
	return nil
}
