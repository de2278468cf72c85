package handlers

import (
	"chatcore/internal/apperr"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindAuth:       http.StatusUnauthorized,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindStore:      http.StatusServiceUnavailable,
}

// respondError writes err as {"error": kind, "message": ...}. Errors without
// a kind are logged and reported as internal.
func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.sugar.Errorw("unclassified error", "error", err, "path", r.URL.Path)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, apperr.New("internal", "internal error"))
		return
	}

	status, ok := statusByKind[appErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		h.sugar.Errorw("request failed", "error", appErr, "cause", appErr.Cause, "path", r.URL.Path)
	} else {
		h.sugar.Debugw("request rejected", "error", appErr, "path", r.URL.Path)
	}

	render.Status(r, status)
	render.JSON(w, r, appErr)
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// decode reads a JSON body into v, reporting malformed input as a
// validation error. An empty body leaves v untouched.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		h.sugar.Debug(err)
		h.respondError(w, r, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
		return false
	}
	return true
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.respondError(w, r, apperr.NotFound("requested resource not found"))
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusMethodNotAllowed)
	render.JSON(w, r, apperr.New("method_not_allowed", "method not allowed"))
}
