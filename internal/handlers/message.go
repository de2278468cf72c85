package handlers

import (
	"chatcore/internal/apperr"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	type AddMessageRequest struct {
		Content string `json:"content"`
	}

	var request AddMessageRequest
	if !h.decode(w, r, &request) {
		return
	}

	message, err := h.Log.Send(r.Context(), chi.URLParam(r, "channelID"), userFromContext(r.Context()).ID, request.Content)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, message)
}

func (h *handler) GetMessageList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if paramLimit := r.URL.Query().Get("limit"); paramLimit != "" {
		var err error
		limit, err = strconv.Atoi(paramLimit)
		if err != nil {
			h.respondError(w, r, apperr.Wrap(apperr.KindValidation, "limit is not a number", err))
			return
		}
	}

	list, err := h.Log.List(r.Context(), chi.URLParam(r, "channelID"), userFromContext(r.Context()).ID, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, list)
}
