package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) OpenDirectChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := h.Log.GetOrCreateDirectChannel(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "userID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, channel)
}

func (h *handler) GetDirectChannelList(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Log.ListDirectChannels(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, channels)
}
