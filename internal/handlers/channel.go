package handlers

import (
	"chatcore/internal/models"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	type CreateChannelRequest struct {
		Name string             `json:"name"`
		Kind models.ChannelKind `json:"kind"`
	}

	request := CreateChannelRequest{Kind: models.ChannelText}
	if !h.decode(w, r, &request) {
		return
	}

	channel, err := h.Ledger.CreateChannel(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "serverID"), request.Name, request.Kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, channel)
}
