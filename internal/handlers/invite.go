package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	type CreateInviteRequest struct {
		ChannelID string `json:"channelID"`
		MaxAge    int    `json:"maxAge"`
		MaxUses   int    `json:"maxUses"`
	}

	var request CreateInviteRequest
	if !h.decode(w, r, &request) {
		return
	}

	invite, err := h.Gate.CreateInvite(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "serverID"),
		request.ChannelID, request.MaxAge, request.MaxUses)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, invite)
}

func (h *handler) PreviewInvite(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Gate.Preview(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, preview)
}

func (h *handler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	server, err := h.Gate.Redeem(r.Context(), chi.URLParam(r, "code"), userFromContext(r.Context()).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, server)
}
