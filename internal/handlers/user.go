package handlers

import (
	"chatcore/internal/identity"
	"chatcore/internal/models"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) GetUser(w http.ResponseWriter, r *http.Request) {
	requestedUserID := chi.URLParam(r, "userID")
	if requestedUserID == "me" {
		requestedUserID = userFromContext(r.Context()).ID
	}

	user, err := h.Directory.GetUser(r.Context(), requestedUserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, user)
}

func (h *handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update identity.ProfileUpdate
	if !h.decode(w, r, &update) {
		return
	}

	user, err := h.Directory.UpdateProfile(r.Context(), userFromContext(r.Context()).ID, update)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, user)
}

func (h *handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	type StatusRequest struct {
		Status models.UserStatus `json:"status"`
	}

	var request StatusRequest
	if !h.decode(w, r, &request) {
		return
	}

	user, err := h.Directory.SetStatus(r.Context(), userFromContext(r.Context()).ID, request.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, user)
}
