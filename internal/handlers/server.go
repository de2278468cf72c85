package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	type CreateServerRequest struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
	}

	var request CreateServerRequest
	if !h.decode(w, r, &request) {
		return
	}

	server, err := h.Ledger.CreateServer(r.Context(), userFromContext(r.Context()).ID, request.Name, request.Icon)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, server)
}

func (h *handler) GetServerList(w http.ResponseWriter, r *http.Request) {
	servers, err := h.Ledger.ListServersForUser(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, servers)
}

func (h *handler) GetServer(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Ledger.GetServerDetail(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "serverID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, detail)
}
