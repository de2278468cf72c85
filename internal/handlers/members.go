package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) GetMemberList(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Ledger.GetServerDetail(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "serverID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusOK, detail.Members)
}
