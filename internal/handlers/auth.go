package handlers

import (
	"chatcore/internal/models"
	"net/http"
	"time"
)

func (h *handler) Register(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		Email    string `json:"email"`
		UserName string `json:"userName"`
		Password string `json:"password"`
	}

	var registration Registration
	if !h.decode(w, r, &registration) {
		return
	}

	user, err := h.Directory.Register(r.Context(), registration.Email, registration.UserName, registration.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, user)
}

func (h *handler) Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}

	var login Login
	if !h.decode(w, r, &login) {
		return
	}

	// the query flag is still honoured for older clients
	rememberMe := login.RememberMe || r.URL.Query().Get("rememberMe") == "true"

	user, session, err := h.Directory.Login(r.Context(), login.Email, login.Password, rememberMe)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	cookie := h.Tokens.Cookie(session.Token, session.Claims)
	http.SetCookie(w, &cookie)

	h.respond(w, r, http.StatusOK, struct {
		User      models.User `json:"user"`
		Token     string      `json:"token"`
		ExpiresAt time.Time   `json:"expiresAt"`
	}{user, session.Token, session.ExpiresAt})
}

func (h *handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Directory.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}

	cookie := h.Tokens.DeleteCookie()
	http.SetCookie(w, &cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) Me(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, userFromContext(r.Context()))
}
