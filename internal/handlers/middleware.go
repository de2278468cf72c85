package handlers

import (
	"chatcore/internal/apperr"
	"chatcore/internal/jwt"
	"chatcore/internal/models"
	"context"
	"errors"
	"net/http"
	"strings"
)

type UserKeyType struct{}
type TokenKeyType struct{}

func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errors.New("malformed authorization header")
		}
		return token, nil
	}

	jwtCookie, err := r.Cookie(jwt.CookieName)
	if err != nil {
		return "", err
	}
	return jwtCookie.Value, nil
}

// UserVerifier resolves the session token of the request to a user and
// passes it on in the request context.
func (h *handler) UserVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenFromRequest(r)
		if err != nil {
			h.sugar.Debug(err)
			h.respondError(w, r, apperr.Wrap(apperr.KindAuth, "no session token was provided", err))
			return
		}

		user, err := h.Directory.Verify(r.Context(), token)
		if err != nil {
			// drop the cookie of a session that is no longer valid
			if apperr.Is(err, apperr.KindAuth) {
				cookie := h.Tokens.DeleteCookie()
				http.SetCookie(w, &cookie)
			}
			h.respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserKeyType{}, user)
		ctx = context.WithValue(ctx, TokenKeyType{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) models.User {
	user, _ := ctx.Value(UserKeyType{}).(models.User)
	return user
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenKeyType{}).(string)
	return token
}
