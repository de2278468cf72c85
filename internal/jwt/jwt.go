package jwt

import (
	"chatcore/internal/ids"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "JWT"

const (
	ShortLifeTime    = time.Hour * 24          // 1 day
	RememberLifeTime = time.Hour * 24 * 7 * 4 // 4 weeks
)

type UserToken struct {
	UserID   string `json:"userID"`
	Remember bool   `json:"rem"`
	jwt.RegisteredClaims
}

// Authority signs and verifies session tokens with one shared secret.
type Authority struct {
	secret  []byte
	isHttps bool
	now     func() time.Time
}

func New(secret string, isHttps bool) *Authority {
	return &Authority{
		secret:  []byte(secret),
		isHttps: isHttps,
		now:     time.Now,
	}
}

func LifeTime(rememberMe bool) time.Duration {
	if rememberMe {
		return RememberLifeTime
	}
	return ShortLifeTime
}

// CreateToken returns a signed token for userID together with its claims, so
// callers know the token id and expiry without parsing it again.
func (a *Authority) CreateToken(rememberMe bool, userID string) (string, UserToken, error) {
	tokenID, err := ids.New()
	if err != nil {
		return "", UserToken{}, err
	}

	currentTime := a.now().UTC()
	expirationDate := currentTime.Add(LifeTime(rememberMe))

	claims := UserToken{
		UserID:   userID,
		Remember: rememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expirationDate),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(a.secret)
	if err != nil {
		return "", UserToken{}, err
	}

	return tokenString, claims, nil
}

// VerifyToken checks the signature, algorithm and expiry of tokenString.
func (a *Authority) VerifyToken(tokenString string) (UserToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserToken{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return UserToken{}, err
	}

	claims, ok := token.Claims.(*UserToken)
	if !ok || claims.UserID == "" || claims.ID == "" {
		return UserToken{}, errors.New("invalid token")
	}
	return *claims, nil
}

func (a *Authority) Cookie(tokenString string, claims UserToken) http.Cookie {
	cookie := http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.isHttps,
		SameSite: http.SameSiteLaxMode,
	}

	if claims.Remember && claims.ExpiresAt != nil {
		cookie.Expires = claims.ExpiresAt.Time
	}

	return cookie
}

func (a *Authority) DeleteCookie() http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.isHttps,
		SameSite: http.SameSiteLaxMode,
	}
}
