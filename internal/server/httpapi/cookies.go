package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/server/auth"
)

func authCookie(name, value string, expires, now time.Time, secure bool) *http.Cookie {
	maxAge := int(expires.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair, now time.Time, secure bool) {
	http.SetCookie(w, authCookie(common.AccessTokenCookieName, pair.AccessToken, pair.AccessExpiresAt, now, secure))
	http.SetCookie(w, authCookie(common.RefreshTokenCookieName, pair.RefreshToken, pair.RefreshExpiresAt, now, secure))
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
