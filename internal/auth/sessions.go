package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// SessionCookieName carries the signed session id for both REST calls and the websocket upgrade.
const SessionCookieName = "skillswap_session"

// CookieCodec signs session ids with HMAC-SHA256. New cookies are signed with the first key;
// any key verifies, which lets a secret be rotated without logging everyone out.
type CookieCodec struct {
	keys [][]byte
}

func NewCookieCodec(secret []byte, previous ...[]byte) CookieCodec {
	var keys [][]byte
	for _, k := range append([][]byte{secret}, previous...) {
		if len(k) == 0 {
			continue
		}
		keys = append(keys, append([]byte(nil), k...))
	}
	return CookieCodec{keys: keys}
}

func (c CookieCodec) signed() bool { return len(c.keys) > 0 }

func (c CookieCodec) EncodeSessionID(sessionID string) string {
	if !c.signed() {
		return sessionID
	}
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(sign(c.keys[0], sessionID))
}

func (c CookieCodec) DecodeSessionID(cookieValue string) (string, bool) {
	if !c.signed() {
		return cookieValue, cookieValue != ""
	}

	id, sigB64, ok := strings.Cut(cookieValue, ".")
	if !ok || id == "" || sigB64 == "" {
		return "", false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil || len(sig) != sha256.Size {
		return "", false
	}

	for _, k := range c.keys {
		if subtle.ConstantTimeCompare(sig, sign(k, id)) == 1 {
			return id, true
		}
	}
	return "", false
}

func sign(key []byte, id string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(id))
	return mac.Sum(nil)
}

// SessionIDFromRequest returns the verified session id from the request cookie.
func (c CookieCodec) SessionIDFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.DecodeSessionID(cookie.Value)
}

func SetSessionCookie(w http.ResponseWriter, cookieValue string, ttl time.Duration, secure bool) {
	writeSessionCookie(w, cookieValue, int(ttl.Seconds()), time.Now().Add(ttl), secure)
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	writeSessionCookie(w, "", -1, time.Unix(0, 0), secure)
}

func writeSessionCookie(w http.ResponseWriter, value string, maxAge int, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
		Expires:  expires,
	})
}
