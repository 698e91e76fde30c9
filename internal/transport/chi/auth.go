package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths bypass authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

const (
	bearerScheme     = "bearer"
	accessTokenParam = "access_token"
	authChallenge    = `Bearer realm="stockmarks"`
)

// BearerAuthMiddleware validates API keys sent as Bearer tokens. GET requests may
// pass the key as ?access_token= instead, so the bookmark file can be fetched by a plain link.
// An empty apiKeys disables authentication.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, msg := extractToken(r)
			if msg == "" && !matchKey(validKeys, []byte(token)) {
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", authChallenge)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken returns the presented key, or a client-facing reason when there is none.
func extractToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		if r.Method == http.MethodGet {
			if t := r.URL.Query().Get(accessTokenParam); t != "" {
				return t, ""
			}
		}
		return "", "missing authorization header"
	}

	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", "authorization header must use Bearer scheme"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

// matchKey compares the token against every key in constant time.
func matchKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
