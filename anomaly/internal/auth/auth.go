// Package auth holds the shared-secret checks used by the ingestion gateway
// and the validated-create endpoint.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// WorkerTokenHeader carries the worker secret on create requests.
const WorkerTokenHeader = "X-Worker-Token"

const bearerScheme = "bearer"

// SecretEqual compares a presented credential against the configured secret
// in constant time. Both values are hashed first so the comparison does not
// leak the secret's length. An empty configured secret matches nothing.
func SecretEqual(presented, configured string) bool {
	if configured == "" {
		return false
	}
	p := sha256.Sum256([]byte(presented))
	c := sha256.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(p[:], c[:]) == 1
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively and may be followed by any run of
// spaces or tabs.
func BearerToken(header string) (string, bool) {
	n := len(bearerScheme)
	if len(header) <= n || !strings.EqualFold(header[:n], bearerScheme) {
		return "", false
	}
	if c := header[n]; c != ' ' && c != '\t' {
		return "", false
	}
	token := strings.TrimSpace(header[n:])
	if token == "" {
		return "", false
	}
	return token, true
}

// BearerAuthorized reports whether r carries the expected bearer credential.
func BearerAuthorized(r *http.Request, secret string) bool {
	token, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	return SecretEqual(token, secret)
}

// WorkerAuthorized reports whether r carries the expected worker token.
func WorkerAuthorized(r *http.Request, secret string) bool {
	return SecretEqual(r.Header.Get(WorkerTokenHeader), secret)
}
