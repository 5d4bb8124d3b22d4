package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Gate authorizes requests before they reach the ingestion core. A request
// passes when it presents either the shared API key in X-API-Key or a valid
// bearer token.
type Gate struct {
	apiKey    string
	validator TokenValidator
	logger    *zap.Logger
}

// NewGate creates an auth gate. apiKey may be empty, in which case only
// bearer tokens are accepted.
func NewGate(apiKey string, validator TokenValidator, logger *zap.Logger) *Gate {
	return &Gate{apiKey: apiKey, validator: validator, logger: logger}
}

// Middleware wraps a handler with the authorization check.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.authorize(r) {
			next.ServeHTTP(w, r)
			return
		}
		g.logger.Debug("rejected unauthorized request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func (g *Gate) authorize(r *http.Request) bool {
	if g.apiKey != "" {
		presented := r.Header.Get("X-API-Key")
		if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(g.apiKey)) == 1 {
			return true
		}
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	if _, err := g.validator.ValidateToken(token); err != nil {
		g.logger.Debug("bearer token rejected", zap.Error(err))
		return false
	}
	return true
}
