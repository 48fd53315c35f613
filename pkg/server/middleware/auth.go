package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/callisto/pkg/config"
)

// APIKeyHeader is accepted alongside "Authorization: Bearer <key>".
const APIKeyHeader = "X-API-Key"

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const apiKeyNameKey contextKey = "api_key_name"

// KeyValidator checks presented API keys against the configured set.
type KeyValidator struct {
	keys []config.APIKeyConfig
}

// NewKeyValidator returns a validator for the enabled keys in keys.
func NewKeyValidator(keys []config.APIKeyConfig) *KeyValidator {
	v := &KeyValidator{}
	for _, k := range keys {
		if !k.Disabled && k.Key != "" {
			v.keys = append(v.keys, k)
		}
	}
	return v
}

// Validate returns the name of the key matching presented.
func (v *KeyValidator) Validate(presented string) (string, bool) {
	name, found := "", false
	for _, k := range v.keys {
		// Every key is compared so the match position does not leak.
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(presented)) == 1 {
			name, found = k.Name, true
		}
	}
	return name, found
}

// APIKeyMiddleware rejects requests without a valid API key with 401.
func APIKeyMiddleware(v *KeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := extractAPIKey(r)
			if presented == "" {
				logger.WarnContext(r.Context(), "missing API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				unauthorized(w, "missing API key")
				return
			}

			name, ok := v.Validate(presented)
			if !ok {
				logger.WarnContext(r.Context(), "invalid API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				unauthorized(w, "invalid API key")
				return
			}

			logger.DebugContext(r.Context(), "API key authenticated", "key_name", name, "path", r.URL.Path)
			ctx := context.WithValue(r.Context(), apiKeyNameKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKeyName returns the name of the key that authenticated the request.
func GetAPIKeyName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(apiKeyNameKey).(string)
	return name, ok
}

func extractAPIKey(r *http.Request) string {
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return r.Header.Get(APIKeyHeader)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="callisto"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
