package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/de-tools/carbon-atlas/pkg/models/api"
	"github.com/rs/zerolog"
)

const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose x-api-key header does not match key. An empty key
// leaves the routes open.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if subtle.ConstantTimeCompare([]byte(req.Header.Get(APIKeyHeader)), []byte(key)) != 1 {
				zerolog.Ctx(req.Context()).Warn().Msg("rejected request with a missing or invalid api key")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Success: false, Error: "invalid api key"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
