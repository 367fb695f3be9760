package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/atelier-nord/storefront-backend/api/responses"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
)

const adminKeyHeader = "X-Admin-Key"

// AdminKey guards the back-office routes with a shared API key, accepted
// either as the X-Admin-Key header or a bearer token. An empty configured
// key disables the admin surface entirely.
func AdminKey(key string, logg *logger.Logger) func(http.Handler) http.Handler {
	configured := strings.TrimSpace(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if configured == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin access is not configured"))
				return
			}

			presented := strings.TrimSpace(r.Header.Get(adminKeyHeader))
			if presented == "" {
				raw := strings.TrimSpace(r.Header.Get("Authorization"))
				if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
					presented = strings.TrimSpace(raw[7:])
				}
			}
			if presented == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
				if logg != nil {
					logg.Warn(r.Context(), "admin.key.rejected")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
