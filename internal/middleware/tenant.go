package middleware

import (
	"net/http"
	"strings"

	"github.com/elile/screening-core/internal/multitenancy"
)

// TenantMiddleware ensures a valid tenant context exists for the request
func TenantMiddleware(tm *multitenancy.TenantManager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var tenantID string

		// 0. No tenant manager configured (local/dev): trust the
		// X-Tenant-ID header as-is since there is no store to validate
		// against.
		if tm == nil {
			tenantID = r.Header.Get("X-Tenant-ID")
			if tenantID == "" {
				http.Error(w, "Missing Tenant Context (X-Tenant-ID)", http.StatusUnauthorized)
				return
			}
			next(w, r.WithContext(multitenancy.WithTenant(ctx, tenantID)))
			return
		}

		// 1. Check Authorization Header (API Key)
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer scrn_") {
			apiKey := strings.TrimPrefix(authHeader, "Bearer ")
			tenant, err := tm.ValidateAPIKey(ctx, apiKey)
			if err != nil {
				http.Error(w, "Invalid API Key", http.StatusUnauthorized)
				return
			}
			tenantID = tenant.TenantID
		}

		// 2. Check X-Tenant-ID Header (Trusted/Internal/Dev)
		// This acts as a fallback or override if no API key is present,
		// but should ideally be behind a firewall or gateway in production.
		if tenantID == "" {
			reqTenantID := r.Header.Get("X-Tenant-ID")
			if reqTenantID != "" {
				// Validate existence
				tenant, err := tm.LoadTenant(ctx, reqTenantID)
				if err != nil {
					http.Error(w, "Invalid Tenant ID", http.StatusUnauthorized)
					return
				}
				tenantID = tenant.TenantID
			}
		}

		// 3. Enforce Tenant Context
		if tenantID == "" {
			http.Error(w, "Missing Tenant Context (API Key or X-Tenant-ID)", http.StatusUnauthorized)
			return
		}

		// 4. Inject into Context
		ctx = multitenancy.WithTenant(ctx, tenantID)
		next(w, r.WithContext(ctx))
	}
}
