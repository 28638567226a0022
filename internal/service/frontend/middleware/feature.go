// Package middleware provides HTTP middleware for the frontend server.
package middleware

import (
	"net/http"

	"github.com/streamdesk/streamdesk/internal/cmn/logger"
	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	"github.com/streamdesk/streamdesk/internal/license"
	"github.com/streamdesk/streamdesk/internal/service/frontend/response"
)

// RequireFeature rejects requests with 403 unless the license allows feature.
func RequireFeature(checker license.Checker, feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := checker.CheckFeature(r.Context(), feature)
			if !d.Allowed {
				logger.Debug(r.Context(), "Request blocked by license",
					tag.Feature(feature),
					tag.Reason(d.Reason),
				)
				response.Write(w, r, response.Forbidden(d.Reason))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
