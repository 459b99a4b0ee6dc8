// Package security sets response hardening headers and resolves client
// addresses behind trusted proxies.
package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	CacheControl        string
}

// DefaultHeadersConfig returns defaults for a JSON API that serves no
// active content.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

// Headers returns middleware applying config to every response.
func Headers(config HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applyHeaders(config, w, r)
			next.ServeHTTP(w, r)
		})
	}
}

func applyHeaders(c HeadersConfig, w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	set := func(name, value string) {
		if value != "" {
			h.Set(name, value)
		}
	}

	set("Content-Security-Policy", c.CSP)
	set("X-Frame-Options", c.XFrameOptions)
	set("X-Content-Type-Options", c.XContentTypeOptions)
	set("Referrer-Policy", c.ReferrerPolicy)
	set("Cross-Origin-Resource-Policy", c.CrossOriginResource)
	set("Cache-Control", c.CacheControl)

	// HSTS only means something over TLS
	if r.TLS != nil && c.HSTSMaxAge > 0 {
		v := fmt.Sprintf("max-age=%d", c.HSTSMaxAge)
		if c.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", v)
	}
}
