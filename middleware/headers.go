// Package middleware provides endpoint.Processors for serving JSON-RPC over
// HTTP: response headers suited to an API, CORS, and request logging.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mnehpets/onerpc/endpoint"
)

// HeadersProcessor sets response headers for an RPC API and answers CORS
// preflight requests.
//
// Defaults from NewHeadersProcessor:
//   - Cache-Control: no-store
//   - X-Content-Type-Options: nosniff
//   - Referrer-Policy: no-referrer
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - no HSTS and no CORS
type HeadersProcessor struct {
	// CacheControl sets the Cache-Control header. Empty disables it.
	CacheControl string

	// ContentTypeOptions sets X-Content-Type-Options: nosniff.
	ContentTypeOptions bool

	// ReferrerPolicy sets the Referrer-Policy header. Empty disables it.
	ReferrerPolicy string

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	// Empty disables it.
	ContentSecurityPolicy string

	// HSTSMaxAge, in seconds, enables Strict-Transport-Security with
	// includeSubDomains when positive.
	HSTSMaxAge int

	// CORS configures cross-origin access. Nil disables CORS headers.
	CORS *CORSConfig
}

// CORSConfig configures Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" allows any
	// origin unless AllowCredentials is set.
	AllowedOrigins []string

	// AllowedMethods is sent on preflight. Default: POST, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders is sent on preflight. Default: Content-Type.
	AllowedHeaders []string

	// ExposedHeaders lists response headers readable by the caller.
	ExposedHeaders []string

	// AllowCredentials sets Access-Control-Allow-Credentials.
	AllowCredentials bool

	// MaxAge, in seconds, lets the browser cache preflight results.
	MaxAge int
}

// HeadersOption configures a HeadersProcessor.
type HeadersOption func(*HeadersProcessor)

// NewHeadersProcessor creates a HeadersProcessor with API defaults.
func NewHeadersProcessor(opts ...HeadersOption) *HeadersProcessor {
	p := &HeadersProcessor{
		CacheControl:          "no-store",
		ContentTypeOptions:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithHSTS enables Strict-Transport-Security.
func WithHSTS(maxAge int) HeadersOption {
	return func(p *HeadersProcessor) {
		p.HSTSMaxAge = maxAge
	}
}

// WithCacheControl sets the Cache-Control header.
func WithCacheControl(value string) HeadersOption {
	return func(p *HeadersProcessor) {
		p.CacheControl = value
	}
}

// WithCORS enables CORS. Unset methods and headers get defaults suited to
// JSON-RPC over POST.
func WithCORS(config CORSConfig) HeadersOption {
	return func(p *HeadersProcessor) {
		if len(config.AllowedMethods) == 0 {
			config.AllowedMethods = []string{http.MethodPost, http.MethodOptions}
		}
		if len(config.AllowedHeaders) == 0 {
			config.AllowedHeaders = []string{"Content-Type"}
		}
		p.CORS = &config
	}
}

// Process implements endpoint.Processor.
func (p *HeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if p.CacheControl != "" {
		h.Set("Cache-Control", p.CacheControl)
	}
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	if p.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", p.ReferrerPolicy)
	}
	if p.ContentSecurityPolicy != "" {
		h.Set("Content-Security-Policy", p.ContentSecurityPolicy)
	}
	if p.HSTSMaxAge > 0 {
		h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(p.HSTSMaxAge)+"; includeSubDomains")
	}

	if p.CORS != nil {
		p.CORS.setHeaders(h, r)

		// Preflight requests never reach the endpoint.
		if r.Method == http.MethodOptions &&
			r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			return endpoint.Error(http.StatusNoContent, "", nil)
		}
	}

	return next(w, r)
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// if the origin is not allowed.
func (c *CORSConfig) allowOrigin(origin string) string {
	if slices.Contains(c.AllowedOrigins, origin) {
		return origin
	}
	// Wildcard with credentials is forbidden by browsers.
	if !c.AllowCredentials && slices.Contains(c.AllowedOrigins, "*") {
		return "*"
	}
	return ""
}

func (c *CORSConfig) setHeaders(h http.Header, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	h.Add("Vary", "Origin")

	allowed := c.allowOrigin(origin)
	if allowed == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allowed)
	if c.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(c.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(c.ExposedHeaders, ", "))
	}

	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", strings.Join(c.AllowedMethods, ", "))
		h.Set("Access-Control-Allow-Headers", strings.Join(c.AllowedHeaders, ", "))
		if c.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
		}
	}
}

var _ endpoint.Processor = (*HeadersProcessor)(nil)
