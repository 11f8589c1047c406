package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowOrigins lists permitted origins. "*" allows any origin.
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns permissive CORS config for internal tools
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		MaxAge:       86400,
	}
}

// ParseOrigins splits a comma-separated origin list.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request
// origin, or "" when the origin is not permitted.
func (c CORSConfig) allowOrigin(origin string) string {
	if slices.Contains(c.AllowOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(c.AllowOrigins, origin) {
		return origin
	}
	return ""
}

type corsHeaders struct {
	methods string
	headers string
	maxAge  string
}

func (c CORSConfig) headers() corsHeaders {
	return corsHeaders{
		methods: strings.Join(c.AllowMethods, ", "),
		headers: strings.Join(c.AllowHeaders, ", "),
		maxAge:  strconv.Itoa(c.MaxAge),
	}
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	h := config.headers()

	return func(ctx huma.Context, next func(huma.Context)) {
		if allowed := config.allowOrigin(ctx.Header("Origin")); allowed != "" {
			ctx.SetHeader("Access-Control-Allow-Origin", allowed)
			ctx.SetHeader("Access-Control-Allow-Methods", h.methods)
			ctx.SetHeader("Access-Control-Allow-Headers", h.headers)
			ctx.SetHeader("Access-Control-Max-Age", h.maxAge)
			if allowed != "*" {
				ctx.SetHeader("Vary", "Origin")
			}
		}

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler adds a CORS preflight handler to the mux for OPTIONS requests
// This is needed because Huma middleware doesn't intercept OPTIONS before routing
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	h := config.headers()

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		if allowed := config.allowOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", h.methods)
			w.Header().Set("Access-Control-Allow-Headers", h.headers)
			w.Header().Set("Access-Control-Max-Age", h.maxAge)
			if allowed != "*" {
				w.Header().Set("Vary", "Origin")
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
