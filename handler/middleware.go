package handler

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/cors"
	"golang.org/x/xerrors"

	"github.com/billybrichards/climate-parser/config"
)

const apiKeyHeader = "X-API-Key"

// recoverPanic turns a panic into a 500. http.ErrAbortHandler is re-raised.
func (h *HTTPHandler) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			e := h.internalError(xerrors.Errorf("panic serving http request: %v", rec))
			e.stack = string(debug.Stack())
			h.logAndReturnError(w, r, e)
		}()

		next.ServeHTTP(w, r)
	})
}

// corsHandler only grants CORS to the configured origins. Requests without an
// Origin header are same-origin and pass untouched; disallowed origins still get
// their normal response, just without allow headers.
func corsHandler(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(cfg.AllowedOrigins)+len(cfg.AllowedOriginPatterns))
	origins = append(origins, cfg.AllowedOrigins...)
	origins = append(origins, cfg.AllowedOriginPatterns...)

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", apiKeyHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           86400,
		// preflight answers OPTIONS itself.
		OptionsPassthrough: true,
	})
}

// preflight short-circuits every OPTIONS request with an empty 200 once the CORS
// headers have been set.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey checks the shared secret. An unset secret is a server
// configuration error whatever the request carries.
func (h *HTTPHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.APIKey == "" {
			h.logAndReturnError(w, r, &apiError{
				status:  http.StatusInternalServerError,
				kind:    kindConfiguration,
				message: "API key not configured on server",
			})
			return
		}

		got := r.Header.Get(apiKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.APIKey)) != 1 {
			h.logAndReturnError(w, r, &apiError{
				status:  http.StatusUnauthorized,
				kind:    kindUnauthorized,
				message: "Invalid or missing API key",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
