package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/xerrors"

	"github.com/billybrichards/climate-parser/backend"
	"github.com/billybrichards/climate-parser/config"
	"github.com/billybrichards/climate-parser/extract"
	"github.com/billybrichards/climate-parser/manager"
)

// Extractor turns project text into a result mapping.
type Extractor interface {
	Parse(ctx context.Context, text string) (extract.Result, error)
}

// Prober checks connectivity to the upstream service.
type Prober interface {
	Probe(ctx context.Context) (*backend.ProbeResult, error)
}

type Options struct {
	Config    *config.Config
	Extractor Extractor
	Prober    Prober
	Tracker   *manager.Tracker
	// Gatherer backs GET /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer
}

// HTTPHandler is the HTTP front door: auth, validation, CORS and error translation
// around the extraction component.
type HTTPHandler struct {
	cfg        *config.Config
	production bool
	extractor  Extractor
	prober     Prober
	tracker    *manager.Tracker
	validate   *validator.Validate
	docs       []byte
	started    time.Time
	router     chi.Router
}

// NewHTTPHandler creates a new instance of HTTPHandler
func NewHTTPHandler(opts Options) (*HTTPHandler, error) {
	if opts.Config == nil || opts.Extractor == nil || opts.Prober == nil || opts.Tracker == nil {
		return nil, xerrors.New("handler: config, extractor, prober and tracker are required")
	}

	docs, err := renderDocs(opts.Config)
	if err != nil {
		return nil, xerrors.Errorf("render docs: %w", err)
	}

	h := &HTTPHandler{
		cfg:        opts.Config,
		production: opts.Config.IsProduction(),
		extractor:  opts.Extractor,
		prober:     opts.Prober,
		tracker:    opts.Tracker,
		validate:   validator.New(),
		docs:       docs,
		started:    time.Now(),
	}

	r := chi.NewRouter()
	r.Use(
		h.attachRequestID,
		h.logRequest,
		h.recoverPanic,
		corsHandler(opts.Config.CORS),
		preflight,
	)

	r.Get("/", h.handleDocs)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAPIKey)
			r.Post("/parse", h.handleParse)
			r.Get("/test-openai", h.handleTestOpenAI)
		})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(h.handleNotFound)
	r.MethodNotAllowed(h.handleNotFound)

	h.router = r
	return h, nil
}

// ServeHTTP implements the http.Handler interface for HTTPHandler.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *HTTPHandler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.logAndReturnError(w, r, &apiError{
		status:  http.StatusNotFound,
		kind:    kindNotFound,
		message: "Route " + r.Method + " " + r.URL.Path + " not found",
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "OK",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		PromptVersion: extract.PromptVersion,
	})
}

func (h *HTTPHandler) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.docs)
}
