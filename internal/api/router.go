package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get(s.wsCfg.Path, s.bridge.Hub().ServeHTTP)
	r.Get("/healthz", s.handleHealth)

	if s.metrics.Enabled {
		r.Handle(s.metrics.Path, promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", s.handleListParameters)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetParameter)
				r.Put("/", s.handleSetParameter)
				r.Get("/leds", s.handleGetLEDs)
			})
		})
	})

	return r
}
