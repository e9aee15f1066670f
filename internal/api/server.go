package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/internal/campaign"
	"github.com/beacon-checkin/beacon-checkin-server/internal/config"
	"github.com/beacon-checkin/beacon-checkin-server/internal/scan"
	"github.com/beacon-checkin/beacon-checkin-server/internal/storage"
)

// RESTServer is the operational REST surface: scanner control, registry
// inspection and the detection log.
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	session   *scan.Session
	evaluator *campaign.Evaluator
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, session *scan.Session, evaluator *campaign.Evaluator) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		session:   session,
		evaluator: evaluator,
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)

		r.Route("/scanner", func(r chi.Router) {
			r.Get("/", s.HandleScannerStatus)
			r.Post("/start", s.HandleScannerStart)
			r.Post("/stop", s.HandleScannerStop)
		})

		r.Get("/beacons", s.HandleListBeacons)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.HandleListCampaigns)
			r.Get("/{id}/eligibility", s.HandleCampaignEligibility)
		})

		r.Get("/detections", s.HandleListDetections)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
