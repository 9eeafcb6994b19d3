package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-max-bridge/internal/usecase"
)

type Server struct {
	dispatchUC usecase.DispatchUseCase
	ledgerUC   usecase.PostLedgerUseCase
	limiterUC  usecase.RateLimiterUseCase
	userUC     usecase.UserUseCase
	connUC     usecase.SourceConnectionUseCase
	chanUC     usecase.DestinationChannelUseCase
	linkUC     usecase.LinkUseCase
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	dispatchUC usecase.DispatchUseCase,
	ledgerUC usecase.PostLedgerUseCase,
	limiterUC usecase.RateLimiterUseCase,
	userUC usecase.UserUseCase,
	connUC usecase.SourceConnectionUseCase,
	chanUC usecase.DestinationChannelUseCase,
	linkUC usecase.LinkUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		dispatchUC: dispatchUC,
		ledgerUC:   ledgerUC,
		limiterUC:  limiterUC,
		userUC:     userUC,
		connUC:     connUC,
		chanUC:     chanUC,
		linkUC:     linkUC,
		auth:       auth,
		log:        logger,
	}
}

// Router builds the full route tree: the provider-facing webhook endpoints,
// the tenant-facing management API and the operational endpoints.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Provider-facing. No auth middleware: the webhook identifier in the
	// path is itself the bearer capability.
	r.Route("/webhook/telegram/{webhookID}", func(r chi.Router) {
		r.Post("/", s.handleWebhook)
		r.Get("/health", s.handleWebhookHealth)
	})

	// Tenant-facing management API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/session", s.handleOpenSession)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/me", s.handleMe)
			r.Get("/limits", s.handleGetLimits)
			r.Put("/limits", s.handleSetLimits)

			r.Route("/connections", func(r chi.Router) {
				r.Post("/", s.handleCreateConnection)
				r.Get("/", s.handleListConnections)
				r.Get("/{id}", s.handleGetConnection)
				r.Get("/{id}/webhook-status", s.handleWebhookStatus)
				r.Delete("/{id}", s.handleDeleteConnection)
			})
			r.Route("/channels", func(r chi.Router) {
				r.Post("/", s.handleCreateChannel)
				r.Get("/", s.handleListChannels)
				r.Get("/{id}", s.handleGetChannel)
				r.Delete("/{id}", s.handleDeleteChannel)
			})
			r.Route("/links", func(r chi.Router) {
				r.Post("/", s.handleCreateLink)
				r.Get("/", s.handleListLinks)
				r.Get("/{id}", s.handleGetLink)
				r.Get("/{id}/history", s.handleLinkHistory)
				r.Delete("/{id}", s.handleDeleteLink)
			})
		})
	})

	// Operational endpoints.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
