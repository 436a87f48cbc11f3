package web

import (
	"net/http"
	"time"

	"wisestudent-purchase/internal/domain/ports/repository"
	"wisestudent-purchase/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the purchase API: begin/verify/cancel/resume over JSON,
// the gateway webhook, and the activation websocket stream.
type Server struct {
	purchaseUC usecase.PurchaseUseCase
	verifyUC   usecase.VerificationUseCase
	cancelUC   usecase.CancellationUseCase
	plans      repository.PlanRepository

	webhook *WebhookHandler
	hub     *StreamHub
	auth    *AuthManager

	requestTimeout time.Duration
	log            *zerolog.Logger
}

func NewServer(
	purchaseUC usecase.PurchaseUseCase,
	verifyUC usecase.VerificationUseCase,
	cancelUC usecase.CancellationUseCase,
	plans repository.PlanRepository,
	webhook *WebhookHandler,
	hub *StreamHub,
	auth *AuthManager,
	requestTimeout time.Duration,
	logger *zerolog.Logger,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Server{
		purchaseUC:     purchaseUC,
		verifyUC:       verifyUC,
		cancelUC:       cancelUC,
		plans:          plans,
		webhook:        webhook,
		hub:            hub,
		auth:           auth,
		requestTimeout: requestTimeout,
		log:            logger,
	}
}

// Router builds the full route table. The stream endpoint skips the
// request timeout since websocket connections are long-lived.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.With(s.timed).Get("/api/v1/plans", s.handlePlans)

	r.Route("/api/v1/purchase", func(api chi.Router) {
		api.Use(s.timed)
		api.Post("/", s.handleBegin)
		api.Get("/resume", s.handleResume)
		api.Get("/{id}", s.handleGet)
		api.Post("/{id}/verify", s.handleVerify)
		api.Post("/{id}/cancel", s.handleCancel)
	})

	r.With(s.timed).Post("/webhook/gateway", s.webhook.Handle)
	r.Get("/api/v1/activations/stream", s.handleStream)

	return r
}

// Handler wraps the router with the outer middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(s.Router(),
		Recover(s.log),
		TraceID(),
		RequestLog(s.log),
	)
}

func (s *Server) timed(next http.Handler) http.Handler {
	return Timeout(s.requestTimeout)(next)
}
