package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/infra/redis"
	"dealflow-billing/internal/usecase"
)

// Server is the public HTTP surface: payment orders, verification,
// refunds, memberships, discount previews and gateway webhooks.
type Server struct {
	payments  usecase.PaymentUseCase
	members   usecase.MembershipUseCase
	discounts usecase.DiscountUseCase
	plans     repository.MembershipPlanRepository
	limiter   *redis.RateLimiter
	payCfg    *config.PaymentConfig
	log       *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentUseCase,
	members usecase.MembershipUseCase,
	discounts usecase.DiscountUseCase,
	plans repository.MembershipPlanRepository,
	limiter *redis.RateLimiter,
	payCfg *config.PaymentConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "API").Logger()
	return &Server{
		payments:  payments,
		members:   members,
		discounts: discounts,
		plans:     plans,
		limiter:   limiter,
		payCfg:    payCfg,
		log:       &l,
	}
}

// Routes builds the public router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)
		r.Post("/payments/orders", s.handleCreateOrder)
		r.Post("/payments/verify", s.handleVerify)
		r.Post("/payments/{id}/refund", s.handleRefund)
		r.Get("/payments/{id}", s.handleGetPayment)
		r.Post("/memberships/subscribe", s.handleSubscribe)
		r.Post("/memberships/change-plan", s.handleChangePlan)
		r.Post("/discounts/preview", s.handleDiscountPreview)
	})

	r.Post("/webhooks/{gateway}", s.handleWebhook)

	return r
}
