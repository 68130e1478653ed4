package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/usecase"
)

// InvoiceQueueAdmin is the slice of the job queue the admin surface
// operates on.
type InvoiceQueueAdmin interface {
	Retry(ctx context.Context, paymentID string) error
	BatchRetry(ctx context.Context, paymentIDs []string) (int, error)
	ListFailed(ctx context.Context, limit int) ([]*model.InvoiceJob, error)
	Stats(ctx context.Context) (*repository.QueueStats, error)
}

// Server is the operator-facing surface: queue inspection, manual
// retries, revenue totals and Prometheus metrics. It listens on the
// admin port, never the public one.
type Server struct {
	queue    InvoiceQueueAdmin
	payments usecase.PaymentUseCase
	auth     *AuthManager
	cfg      *config.AdminConfig
	log      *zerolog.Logger
}

func NewServer(
	queue InvoiceQueueAdmin,
	payments usecase.PaymentUseCase,
	cfg *config.AdminConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminWeb").Logger()
	return &Server{
		queue:    queue,
		payments: payments,
		auth:     NewAuthManager(cfg.JWTSecret, cfg.SessionTTL, cfg.SecureCookie),
		cfg:      cfg,
		log:      &l,
	}
}

// RegisterRoutes attaches the admin handlers to the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/login", s.handleLogin)
	mux.HandleFunc("/admin/logout", s.handleLogout)

	mux.Handle("/admin/invoices/retry/", s.authMiddleware(http.HandlerFunc(s.handleRetry)))
	mux.Handle("/admin/invoices/retry-batch", s.authMiddleware(http.HandlerFunc(s.handleBatchRetry)))
	mux.Handle("/admin/invoices/failed", s.authMiddleware(http.HandlerFunc(s.handleListFailed)))
	mux.Handle("/admin/queue/stats", s.authMiddleware(http.HandlerFunc(s.handleQueueStats)))
	mux.Handle("/admin/revenue", s.authMiddleware(http.HandlerFunc(s.handleRevenue)))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.cfg.JWTSecret) == 0 {
			s.log.Error().Msg("admin JWT secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Role != "admin" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// handleLogin exchanges the configured API key for a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.APIKey == "" {
		s.log.Error().Msg("admin API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.cfg.APIKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("session mint failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// pathTail returns the path segment after the given prefix, or "".
func pathTail(r *http.Request, prefix string) string {
	tail := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.TrimSuffix(tail, "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
