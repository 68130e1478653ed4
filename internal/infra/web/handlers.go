package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
)

// handleRetry re-arms the invoice job for a payment. Path:
// /admin/invoices/retry/{paymentID}
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paymentID := pathTail(r, "/admin/invoices/retry/")
	if paymentID == "" {
		http.Error(w, "Missing payment id", http.StatusBadRequest)
		return
	}

	if err := s.queue.Retry(r.Context(), paymentID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "Payment not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Payment is not invoiceable", http.StatusBadRequest)
		case errors.Is(err, domain.ErrConflict):
			http.Error(w, "Invoice already issued", http.StatusConflict)
		default:
			s.log.Error().Err(err).Str("payment_id", paymentID).Msg("manual retry failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	s.log.Info().Str("payment_id", paymentID).Msg("invoice job re-armed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// handleBatchRetry re-arms the jobs for the payment ids listed in the
// request body, at most 50 per call.
func (s *Server) handleBatchRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PaymentIDs []string `json:"payment_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	n, err := s.queue.BatchRetry(r.Context(), req.PaymentIDs)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, "No payment ids given", http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Msg("batch retry failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"retried": n})
}

func (s *Server) handleListFailed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	jobs, err := s.queue.ListFailed(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed jobs listing failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobJSON(j))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("queue stats failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"waiting":   stats.Waiting,
		"active":    stats.Active,
		"completed": stats.Completed,
		"failed":    stats.Failed,
		"delayed":   stats.Delayed,
	})
}

// handleRevenue reports completed-payment totals for the rolling
// week, month and year buckets.
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := map[string]int64{}
	for _, period := range []string{"week", "month", "year"} {
		sum, err := s.payments.SumCompletedByPeriod(ctx, period)
		if err != nil {
			s.log.Error().Err(err).Str("period", period).Msg("revenue query failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		out[period] = sum
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"revenue_minor": out})
}

func jobJSON(j *model.InvoiceJob) map[string]interface{} {
	return map[string]interface{}{
		"id":           j.ID,
		"payment_id":   j.PaymentID,
		"status":       string(j.Status),
		"attempts":     j.Attempts,
		"max_attempts": j.MaxAttempts,
		"last_error":   j.LastError,
		"next_run_at":  j.NextRunAt,
		"updated_at":   j.UpdatedAt,
	}
}
