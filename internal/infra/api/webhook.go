package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dealflow-billing/internal/infra/metrics"
	"dealflow-billing/internal/infra/payment"
	"dealflow-billing/internal/infra/redis"
)

const (
	webhookRateLimit  = 60
	webhookRateWindow = time.Minute
	webhookMaxBody    = 1 << 20
)

// webhookEvent is the common shape of a provider's payment notification.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	} `json:"payload"`
}

// handleWebhook processes gateway callbacks. The raw body HMAC is checked
// before anything is parsed; authenticated events then go through the same
// verification path as client-initiated confirmations, so a missed client
// callback is healed by the provider's own notification.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	gw := chi.URLParam(r, "gateway")

	var secret, sigHeader string
	switch gw {
	case "razorpay":
		secret, sigHeader = s.payCfg.Razorpay.WebhookSecret, "X-Razorpay-Signature"
	case "stripe":
		secret, sigHeader = s.payCfg.Stripe.WebhookSecret, "Stripe-Signature"
	default:
		metrics.IncWebhook(gw, "unknown_gateway")
		http.NotFound(w, r)
		return
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), redis.WebhookKey(gw, r.RemoteAddr), webhookRateLimit, webhookRateWindow)
		if err != nil {
			// Rate limiting is protective, not authoritative; a broken
			// limiter must not drop provider notifications.
			s.log.Warn().Err(err).Str("gateway", gw).Msg("webhook rate limiter unavailable")
		} else if !ok {
			metrics.IncWebhook(gw, "rate_limited")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBody))
	if err != nil {
		metrics.IncWebhook(gw, "invalid")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !payment.VerifyWebhookBody(secret, body, r.Header.Get(sigHeader)) {
		metrics.IncWebhook(gw, "bad_signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Payload.OrderID == "" {
		metrics.IncWebhook(gw, "invalid")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := s.payments.VerifyAndComplete(r.Context(), "", ev.Payload.OrderID, ev.Payload.PaymentID, ev.Payload.Signature)
	if err != nil {
		metrics.IncWebhook(gw, "error")
		// Unknown orders map to 404 and stop provider retries; transient
		// failures map to 5xx so the provider retries later.
		writeError(w, err)
		return
	}

	if !res.Verified {
		metrics.IncWebhook(gw, "rejected")
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "rejected", "reason": res.Reason})
		return
	}

	metrics.IncWebhook(gw, "accepted")
	s.log.Info().Str("gateway", gw).Str("event", ev.Event).
		Str("order_id", ev.Payload.OrderID).Msg("webhook processed")
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
