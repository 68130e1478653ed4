package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/infra/metrics"
)

type orderCreateRequest struct {
	UserID      string                 `json:"user_id"`
	AmountMinor int64                  `json:"amount_minor"`
	Currency    string                 `json:"currency"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Meta        map[string]interface{} `json:"meta"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	intent := &model.PaymentIntent{
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Description: req.Description,
		UserID:      req.UserID,
		Type:        model.PaymentType(req.Type),
		Meta:        req.Meta,
	}
	p, order, err := s.payments.CreateOrder(r.Context(), intent)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncPayment("created")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment_id":   p.ID,
		"order_id":     order.OrderID,
		"amount_minor": order.AmountMinor,
		"currency":     order.Currency,
		"handle":       order.Handle,
	})
}

type verifyRequest struct {
	UserID           string `json:"user_id"`
	OrderID          string `json:"order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if req.OrderID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	res, err := s.payments.VerifyAndComplete(r.Context(), req.UserID, req.OrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		metrics.IncVerify("error")
		writeError(w, err)
		return
	}

	if !res.Verified {
		metrics.IncVerify("rejected")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"verified": false,
			"reason":   res.Reason,
			"payment":  paymentJSON(res.Payment),
		})
		return
	}

	metrics.IncVerify("ok")
	metrics.IncPayment("completed")
	metrics.AddPaymentRevenue(res.Payment.Currency, res.Payment.AmountMinor)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified": true,
		"payment":  paymentJSON(res.Payment),
	})
}

type refundRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	p, err := s.payments.Refund(r.Context(), req.UserID, false, id, req.AmountMinor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncRefund(string(p.Gateway))
	metrics.IncPayment("refunded")

	writeJSON(w, http.StatusOK, paymentJSON(p))
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentJSON(p))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.ListActive(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(plans))
	for _, p := range plans {
		out = append(out, map[string]interface{}{
			"id":          p.ID,
			"name":        p.Name,
			"slug":        p.Slug,
			"price_minor": p.PriceMinor,
			"currency":    p.Currency,
			"cycle":       string(p.Cycle),
			"features":    p.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": out})
}

type subscribeRequest struct {
	UserID       string `json:"user_id"`
	PlanID       string `json:"plan_id"`
	DiscountCode string `json:"discount_code"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	m, err := s.members.Subscribe(r.Context(), req.UserID, req.PlanID, req.DiscountCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membershipJSON(m))
}

type changePlanRequest struct {
	UserID string `json:"user_id"`
	PlanID string `json:"plan_id"`
}

func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var req changePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	m, pro, err := s.members.ChangePlan(r.Context(), req.UserID, req.PlanID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"membership": membershipJSON(m),
		"proration": map[string]interface{}{
			"kind":           string(pro.Kind),
			"total_days":     pro.TotalDays,
			"remaining_days": pro.RemainingDays,
			"credit_minor":   pro.Credit,
			"charge_minor":   pro.ChargeMinor,
		},
	})
}

type discountPreviewRequest struct {
	Code   string `json:"code"`
	PlanID string `json:"plan_id"`
}

func (s *Server) handleDiscountPreview(w http.ResponseWriter, r *http.Request) {
	var req discountPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	plan, err := s.plans.FindByID(r.Context(), nil, req.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.discounts.Evaluate(r.Context(), req.Code, plan.ID, plan.PriceMinor, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":              res.Code.Code,
		"price_minor":       plan.PriceMinor,
		"discount_minor":    res.DiscountMinor,
		"final_price_minor": res.FinalPriceMinor,
	})
}

func paymentJSON(p *model.Payment) map[string]interface{} {
	out := map[string]interface{}{
		"id":           p.ID,
		"user_id":      p.UserID,
		"amount_minor": p.AmountMinor,
		"currency":     p.Currency,
		"gateway":      string(p.Gateway),
		"status":       string(p.Status),
		"type":         string(p.Type),
		"order_id":     p.GatewayOrderID,
		"created_at":   p.CreatedAt,
	}
	if p.FailureReason != nil {
		out["failure_reason"] = *p.FailureReason
	}
	if p.RefundAmount != nil {
		out["refund_amount_minor"] = *p.RefundAmount
	}
	if p.InvoiceID != nil {
		out["invoice_id"] = *p.InvoiceID
	}
	return out
}

func membershipJSON(m *model.UserMembership) map[string]interface{} {
	out := map[string]interface{}{
		"id":       m.ID,
		"user_id":  m.UserID,
		"plan_id":  m.PlanID,
		"status":   string(m.Status),
		"start_at": m.StartAt,
		"end_at":   m.EndAt,
	}
	if m.ProratedMinor != nil {
		out["prorated_minor"] = *m.ProratedMinor
	}
	return out
}
