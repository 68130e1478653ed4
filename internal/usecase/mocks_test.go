package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
)

// --- in-memory repositories used by unit tests ---

type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment // by id
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, gatewayPaymentID, signature string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return domain.ErrConflict
	}
	p.Status = model.PaymentStatusCompleted
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature
	ca := completedAt
	p.CompletedAt = &ca
	p.UpdatedAt = completedAt
	return nil
}

func (m *memPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return domain.ErrConflict
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = &reason
	return nil
}

func (m *memPaymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string, amountMinor int64, reason string, refundedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusCompleted {
		return domain.ErrConflict
	}
	p.Status = model.PaymentStatusRefunded
	p.RefundAmount = &amountMinor
	p.RefundReason = &reason
	at := refundedAt
	p.RefundedAt = &at
	return nil
}

func (m *memPaymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, paymentID, invoiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	id := invoiceID
	p.InvoiceID = &id
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusCompleted {
			sum += p.AmountMinor
		}
	}
	return sum, nil
}

type memInvoiceRepo struct {
	mu    sync.Mutex
	store map[string]*model.Invoice // by id
	seqs  map[string]int64         // "year-month" -> last value
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{store: make(map[string]*model.Invoice), seqs: make(map[string]int64)}
}

func (m *memInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.store[inv.ID] = &cp
	return nil
}

func (m *memInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.store {
		if inv.PaymentID == paymentID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memInvoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, year int, month time.Month) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d-%d", year, month)
	m.seqs[key]++
	return m.seqs[key], nil
}

func (m *memInvoiceRepo) ListIssuedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Invoice
	for _, inv := range m.store {
		if inv.Status == model.InvoiceStatusIssued && inv.ArchivedAt == nil && inv.GeneratedAt.Before(cutoff) {
			cp := *inv
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memInvoiceRepo) MarkArchived(ctx context.Context, tx repository.Tx, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if inv, ok := m.store[id]; ok {
			t := at
			inv.ArchivedAt = &t
		}
	}
	return nil
}

type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.MembershipPlan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{store: make(map[string]*model.MembershipPlan)}
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.MembershipPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *plan
	m.store[plan.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.MembershipPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.MembershipPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.MembershipPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.MembershipPlan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memMembershipRepo struct {
	mu    sync.RWMutex
	store map[string]*model.UserMembership
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{store: make(map[string]*model.UserMembership)}
}

func (m *memMembershipRepo) Save(ctx context.Context, tx repository.Tx, um *model.UserMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *um
	m.store[um.ID] = &cp
	return nil
}

func (m *memMembershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserMembership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	um, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *um
	return &cp, nil
}

func (m *memMembershipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserMembership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, um := range m.store {
		if um.UserID == userID && um.Status == model.MembershipStatusActive {
			cp := *um
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMembershipRepo) Cancel(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	um, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if um.Status != model.MembershipStatusActive {
		return domain.ErrConflict
	}
	um.Status = model.MembershipStatusCancelled
	um.UpdatedAt = at
	return nil
}

type memDiscountRepo struct {
	mu    sync.Mutex
	store map[string]*model.DiscountCode // by id
}

func newMemDiscountRepo() *memDiscountRepo {
	return &memDiscountRepo{store: make(map[string]*model.DiscountCode)}
}

func (m *memDiscountRepo) Save(ctx context.Context, tx repository.Tx, d *model.DiscountCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *memDiscountRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.store {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memDiscountRepo) IncrementUses(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.MaxUses != nil && d.CurrentUses >= *d.MaxUses {
		return domain.ErrDiscountExhausted
	}
	d.CurrentUses++
	return nil
}

// --- fakes for adapters and infrastructure ---

// fakeGateway implements adapter.PaymentGateway with a deterministic HMAC
// secret so tests can mint valid signatures.
type fakeGateway struct {
	mu        sync.Mutex
	orders    int
	failOrder bool
	failRef   bool
}

func (g *fakeGateway) Name() model.GatewayKind { return model.GatewayNoop }

func (g *fakeGateway) CreateOrder(ctx context.Context, intent *model.PaymentIntent) (*adapter.GatewayOrder, error) {
	if g.failOrder {
		return nil, fmt.Errorf("simulated gateway outage")
	}
	g.mu.Lock()
	g.orders++
	n := g.orders
	g.mu.Unlock()
	return &adapter.GatewayOrder{
		OrderID:     fmt.Sprintf("order_%04d", n),
		AmountMinor: intent.AmountMinor,
		Currency:    intent.Currency,
		Handle:      "fake",
	}, nil
}

func (g *fakeGateway) sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte("fake-secret"))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(g.sign(orderID, paymentID)), []byte(signature))
}

func (g *fakeGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, reason string) (*adapter.GatewayRefund, error) {
	if g.failRef {
		return nil, fmt.Errorf("simulated refund failure")
	}
	return &adapter.GatewayRefund{RefundID: "rfnd_fake", AmountMinor: amountMinor, Status: "processed"}, nil
}

func (g *fakeGateway) FetchStatus(ctx context.Context, gatewayPaymentID string) (*adapter.GatewayStatus, error) {
	return &adapter.GatewayStatus{PaymentID: gatewayPaymentID, Status: "captured"}, nil
}

// fakeQueue records enqueued payments; optionally failing to let tests
// assert the payment stays completed.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	fail     bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, p *model.Payment) error {
	if q.fail {
		return fmt.Errorf("queue unavailable")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, p.ID)
	return nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders int
	fail    bool
}

func (r *fakeRenderer) Render(ctx context.Context, name string, layout *adapter.DocumentLayout) (string, error) {
	if r.fail {
		return "", fmt.Errorf("renderer down")
	}
	r.mu.Lock()
	r.renders++
	r.mu.Unlock()
	return "data/invoices/" + name + ".pdf", nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*adapter.Notification
	fail bool
}

func (n *fakeNotifier) Send(ctx context.Context, msg *adapter.Notification) error {
	if n.fail {
		return fmt.Errorf("sink unreachable")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

// fakeTM executes the callback without a real transaction.
type fakeTM struct{}

func (fakeTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
