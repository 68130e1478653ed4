package api_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: map[string]*model.Payment{}}
}

func (r *memPaymentRepo) Save(_ context.Context, _ repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) FindByGatewayOrderID(_ context.Context, _ repository.Tx, orderID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPaymentRepo) MarkCompleted(_ context.Context, _ repository.Tx, id, gatewayPaymentID, signature string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return domain.ErrConflict
	}
	p.Status = model.PaymentStatusCompleted
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature
	p.CompletedAt = &completedAt
	return nil
}

func (r *memPaymentRepo) MarkFailed(_ context.Context, _ repository.Tx, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
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

func (r *memPaymentRepo) MarkRefunded(_ context.Context, _ repository.Tx, id string, amountMinor int64, reason string, refundedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusCompleted {
		return domain.ErrConflict
	}
	p.Status = model.PaymentStatusRefunded
	p.RefundAmount = &amountMinor
	p.RefundReason = &reason
	p.RefundedAt = &refundedAt
	return nil
}

func (r *memPaymentRepo) SetInvoiceID(_ context.Context, _ repository.Tx, paymentID, invoiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	p.InvoiceID = &invoiceID
	return nil
}

func (r *memPaymentRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	return nil, nil
}

func (r *memPaymentRepo) SumCompletedByPeriod(_ context.Context, _ repository.Tx, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.payments {
		if p.Status == model.PaymentStatusCompleted {
			sum += p.AmountMinor
		}
	}
	return sum, nil
}

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.MembershipPlan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: map[string]*model.MembershipPlan{}}
}

func (r *memPlanRepo) Save(_ context.Context, _ repository.Tx, p *model.MembershipPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *memPlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.MembershipPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPlanRepo) FindBySlug(_ context.Context, _ repository.Tx, slug string) (*model.MembershipPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPlanRepo) ListActive(_ context.Context, _ repository.Tx) ([]*model.MembershipPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.MembershipPlan
	for _, p := range r.plans {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memMembershipRepo struct {
	mu          sync.Mutex
	memberships map[string]*model.UserMembership
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{memberships: map[string]*model.UserMembership{}}
}

func (r *memMembershipRepo) Save(_ context.Context, _ repository.Tx, m *model.UserMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.memberships[m.ID] = &cp
	return nil
}

func (r *memMembershipRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.UserMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memMembershipRepo) FindActiveByUser(_ context.Context, _ repository.Tx, userID string) (*model.UserMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.UserID == userID && m.Status == model.MembershipStatusActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memMembershipRepo) Cancel(_ context.Context, _ repository.Tx, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status != model.MembershipStatusActive {
		return domain.ErrConflict
	}
	m.Status = model.MembershipStatusCancelled
	m.UpdatedAt = at
	return nil
}

type memDiscountRepo struct {
	mu    sync.Mutex
	codes map[string]*model.DiscountCode
}

func newMemDiscountRepo() *memDiscountRepo {
	return &memDiscountRepo{codes: map[string]*model.DiscountCode{}}
}

func (r *memDiscountRepo) Save(_ context.Context, _ repository.Tx, d *model.DiscountCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.codes[d.ID] = &cp
	return nil
}

func (r *memDiscountRepo) FindByCode(_ context.Context, _ repository.Tx, code string) (*model.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.codes {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memDiscountRepo) IncrementUses(_ context.Context, _ repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.codes[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.MaxUses != nil && d.CurrentUses >= *d.MaxUses {
		return domain.ErrDiscountExhausted
	}
	d.CurrentUses++
	return nil
}

type fakeTM struct{}

func (fakeTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
}

func (q *fakeQueue) Enqueue(_ context.Context, p *model.Payment) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, p.ID)
	return nil
}

// fakeRedis backs the rate limiter in webhook tests.
type fakeRedis struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Time{}}
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, _ time.Duration) error {
	return nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) { return "", nil }

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = time.Now().Add(d)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.counts, k)
	}
	return nil
}

func (f *fakeRedis) Close() error { return nil }
