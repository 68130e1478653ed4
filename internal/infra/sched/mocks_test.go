package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
)

type memInvoiceRepo struct {
	mu    sync.Mutex
	store map[string]*model.Invoice
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{store: make(map[string]*model.Invoice)}
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
	return nil, domain.ErrNotFound
}

func (m *memInvoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, year int, month time.Month) (int64, error) {
	return 0, domain.ErrOperationFailed
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

type memJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.InvoiceJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.InvoiceJob)}
}

func (m *memJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.InvoiceJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.InvoiceJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.InvoiceJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memJobRepo) FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.InvoiceJob, error) {
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) ReclaimStale(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, job := range m.store {
		if job.Status == model.InvoiceJobStatusProcessing && job.UpdatedAt.Before(cutoff) {
			job.Status = model.InvoiceJobStatusPending
			job.NextRunAt = time.Now()
			job.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *memJobRepo) ListFailed(ctx context.Context, tx repository.Tx, limit int) ([]*model.InvoiceJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.InvoiceJob
	for _, job := range m.store {
		if job.Status == model.InvoiceJobStatusFailed {
			cp := *job
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memJobRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (*repository.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &repository.QueueStats{}
	for _, job := range m.store {
		switch job.Status {
		case model.InvoiceJobStatusPending:
			st.Waiting++
		case model.InvoiceJobStatusProcessing:
			st.Active++
		case model.InvoiceJobStatusCompleted:
			st.Completed++
		case model.InvoiceJobStatusFailed:
			st.Failed++
		}
	}
	return st, nil
}

func (m *memJobRepo) RecordAudit(ctx context.Context, tx repository.Tx, job *model.InvoiceJob, at time.Time) error {
	return nil
}

type fakeArchiver struct {
	mu      sync.Mutex
	bundles [][]string
	pruned  int
	fail    bool
}

func (a *fakeArchiver) Bundle(ctx context.Context, name string, files []string) (*adapter.BundleInfo, error) {
	if a.fail {
		return nil, fmt.Errorf("bundle write failed")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bundles = append(a.bundles, files)
	return &adapter.BundleInfo{Path: "archive/" + name + ".tar.gz", Files: len(files), CreatedAt: time.Now()}, nil
}

func (a *fakeArchiver) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pruned, nil
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

// fakeRedis implements just enough of the redis client for throttling.
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]bool)}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = true
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.keys, k)
	}
	return nil
}

func (f *fakeRedis) Close() error { return nil }

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
	return domain.ErrOperationFailed
}

func (r *memPaymentRepo) SetInvoiceID(_ context.Context, _ repository.Tx, paymentID, invoiceID string) error {
	return nil
}

func (r *memPaymentRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) SumCompletedByPeriod(_ context.Context, _ repository.Tx, _ string) (int64, error) {
	return 0, nil
}

// fakeGateway answers status fetches from a canned map.
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]string // order id -> status
	fetched  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]string{}}
}

func (g *fakeGateway) Name() model.GatewayKind { return model.GatewayNoop }

func (g *fakeGateway) CreateOrder(context.Context, *model.PaymentIntent) (*adapter.GatewayOrder, error) {
	return nil, domain.ErrOperationFailed
}

func (g *fakeGateway) VerifySignature(string, string, string) bool { return false }

func (g *fakeGateway) Refund(context.Context, string, int64, string) (*adapter.GatewayRefund, error) {
	return nil, domain.ErrOperationFailed
}

func (g *fakeGateway) FetchStatus(_ context.Context, id string) (*adapter.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, id)
	st, ok := g.statuses[id]
	if !ok {
		return nil, domain.ErrGatewayFailure
	}
	return &adapter.GatewayStatus{PaymentID: id, Status: st}, nil
}
