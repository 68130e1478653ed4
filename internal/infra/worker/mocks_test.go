package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

type memJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.InvoiceJob
	audit []string
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
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.InvoiceJob
	for _, job := range m.store {
		if job.Status != model.InvoiceJobStatusPending || job.NextRunAt.After(now) {
			continue
		}
		if oldest == nil || job.NextRunAt.Before(oldest.NextRunAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = model.InvoiceJobStatusProcessing
	oldest.UpdatedAt = time.Now()
	cp := *oldest
	return &cp, nil
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
			if job.NextRunAt.After(now) {
				st.Delayed++
			} else {
				st.Waiting++
			}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, job.ID)
	return nil
}

type memPaymentRepo struct {
	mu    sync.Mutex
	store map[string]*model.Payment
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
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, gatewayPaymentID, signature string, completedAt time.Time) error {
	return nil
}

func (m *memPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) error {
	return nil
}

func (m *memPaymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string, amountMinor int64, reason string, refundedAt time.Time) error {
	return nil
}

func (m *memPaymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, paymentID, invoiceID string) error {
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	return nil, nil
}

func (m *memPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	return 0, nil
}

// fakeInvoiceUC counts generation calls and fails the first failFirst
// of them.
type fakeInvoiceUC struct {
	mu        sync.Mutex
	calls     int
	failFirst int
}

func (f *fakeInvoiceUC) Generate(ctx context.Context, payment *model.Payment, payload *model.InvoiceJobPayload) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return nil, fmt.Errorf("renderer down")
	}
	return &model.Invoice{ID: "inv-" + payment.ID, PaymentID: payment.ID}, nil
}

func (f *fakeInvoiceUC) Get(ctx context.Context, id string) (*model.Invoice, error) {
	return nil, domain.ErrNotFound
}
