package web_test

import (
	"context"
	"sync"
	"time"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
	"dealflow-billing/internal/usecase"
)

type fakeQueue struct {
	mu      sync.Mutex
	jobs    map[string]*model.InvoiceJob // keyed by payment id
	retried []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]*model.InvoiceJob{}}
}

func (q *fakeQueue) addFailed(paymentID string, attempts int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	q.jobs[paymentID] = &model.InvoiceJob{
		ID:          model.InvoiceJobID(paymentID),
		PaymentID:   paymentID,
		Status:      model.InvoiceJobStatusFailed,
		Attempts:    attempts,
		MaxAttempts: 3,
		LastError:   "render failed",
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (q *fakeQueue) Retry(_ context.Context, paymentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status == model.InvoiceJobStatusCompleted {
		return domain.ErrConflict
	}
	j.Status = model.InvoiceJobStatusPending
	j.Attempts = 0
	q.retried = append(q.retried, paymentID)
	return nil
}

func (q *fakeQueue) BatchRetry(ctx context.Context, paymentIDs []string) (int, error) {
	if len(paymentIDs) == 0 {
		return 0, domain.ErrInvalidArgument
	}
	n := 0
	for _, id := range paymentIDs {
		if err := q.Retry(ctx, id); err == nil {
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) ListFailed(_ context.Context, limit int) ([]*model.InvoiceJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*model.InvoiceJob
	for _, j := range q.jobs {
		if j.Status == model.InvoiceJobStatusFailed && len(out) < limit {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (q *fakeQueue) Stats(_ context.Context) (*repository.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := &repository.QueueStats{}
	for _, j := range q.jobs {
		switch j.Status {
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

// fakePaymentUC serves only the revenue endpoint.
type fakePaymentUC struct {
	revenue map[string]int64
}

var _ usecase.PaymentUseCase = (*fakePaymentUC)(nil)

func (f *fakePaymentUC) CreateOrder(context.Context, *model.PaymentIntent) (*model.Payment, *adapter.GatewayOrder, error) {
	return nil, nil, domain.ErrOperationFailed
}

func (f *fakePaymentUC) VerifyAndComplete(context.Context, string, string, string, string) (*usecase.VerifyResult, error) {
	return nil, domain.ErrOperationFailed
}

func (f *fakePaymentUC) Refund(context.Context, string, bool, string, int64, string) (*model.Payment, error) {
	return nil, domain.ErrOperationFailed
}

func (f *fakePaymentUC) Get(context.Context, string) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}

func (f *fakePaymentUC) SumCompletedByPeriod(_ context.Context, period string) (int64, error) {
	return f.revenue[period], nil
}
