package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	"rentalstation/internal/events"
	"rentalstation/internal/repository"
)

// memStore is an in-memory RentalStore with the same optimistic commit rules as the DynamoDB store:
// every item read through a txn must still carry the version it was read at, and a payment key can
// be recorded only once.
type memStore struct {
	mu       sync.Mutex
	items    map[string]db.RentalItem
	payments map[string]db.RentalPayment
	outbox   map[string]db.OutboxEvent

	maxAttempts int
	txRuns      int
	// beforeCommit runs between the body and the commit of each attempt.
	beforeCommit func(attempt int)
	getItemErr   error
}

func newMemStore(items ...db.RentalItem) *memStore {
	s := &memStore{
		items:       map[string]db.RentalItem{},
		payments:    map[string]db.RentalPayment{},
		outbox:      map[string]db.OutboxEvent{},
		maxAttempts: 5,
	}
	for _, it := range items {
		s.items[it.Token] = it
	}
	return s
}

func (s *memStore) item(token string) db.RentalItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[token]
}

func (s *memStore) setItem(it db.RentalItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.Token] = it
}

func (s *memStore) paymentList() []db.RentalPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.RentalPayment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

func (s *memStore) event(id string) db.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbox[id]
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

func (s *memStore) GetItem(ctx context.Context, token string) (*db.RentalItem, error) {
	if s.getItemErr != nil {
		return nil, s.getItemErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (s *memStore) GetPaymentByKey(ctx context.Context, paymentKey string) (*db.RentalPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.paymentByKeyLocked(paymentKey); ok {
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) paymentByKeyLocked(paymentKey string) (db.RentalPayment, bool) {
	for _, p := range s.payments {
		if paymentKey != "" && p.PaymentKey == paymentKey {
			return p, true
		}
	}
	return db.RentalPayment{}, false
}

// addPayment records a payment as if another request had committed it.
func (s *memStore) addPayment(p db.RentalPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *memStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.RentalTxn) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.mu.Lock()
		s.txRuns++
		s.mu.Unlock()

		tx := &memTxn{store: s, reads: map[string]int64{}}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if s.beforeCommit != nil {
			s.beforeCommit(attempt)
		}
		if s.commit(tx) {
			return nil
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", repository.ErrTxConflict, s.maxAttempts)
}

func (s *memStore) commit(tx *memTxn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, version := range tx.reads {
		if s.items[token].Version != version {
			return false
		}
	}
	for _, p := range tx.payments {
		if _, taken := s.paymentByKeyLocked(p.PaymentKey); taken {
			return false
		}
	}
	for _, u := range tx.updates {
		it := s.items[u.token]
		it.Status = u.status
		it.Version++
		s.items[u.token] = it
	}
	for _, p := range tx.payments {
		s.payments[p.ID] = p
	}
	for _, e := range tx.events {
		s.outbox[e.ID] = e
	}
	return true
}

func (s *memStore) CreateItem(ctx context.Context, item db.RentalItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.Token]; ok {
		return repository.ErrDuplicate
	}
	s.items[item.Token] = item
	return nil
}

func (s *memStore) ListItemsByStation(ctx context.Context, stationID string) ([]db.RentalItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.RentalItem
	for _, it := range s.items {
		if it.StationID == stationID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (s *memStore) ListPaymentsByUser(ctx context.Context, userID string, limit int) ([]db.RentalPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.RentalPayment
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListPendingEvents(ctx context.Context, createdBefore time.Time, limit int) ([]db.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.OutboxEvent
	for _, e := range s.outbox {
		if e.Status == db.OutboxStatusPending && e.CreatedAt.Before(createdBefore) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkEventPublished(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = db.OutboxStatusPublished
	e.PublishedAt = &at
	e.Attempts++
	s.outbox[id] = e
	return nil
}

func (s *memStore) RecordEventAttempt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Attempts++
	s.outbox[id] = e
	return nil
}

type itemUpdate struct {
	token  string
	status string
}

type memTxn struct {
	store    *memStore
	reads    map[string]int64
	updates  []itemUpdate
	payments []db.RentalPayment
	events   []db.OutboxEvent
}

func (t *memTxn) GetItem(ctx context.Context, token string) (*db.RentalItem, error) {
	it, err := t.store.GetItem(ctx, token)
	if err != nil {
		return nil, err
	}
	t.reads[token] = it.Version
	return it, nil
}

func (t *memTxn) GetPaymentByKey(ctx context.Context, paymentKey string) (*db.RentalPayment, error) {
	return t.store.GetPaymentByKey(ctx, paymentKey)
}

func (t *memTxn) CreatePayment(p db.RentalPayment) { t.payments = append(t.payments, p) }

func (t *memTxn) UpdateItemStatus(item *db.RentalItem, status string) {
	t.updates = append(t.updates, itemUpdate{token: item.Token, status: status})
}

func (t *memTxn) EnqueueEvent(e db.OutboxEvent) { t.events = append(t.events, e) }

type gatewayMock struct {
	mu        sync.Mutex
	approveFn func(ctx context.Context, req entities.PaymentApproval) (*entities.PaymentReceipt, error)
	cancelFn  func(ctx context.Context, paymentKey, reason string) error
	approvals []entities.PaymentApproval
	cancels   []string
}

func (m *gatewayMock) Approve(ctx context.Context, req entities.PaymentApproval) (*entities.PaymentReceipt, error) {
	m.mu.Lock()
	m.approvals = append(m.approvals, req)
	m.mu.Unlock()
	if m.approveFn != nil {
		return m.approveFn(ctx, req)
	}
	return &entities.PaymentReceipt{PaymentKey: req.PaymentKey, OrderID: req.OrderID, Amount: req.Amount, Status: "succeeded"}, nil
}

func (m *gatewayMock) Cancel(ctx context.Context, paymentKey, reason string) error {
	m.mu.Lock()
	m.cancels = append(m.cancels, paymentKey)
	m.mu.Unlock()
	if m.cancelFn != nil {
		return m.cancelFn(ctx, paymentKey, reason)
	}
	return nil
}

func (m *gatewayMock) approveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.approvals)
}

func (m *gatewayMock) cancelled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancels...)
}

type publisherMock struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, msg events.Message, policy events.RetryPolicy) error
	messages  []events.Message
}

func (m *publisherMock) Publish(ctx context.Context, msg events.Message, policy events.RetryPolicy) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, msg, policy)
	}
	return nil
}

func (m *publisherMock) published() []events.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Message(nil), m.messages...)
}

type notifierMock struct {
	mu       sync.Mutex
	receipts []entities.RentalReceipt
}

func (m *notifierMock) RentalApproved(ctx context.Context, r entities.RentalReceipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, r)
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
