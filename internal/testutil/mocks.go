package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verionlabs/directory-billing/internal/domain/attempt"
	"github.com/verionlabs/directory-billing/internal/domain/checkout"
	domainErrors "github.com/verionlabs/directory-billing/internal/domain/errors"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/domain/task"
)

// --- Subscription Repository Mock ---

// MockSubscriptionRepository is a mock implementation of subscription.Repository.
type MockSubscriptionRepository struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscription.Subscription

	CreateFunc        func(ctx context.Context, s *subscription.Subscription) error
	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error)
	UpdateFunc        func(ctx context.Context, s *subscription.Subscription) error
	ListRetryableFunc func(ctx context.Context, limit int) ([]*subscription.Subscription, error)
	StatsFunc         func(ctx context.Context, since time.Time) (subscription.IntegrationStats, error)
}

func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		subs: make(map[uuid.UUID]*subscription.Subscription),
	}
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = s
	return nil
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	return s, nil
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		return domainErrors.ErrSubscriptionNotFound
	}
	m.subs[s.ID] = s
	return nil
}

func (m *MockSubscriptionRepository) ListRetryable(ctx context.Context, limit int) ([]*subscription.Subscription, error) {
	if m.ListRetryableFunc != nil {
		return m.ListRetryableFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*subscription.Subscription
	for _, s := range m.subs {
		if s.CanRetryProvisioning() {
			out = append(out, s)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepository) Stats(ctx context.Context, since time.Time) (subscription.IntegrationStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats subscription.IntegrationStats
	for _, s := range m.subs {
		if s.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		if s.IntegrationAttempts > 0 {
			stats.Attempted++
		}
		switch s.IntegrationStatus {
		case subscription.IntegrationSucceeded:
			stats.Succeeded++
		case subscription.IntegrationFailed:
			stats.Failed++
		case subscription.IntegrationPending:
			stats.Pending++
		case subscription.IntegrationNotStarted:
			stats.NotStarted++
		}
	}
	return stats, nil
}

// --- Checkout Repository Mock ---

// MockCheckoutRepository is a mock implementation of checkout.Repository.
type MockCheckoutRepository struct {
	mu       sync.Mutex
	sessions map[string]*checkout.Session

	CreateFunc  func(ctx context.Context, s *checkout.Session) error
	GetByIDFunc func(ctx context.Context, id string) (*checkout.Session, error)
	UpdateFunc  func(ctx context.Context, s *checkout.Session) error
}

func NewMockCheckoutRepository() *MockCheckoutRepository {
	return &MockCheckoutRepository{sessions: make(map[string]*checkout.Session)}
}

func (m *MockCheckoutRepository) Create(ctx context.Context, s *checkout.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MockCheckoutRepository) GetByID(ctx context.Context, id string) (*checkout.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	return s, nil
}

func (m *MockCheckoutRepository) Update(ctx context.Context, s *checkout.Session) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return domainErrors.ErrSessionNotFound
	}
	m.sessions[s.ID] = s
	return nil
}

// --- Event Ledger Mock ---

// MockEventLedger is a mock implementation of event.Ledger.
type MockEventLedger struct {
	mu        sync.Mutex
	processed map[string]time.Time

	MarkProcessedFunc func(ctx context.Context, id, kind string) (bool, error)
	SweepFunc         func(ctx context.Context, before time.Time) (int64, error)
}

func NewMockEventLedger() *MockEventLedger {
	return &MockEventLedger{processed: make(map[string]time.Time)}
}

func (m *MockEventLedger) MarkProcessed(ctx context.Context, id, kind string) (bool, error) {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, id, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[id]; ok {
		return false, nil
	}
	m.processed[id] = time.Now()
	return true, nil
}

func (m *MockEventLedger) Sweep(ctx context.Context, before time.Time) (int64, error) {
	if m.SweepFunc != nil {
		return m.SweepFunc(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, at := range m.processed {
		if at.Before(before) {
			delete(m.processed, id)
			deleted++
		}
	}
	return deleted, nil
}

// Seen reports whether an event ID was recorded.
func (m *MockEventLedger) Seen(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[id]
	return ok
}

// --- Task Repository Mock ---

// MockTaskRepository is a mock implementation of task.Repository.
type MockTaskRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*task.Entry

	InsertFunc            func(ctx context.Context, e *task.Entry) error
	GetPublishableFunc    func(ctx context.Context, limit int) ([]*task.Entry, error)
	MarkPublishedFunc     func(ctx context.Context, id uuid.UUID) error
	MarkPublishFailedFunc func(ctx context.Context, id uuid.UUID) error
	MarkConsumedFunc      func(ctx context.Context, id uuid.UUID) error
	HasOpenFunc           func(ctx context.Context, subscriptionID uuid.UUID) (bool, error)

	// OpenWindow bounds how long a published entry counts as open,
	// mirroring the recency cutoff the SQL implementation applies.
	// Zero means published entries count as open regardless of age.
	OpenWindow time.Duration
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{tasks: make(map[uuid.UUID]*task.Entry)}
}

func (m *MockTaskRepository) Insert(ctx context.Context, e *task.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[e.ID] = e
	return nil
}

func (m *MockTaskRepository) GetPublishable(ctx context.Context, limit int) ([]*task.Entry, error) {
	if m.GetPublishableFunc != nil {
		return m.GetPublishableFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*task.Entry
	now := time.Now()
	for _, e := range m.tasks {
		if e.Status == task.StatusPending && !e.NotBefore.After(now) {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockTaskRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tasks[id]; ok {
		now := time.Now()
		e.Status = task.StatusPublished
		e.PublishedAt = &now
	}
	return nil
}

func (m *MockTaskRepository) MarkPublishFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishFailedFunc != nil {
		return m.MarkPublishFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tasks[id]; ok {
		e.PublishTries++
		if e.PublishTries >= e.MaxTries {
			e.Status = task.StatusFailed
		}
	}
	return nil
}

func (m *MockTaskRepository) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	if m.MarkConsumedFunc != nil {
		return m.MarkConsumedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tasks[id]; ok && e.Status == task.StatusPublished {
		e.Status = task.StatusConsumed
	}
	return nil
}

func (m *MockTaskRepository) HasOpen(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	if m.HasOpenFunc != nil {
		return m.HasOpenFunc(ctx, subscriptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, e := range m.tasks {
		if e.SubscriptionID != subscriptionID {
			continue
		}
		switch e.Status {
		case task.StatusPending:
			return true, nil
		case task.StatusPublished:
			if m.OpenWindow <= 0 || (e.PublishedAt != nil && e.PublishedAt.After(now.Add(-m.OpenWindow))) {
				return true, nil
			}
		}
	}
	return false, nil
}

// TasksFor returns all entries for a subscription, for assertions.
func (m *MockTaskRepository) TasksFor(subscriptionID uuid.UUID) []*task.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*task.Entry
	for _, e := range m.tasks {
		if e.SubscriptionID == subscriptionID {
			out = append(out, e)
		}
	}
	return out
}

// --- Attempt Repository Mock ---

// MockAttemptRepository is a mock implementation of attempt.Repository.
type MockAttemptRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID][]*attempt.Record

	AddFunc                func(ctx context.Context, r *attempt.Record) error
	ListBySubscriptionFunc func(ctx context.Context, subscriptionID uuid.UUID) ([]*attempt.Record, error)
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{records: make(map[uuid.UUID][]*attempt.Record)}
}

func (m *MockAttemptRepository) Add(ctx context.Context, r *attempt.Record) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.SubscriptionID] = append(m.records[r.SubscriptionID], r)
	return nil
}

func (m *MockAttemptRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*attempt.Record, error) {
	if m.ListBySubscriptionFunc != nil {
		return m.ListBySubscriptionFunc(ctx, subscriptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[subscriptionID], nil
}

// --- Transaction Manager Mock ---

// MockTxManager runs the callback without a real transaction.
type MockTxManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Sweep Lock Mock ---

// MockSweepLock is an always-acquirable lock unless configured otherwise.
type MockSweepLock struct {
	mu       sync.Mutex
	Denied   bool
	Acquires int
	Releases int
}

func (m *MockSweepLock) Acquire(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Denied {
		return false, nil
	}
	m.Acquires++
	return true, nil
}

func (m *MockSweepLock) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Releases++
	return nil
}
