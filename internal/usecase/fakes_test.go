package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"github.com/stretchr/testify/mock"
)

var errStoreDown = errors.New("connection refused")

const (
	doctorID  = "5b1f3a52-8c1e-4c57-9a57-2f7d1c0e9b11"
	doctor2ID = "0d6f4c2a-1b3e-4f5a-8c7d-9e0f1a2b3c4d"
	tenantID  = "a3c9e1f0-7b2d-4e6a-9f8c-1d2e3f4a5b6c"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func at(d time.Duration) *time.Time {
	t := fixedNow.Add(d)
	return &t
}

const day = 24 * time.Hour

// memSubscriptions mirrors the conditional updates of the gorm repository.
type memSubscriptions struct {
	mu      sync.Mutex
	records []*entity.SubscriptionRecord
	nextID  int64
	err     error

	reconcileErr   error
	reconcileCalls int
}

func (m *memSubscriptions) add(r entity.SubscriptionRecord) *entity.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = fixedNow.Add(time.Duration(m.nextID) * time.Minute)
	}
	m.records = append(m.records, &r)
	return &r
}

func (m *memSubscriptions) get(externalID string) *entity.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ExternalSubscriptionID == externalID {
			c := *r
			return &c
		}
	}
	return nil
}

func (m *memSubscriptions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memSubscriptions) find(externalID string) *entity.SubscriptionRecord {
	for _, r := range m.records {
		if r.ExternalSubscriptionID == externalID {
			return r
		}
	}
	return nil
}

func (m *memSubscriptions) ListByActor(_ context.Context, actor entity.Actor) ([]*entity.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.SubscriptionRecord
	for _, r := range m.records {
		if r.Actor == actor {
			c := *r
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memSubscriptions) GetByExternalID(_ context.Context, externalID string) (*entity.SubscriptionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.get(externalID), nil
}

func (m *memSubscriptions) Create(_ context.Context, record *entity.SubscriptionRecord) error {
	if m.err != nil {
		return m.err
	}
	created := m.add(*record)
	record.ID = created.ID
	return nil
}

func (m *memSubscriptions) Refresh(_ context.Context, externalID string, refresh entity.SubscriptionRefresh) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r := m.find(externalID)
	if r == nil {
		return nil
	}
	r.Status = refresh.Status
	r.CurrentPeriodStart = refresh.CurrentPeriodStart
	r.CurrentPeriodEnd = refresh.CurrentPeriodEnd
	if r.CanceledAt == nil {
		r.CanceledAt = refresh.CanceledAt
	}
	r.PaymentMethodBrand = refresh.PaymentMethodBrand
	r.PaymentLast4 = refresh.PaymentLast4
	r.Amount = refresh.Amount
	r.Currency = refresh.Currency
	return nil
}

func (m *memSubscriptions) MarkCanceled(_ context.Context, externalID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	r := m.find(externalID)
	if r == nil || r.CanceledAt != nil {
		return false, nil
	}
	if r.Status != entity.SubscriptionActive && r.Status != entity.SubscriptionActiveUntilPeriodEnd {
		return false, nil
	}
	r.CanceledAt = &at
	return true, nil
}

func (m *memSubscriptions) MarkEnded(_ context.Context, externalID string, status entity.SubscriptionStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r := m.find(externalID)
	if r == nil {
		return nil
	}
	r.Status = status
	if r.CanceledAt == nil {
		r.CanceledAt = &at
	}
	return nil
}

func (m *memSubscriptions) Reconcile(_ context.Context, recordID int64, from, to entity.SubscriptionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileCalls++
	if m.reconcileErr != nil {
		return false, m.reconcileErr
	}
	for _, r := range m.records {
		if r.ID == recordID && r.Status == from {
			r.Status = to
			if to == entity.SubscriptionExpired && r.CanceledAt != nil {
				r.Status = entity.SubscriptionCanceled
			}
			return true, nil
		}
	}
	return false, nil
}

// memOverrides is the doctor_access table keyed by doctor id.
type memOverrides struct {
	mu      sync.Mutex
	granted map[string]bool
	tenants map[string]string
	err     error
}

func newMemOverrides() *memOverrides {
	return &memOverrides{granted: map[string]bool{}, tenants: map[string]string{}}
}

func (m *memOverrides) link(doctorID, tenantID string, granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted[doctorID] = granted
	m.tenants[doctorID] = tenantID
}

func (m *memOverrides) IsGranted(_ context.Context, doctorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.granted[doctorID], nil
}

func (m *memOverrides) SetGranted(_ context.Context, doctorID string, granted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.granted[doctorID]; !ok {
		return domainErrors.ErrDoctorNotLinked
	}
	m.granted[doctorID] = granted
	return nil
}

func (m *memOverrides) AnyGrantedInTenant(_ context.Context, tenantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for doctor, tenant := range m.tenants {
		if tenant == tenantID && m.granted[doctor] {
			return true, nil
		}
	}
	return false, nil
}

type memActors struct {
	profiles map[entity.Actor]*entity.ActorProfile
	err      error
}

func (m *memActors) GetProfile(_ context.Context, actor entity.Actor) (*entity.ActorProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profiles[actor], nil
}

func (m *memActors) ListDoctorIDs(_ context.Context, tenantID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var ids []string
	for a, p := range m.profiles {
		if a.IsDoctor() && p.TenantID == tenantID {
			ids = append(ids, a.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memMappings struct {
	mappings  []*entity.CustomerMapping
	createErr error
}

func (m *memMappings) Create(_ context.Context, mapping *entity.CustomerMapping) error {
	if m.createErr != nil {
		return m.createErr
	}
	mapping.ID = int64(len(m.mappings) + 1)
	c := *mapping
	m.mappings = append(m.mappings, &c)
	return nil
}

func (m *memMappings) GetByActor(_ context.Context, actor entity.Actor) (*entity.CustomerMapping, error) {
	for _, mp := range m.mappings {
		if mp.Actor == actor {
			c := *mp
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memMappings) UpdateEmail(_ context.Context, id int64, email string) error {
	for _, mp := range m.mappings {
		if mp.ID == id {
			mp.Email = email
		}
	}
	return nil
}

// memEvents is the delivery log.
type memEvents struct {
	mu     sync.Mutex
	events map[string]*repository.WebhookEvent
	err    error
}

func newMemEvents() *memEvents {
	return &memEvents{events: map[string]*repository.WebhookEvent{}}
}

func (m *memEvents) SaveEvent(_ context.Context, eventID, eventType string, _ []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.events[eventID]; !ok {
		m.events[eventID] = &repository.WebhookEvent{EventID: eventID, EventType: eventType, Status: repository.WebhookEventPending}
	}
	return nil
}

func (m *memEvents) GetEvent(_ context.Context, eventID string) (*repository.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[eventID]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (m *memEvents) set(eventID string, fn func(*repository.WebhookEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[eventID]; ok {
		fn(e)
	}
	return nil
}

func (m *memEvents) MarkProcessing(_ context.Context, eventID string) error {
	return m.set(eventID, func(e *repository.WebhookEvent) {
		e.Status = repository.WebhookEventProcessing
		e.Attempts++
	})
}

func (m *memEvents) MarkProcessed(_ context.Context, eventID string) error {
	return m.set(eventID, func(e *repository.WebhookEvent) { e.Status = repository.WebhookEventCompleted })
}

func (m *memEvents) MarkFailed(_ context.Context, eventID string, cause error) error {
	return m.set(eventID, func(e *repository.WebhookEvent) {
		e.Status = repository.WebhookEventFailed
		e.LastError = cause.Error()
	})
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []entity.AccessChange
	err     error
}

func (n *recordingNotifier) AccessChanged(_ context.Context, change entity.AccessChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return n.err
}

type stubLocker struct {
	acquired bool
	err      error
	released int
}

func (l *stubLocker) Acquire(context.Context, string) (func(), bool, error) {
	return func() { l.released++ }, l.acquired, l.err
}

// MockBillingProvider is a mock implementation of provider.BillingProvider
type MockBillingProvider struct {
	mock.Mock
}

func (m *MockBillingProvider) ParseEvent(payload []byte, signature string) (provider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.Event), args.Error(1)
}

func (m *MockBillingProvider) GetSubscription(ctx context.Context, subscriptionID string) (*provider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Subscription), args.Error(1)
}

func (m *MockBillingProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *MockBillingProvider) CreateCustomer(ctx context.Context, req provider.CustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockBillingProvider) UpdateCustomerEmail(ctx context.Context, customerID, email string) error {
	return m.Called(ctx, customerID, email).Error(0)
}

func (m *MockBillingProvider) CreateCheckoutSession(ctx context.Context, req provider.CheckoutRequest) (*provider.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CheckoutSession), args.Error(1)
}
