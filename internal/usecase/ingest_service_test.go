package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const signature = "t=1,v1=abc"

type ingestFixture struct {
	svc       *IngestService
	billing   *MockBillingProvider
	subs      *memSubscriptions
	overrides *memOverrides
	events    *memEvents
}

func newIngestFixture(opts ...IngestOption) *ingestFixture {
	f := &ingestFixture{
		billing:   new(MockBillingProvider),
		subs:      &memSubscriptions{},
		overrides: newMemOverrides(),
		events:    newMemEvents(),
	}
	opts = append([]IngestOption{WithIngestClock(fixedClock)}, opts...)
	f.svc = NewIngestService(f.billing, f.subs, f.overrides, f.events, zap.NewNop(), opts...)
	return f
}

// deliver registers the event for the payload and hands it to the service.
func (f *ingestFixture) deliver(event provider.Event) error {
	payload := []byte(event.Meta().ID)
	f.billing.On("ParseEvent", payload, signature).Return(event, nil).Maybe()
	return f.svc.HandleEvent(context.Background(), payload, signature)
}

func meta(id, eventType string) provider.EventMeta {
	return provider.EventMeta{ID: id, Type: eventType, Created: fixedNow}
}

func providerSub(id string, state provider.SubscriptionState, end *time.Time) *provider.Subscription {
	return &provider.Subscription{
		ID:                 id,
		CustomerID:         "cus_1",
		State:              state,
		CurrentPeriodStart: at(-29 * day),
		CurrentPeriodEnd:   end,
		PaymentMethodBrand: "visa",
		PaymentLast4:       "4242",
		AmountMinor:        9990,
		Currency:           "brl",
	}
}

func TestIngestService_InvalidSignature(t *testing.T) {
	f := newIngestFixture()
	payload := []byte(`{"id":"evt_1"}`)
	f.billing.On("ParseEvent", payload, "bad").Return(nil, errors.New("signature mismatch"))

	err := f.svc.HandleEvent(context.Background(), payload, "bad")

	assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)
	assert.Empty(t, f.events.events)
	assert.Zero(t, f.subs.count())
}

func TestIngestService_MalformedEventIsNotASignatureFailure(t *testing.T) {
	f := newIngestFixture()
	payload := []byte(`{"id":"evt_1"}`)
	f.billing.On("ParseEvent", payload, signature).
		Return(nil, fmt.Errorf("%w: invoice: bad amount", provider.ErrMalformedEvent))

	err := f.svc.HandleEvent(context.Background(), payload, signature)

	assert.ErrorIs(t, err, domainErrors.ErrMalformedEvent)
	assert.NotErrorIs(t, err, domainErrors.ErrInvalidSignature)
	assert.Empty(t, f.events.events)
}

func TestIngestService_CheckoutCompleted(t *testing.T) {
	f := newIngestFixture()
	doctor := entity.Doctor(doctorID)
	f.overrides.link(doctorID, tenantID, true)
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)

	err := f.deliver(provider.CheckoutCompleted{
		EventMeta:      meta("evt_1", "checkout.session.completed"),
		SessionID:      "cs_1",
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		Actor:          &doctor,
	})
	require.NoError(t, err)

	record := f.subs.get("sub_1")
	require.NotNil(t, record)
	assert.Equal(t, doctor, record.Actor)
	assert.Equal(t, entity.SubscriptionActive, record.Status)
	assert.Nil(t, record.CanceledAt)
	assert.Equal(t, "cus_1", record.ExternalCustomerID)
	assert.Equal(t, *at(30 * day), *record.CurrentPeriodEnd)
	assert.Equal(t, "4242", record.PaymentLast4)
	assert.True(t, decimal.RequireFromString("99.90").Equal(record.Amount))

	granted, _ := f.overrides.IsGranted(context.Background(), doctorID)
	assert.False(t, granted, "paid subscription clears the manual override")
	assert.Equal(t, repository.WebhookEventCompleted, f.events.events["evt_1"].Status)
}

func TestIngestService_CheckoutCompletedForTenant(t *testing.T) {
	f := newIngestFixture()
	tenant := entity.Tenant(tenantID)
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)

	err := f.deliver(provider.CheckoutCompleted{
		EventMeta:      meta("evt_1", "checkout.session.completed"),
		SubscriptionID: "sub_1",
		Actor:          &tenant,
	})
	require.NoError(t, err)

	record := f.subs.get("sub_1")
	require.NotNil(t, record)
	assert.Equal(t, tenant, record.Actor)
}

func TestIngestService_CheckoutCompletedWithoutActor(t *testing.T) {
	f := newIngestFixture()

	err := f.deliver(provider.CheckoutCompleted{
		EventMeta:      meta("evt_1", "checkout.session.completed"),
		SubscriptionID: "sub_1",
	})

	assert.ErrorIs(t, err, domainErrors.ErrMissingActorReference)
	assert.Zero(t, f.subs.count())
	assert.Equal(t, repository.WebhookEventFailed, f.events.events["evt_1"].Status)
	f.billing.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestIngestService_CheckoutCompletedIsIdempotent(t *testing.T) {
	f := newIngestFixture()
	doctor := entity.Doctor(doctorID)
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)
	event := provider.CheckoutCompleted{
		EventMeta:      meta("evt_1", "checkout.session.completed"),
		SubscriptionID: "sub_1",
		Actor:          &doctor,
	}

	require.NoError(t, f.deliver(event))
	require.NoError(t, f.deliver(event))

	assert.Equal(t, 1, f.subs.count())
	f.billing.AssertNumberOfCalls(t, "GetSubscription", 1)

	// a new event for a known subscription refreshes it
	event.EventMeta = meta("evt_2", "checkout.session.completed")
	require.NoError(t, f.deliver(event))
	assert.Equal(t, 1, f.subs.count())
}

func TestIngestService_InvoicePaymentSucceededIsIdempotent(t *testing.T) {
	f := newIngestFixture()
	f.subs.add(entity.SubscriptionRecord{
		Actor:                  entity.Doctor(doctorID),
		ExternalSubscriptionID: "sub_1",
		Status:                 entity.SubscriptionActive,
		CurrentPeriodEnd:       at(-day),
	})
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)

	first := provider.InvoicePaymentSucceeded{EventMeta: meta("evt_1", "invoice.payment_succeeded"), SubscriptionID: "sub_1"}
	require.NoError(t, f.deliver(first))
	afterFirst := f.subs.get("sub_1")

	// redelivered under a new event id
	second := first
	second.EventMeta = meta("evt_2", "invoice.payment_succeeded")
	require.NoError(t, f.deliver(second))

	assert.Equal(t, 1, f.subs.count())
	assert.Equal(t, afterFirst, f.subs.get("sub_1"))
	assert.Equal(t, entity.SubscriptionActive, afterFirst.Status)
	assert.Equal(t, *at(30 * day), *afterFirst.CurrentPeriodEnd)
}

func TestIngestService_RenewalClearsManualOverride(t *testing.T) {
	f := newIngestFixture()
	f.overrides.link(doctorID, tenantID, true)
	f.subs.add(entity.SubscriptionRecord{
		Actor:                  entity.Doctor(doctorID),
		ExternalSubscriptionID: "sub_1",
		Status:                 entity.SubscriptionExpired,
		CurrentPeriodEnd:       at(-2 * day),
	})
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)

	err := f.deliver(provider.InvoicePaymentSucceeded{EventMeta: meta("evt_1", "invoice.payment_succeeded"), SubscriptionID: "sub_1"})
	require.NoError(t, err)

	assert.Equal(t, entity.SubscriptionActive, f.subs.get("sub_1").Status)
	granted, _ := f.overrides.IsGranted(context.Background(), doctorID)
	assert.False(t, granted, "renewed subscription clears the manual override")
}

func TestIngestService_RefreshKeepsOverrideWhenNotCovered(t *testing.T) {
	f := newIngestFixture()
	f.overrides.link(doctorID, tenantID, true)
	f.subs.add(entity.SubscriptionRecord{
		Actor:                  entity.Doctor(doctorID),
		ExternalSubscriptionID: "sub_1",
		Status:                 entity.SubscriptionActive,
		CurrentPeriodEnd:       at(-2 * day),
	})
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateUnpaid, at(-2*day)), nil)

	err := f.deliver(provider.SubscriptionUpdated{EventMeta: meta("evt_1", "customer.subscription.updated"), SubscriptionID: "sub_1"})
	require.NoError(t, err)

	assert.Equal(t, entity.SubscriptionExpired, f.subs.get("sub_1").Status)
	granted, _ := f.overrides.IsGranted(context.Background(), doctorID)
	assert.True(t, granted)
}

func TestIngestService_RefreshUnknownSubscription(t *testing.T) {
	f := newIngestFixture()

	err := f.deliver(provider.SubscriptionUpdated{EventMeta: meta("evt_1", "customer.subscription.updated"), SubscriptionID: "sub_x"})

	require.NoError(t, err)
	f.billing.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestIngestService_RefreshStatusMapping(t *testing.T) {
	tests := []struct {
		name         string
		local        entity.SubscriptionRecord
		remote       *provider.Subscription
		wantStatus   entity.SubscriptionStatus
		wantCanceled bool
	}{
		{
			name:       "past due stays active",
			local:      entity.SubscriptionRecord{Status: entity.SubscriptionActive, CurrentPeriodEnd: at(day)},
			remote:     providerSub("sub_1", provider.StatePastDue, at(day)),
			wantStatus: entity.SubscriptionActive,
		},
		{
			name:  "canceled within period",
			local: entity.SubscriptionRecord{Status: entity.SubscriptionActive, CurrentPeriodEnd: at(day)},
			remote: func() *provider.Subscription {
				s := providerSub("sub_1", provider.StateCanceled, at(day))
				s.CanceledAt = at(-time.Hour)
				return s
			}(),
			wantStatus:   entity.SubscriptionActiveUntilPeriodEnd,
			wantCanceled: true,
		},
		{
			name:         "canceled after period",
			local:        entity.SubscriptionRecord{Status: entity.SubscriptionActive, CurrentPeriodEnd: at(-day)},
			remote:       providerSub("sub_1", provider.StateCanceled, at(-day)),
			wantStatus:   entity.SubscriptionCanceled,
			wantCanceled: false,
		},
		{
			name:       "unpaid expires",
			local:      entity.SubscriptionRecord{Status: entity.SubscriptionActive, CurrentPeriodEnd: at(day)},
			remote:     providerSub("sub_1", provider.StateUnpaid, at(day)),
			wantStatus: entity.SubscriptionExpired,
		},
		{
			name:         "unpaid after local cancellation is canceled",
			local:        entity.SubscriptionRecord{Status: entity.SubscriptionActive, CanceledAt: at(-day), CurrentPeriodEnd: at(day)},
			remote:       providerSub("sub_1", provider.StateUnpaid, at(day)),
			wantStatus:   entity.SubscriptionCanceled,
			wantCanceled: true,
		},
		{
			name:       "incomplete keeps the local status",
			local:      entity.SubscriptionRecord{Status: entity.SubscriptionActive, CurrentPeriodEnd: at(day)},
			remote:     providerSub("sub_1", provider.StateIncomplete, at(day)),
			wantStatus: entity.SubscriptionActive,
		},
		{
			name:         "active refresh keeps the local cancellation",
			local:        entity.SubscriptionRecord{Status: entity.SubscriptionActive, CanceledAt: at(-day), CurrentPeriodEnd: at(day)},
			remote:       providerSub("sub_1", provider.StateActive, at(day)),
			wantStatus:   entity.SubscriptionActive,
			wantCanceled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture()
			local := tt.local
			local.Actor = entity.Doctor(doctorID)
			local.ExternalSubscriptionID = "sub_1"
			f.subs.add(local)
			f.billing.On("GetSubscription", mock.Anything, "sub_1").Return(tt.remote, nil)

			err := f.deliver(provider.SubscriptionUpdated{EventMeta: meta("evt_1", "customer.subscription.updated"), SubscriptionID: "sub_1"})
			require.NoError(t, err)

			record := f.subs.get("sub_1")
			assert.Equal(t, tt.wantStatus, record.Status)
			assert.Equal(t, tt.wantCanceled, record.CanceledAt != nil)
		})
	}
}

func TestIngestService_RefreshMissingAtProvider(t *testing.T) {
	f := newIngestFixture()
	f.subs.add(entity.SubscriptionRecord{Actor: entity.Doctor(doctorID), ExternalSubscriptionID: "sub_1", Status: entity.SubscriptionActive, CurrentPeriodEnd: at(day)})
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(nil, fmt.Errorf("no such subscription: %w", provider.ErrResourceMissing))

	err := f.deliver(provider.InvoicePaymentSucceeded{EventMeta: meta("evt_1", "invoice.payment_succeeded"), SubscriptionID: "sub_1"})

	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionActive, f.subs.get("sub_1").Status)
	assert.Equal(t, repository.WebhookEventCompleted, f.events.events["evt_1"].Status)
}

func TestIngestService_SubscriptionDeleted(t *testing.T) {
	tests := []struct {
		name       string
		end        *time.Time
		wantStatus entity.SubscriptionStatus
	}{
		{name: "period still valid", end: at(3 * day), wantStatus: entity.SubscriptionActiveUntilPeriodEnd},
		{name: "period lapsed", end: at(-day), wantStatus: entity.SubscriptionCanceled},
		{name: "no period", end: nil, wantStatus: entity.SubscriptionCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture()
			f.subs.add(entity.SubscriptionRecord{Actor: entity.Doctor(doctorID), ExternalSubscriptionID: "sub_1", Status: entity.SubscriptionActive, CurrentPeriodEnd: tt.end})

			err := f.deliver(provider.SubscriptionDeleted{EventMeta: meta("evt_1", "customer.subscription.deleted"), SubscriptionID: "sub_1"})
			require.NoError(t, err)

			record := f.subs.get("sub_1")
			assert.Equal(t, tt.wantStatus, record.Status)
			require.NotNil(t, record.CanceledAt)
			assert.Equal(t, fixedNow, *record.CanceledAt)
		})
	}
}

func TestIngestService_FailsClosedWhenStoreUnavailable(t *testing.T) {
	f := newIngestFixture()
	f.subs.err = errStoreDown

	err := f.deliver(provider.InvoicePaymentSucceeded{EventMeta: meta("evt_1", "invoice.payment_succeeded"), SubscriptionID: "sub_1"})

	assert.ErrorIs(t, err, domainErrors.ErrStoreUnavailable)
	assert.Equal(t, repository.WebhookEventFailed, f.events.events["evt_1"].Status)
	assert.Contains(t, f.events.events["evt_1"].LastError, "connection refused")
}

func TestIngestService_DeliveryLogUnavailable(t *testing.T) {
	f := newIngestFixture()
	f.events.err = errStoreDown

	err := f.deliver(provider.Ignored{EventMeta: meta("evt_1", "customer.created")})

	assert.ErrorIs(t, err, domainErrors.ErrStoreUnavailable)
}

func TestIngestService_FailedEventIsRetried(t *testing.T) {
	f := newIngestFixture()
	f.subs.add(entity.SubscriptionRecord{Actor: entity.Doctor(doctorID), ExternalSubscriptionID: "sub_1", Status: entity.SubscriptionActive, CurrentPeriodEnd: at(-day)})
	f.billing.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("timeout")).Once()
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil).Once()
	event := provider.InvoicePaymentSucceeded{EventMeta: meta("evt_1", "invoice.payment_succeeded"), SubscriptionID: "sub_1"}

	require.Error(t, f.deliver(event))
	require.NoError(t, f.deliver(event))

	assert.Equal(t, *at(30 * day), *f.subs.get("sub_1").CurrentPeriodEnd)
	assert.Equal(t, repository.WebhookEventCompleted, f.events.events["evt_1"].Status)
	assert.Equal(t, 2, f.events.events["evt_1"].Attempts)
}

func TestIngestService_EventLock(t *testing.T) {
	t.Run("concurrent delivery is rejected", func(t *testing.T) {
		locker := &stubLocker{acquired: false}
		f := newIngestFixture(WithEventLocker(locker))

		err := f.deliver(provider.Ignored{EventMeta: meta("evt_1", "customer.created")})

		assert.ErrorIs(t, err, domainErrors.ErrEventInFlight)
		assert.Empty(t, f.events.events)
	})

	t.Run("lock is released after processing", func(t *testing.T) {
		locker := &stubLocker{acquired: true}
		f := newIngestFixture(WithEventLocker(locker))

		require.NoError(t, f.deliver(provider.Ignored{EventMeta: meta("evt_1", "customer.created")}))
		assert.Equal(t, 1, locker.released)
	})

	t.Run("lock outage does not block processing", func(t *testing.T) {
		locker := &stubLocker{err: errors.New("redis down")}
		f := newIngestFixture(WithEventLocker(locker))

		require.NoError(t, f.deliver(provider.Ignored{EventMeta: meta("evt_1", "customer.created")}))
		assert.Equal(t, repository.WebhookEventCompleted, f.events.events["evt_1"].Status)
		assert.Zero(t, locker.released)
	})
}

func TestIngestService_PublishesAccessChanges(t *testing.T) {
	notifier := &recordingNotifier{}
	f := newIngestFixture(WithAccessNotifier(notifier))
	doctor := entity.Doctor(doctorID)
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)

	require.NoError(t, f.deliver(provider.CheckoutCompleted{
		EventMeta:      meta("evt_1", "checkout.session.completed"),
		SubscriptionID: "sub_1",
		Actor:          &doctor,
	}))
	require.NoError(t, f.deliver(provider.SubscriptionDeleted{
		EventMeta:      meta("evt_2", "customer.subscription.deleted"),
		SubscriptionID: "sub_1",
	}))
	require.NoError(t, f.deliver(provider.Ignored{EventMeta: meta("evt_3", "customer.created")}))

	require.Len(t, notifier.changes, 2)
	assert.Equal(t, entity.AccessChange{
		Actor:          doctor,
		SubscriptionID: "sub_1",
		Status:         entity.SubscriptionActive,
		EventID:        "evt_1",
		At:             fixedNow,
	}, notifier.changes[0])
	assert.Equal(t, entity.SubscriptionActiveUntilPeriodEnd, notifier.changes[1].Status)
	assert.Equal(t, "evt_2", notifier.changes[1].EventID)
}

func TestIngestService_NotifierFailureDoesNotFailEvent(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("redis down")}
	f := newIngestFixture(WithAccessNotifier(notifier))
	tenant := entity.Tenant(tenantID)
	f.billing.On("GetSubscription", mock.Anything, "sub_1").
		Return(providerSub("sub_1", provider.StateActive, at(30*day)), nil)

	err := f.deliver(provider.CheckoutCompleted{
		EventMeta:      meta("evt_1", "checkout.session.completed"),
		SubscriptionID: "sub_1",
		Actor:          &tenant,
	})

	require.NoError(t, err)
	assert.Len(t, notifier.changes, 1)
	assert.Equal(t, repository.WebhookEventCompleted, f.events.events["evt_1"].Status)
}
