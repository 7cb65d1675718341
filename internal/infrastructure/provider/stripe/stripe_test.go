package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

const (
	testSecret   = "whsec_test_secret"
	testDoctorID = "5b1f3a52-8c1e-4c57-9a57-2f7d1c0e9b11"
	testTenantID = "a3c9e1f0-7b2d-4e6a-9f8c-1d2e3f4a5b6c"
)

func sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}

func eventJSON(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":1710417600,"data":{"object":%s}}`, id, eventType, object))
}

func TestParseEvent(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret, zap.NewNop())
	doctor := entity.Doctor(testDoctorID)
	tenant := entity.Tenant(testTenantID)

	tests := []struct {
		name    string
		payload []byte
		want    provider.Event
	}{
		{
			name: "checkout completed with actor metadata",
			payload: eventJSON("evt_1", "checkout.session.completed",
				`{"id":"cs_1","object":"checkout.session","subscription":"sub_1","customer":"cus_1","metadata":{"actor_id":"`+testDoctorID+`","actor_kind":"doctor"}}`),
			want: provider.CheckoutCompleted{
				EventMeta:      provider.EventMeta{ID: "evt_1", Type: "checkout.session.completed", Created: time.Unix(1710417600, 0).UTC()},
				SessionID:      "cs_1",
				SubscriptionID: "sub_1",
				CustomerID:     "cus_1",
				Actor:          &doctor,
			},
		},
		{
			name: "checkout completed with legacy tenant metadata",
			payload: eventJSON("evt_2", "checkout.session.completed",
				`{"id":"cs_2","object":"checkout.session","subscription":"sub_2","metadata":{"instanciaId":"`+testTenantID+`","type":"instancia"}}`),
			want: provider.CheckoutCompleted{
				EventMeta:      provider.EventMeta{ID: "evt_2", Type: "checkout.session.completed", Created: time.Unix(1710417600, 0).UTC()},
				SessionID:      "cs_2",
				SubscriptionID: "sub_2",
				Actor:          &tenant,
			},
		},
		{
			name: "checkout completed without metadata",
			payload: eventJSON("evt_3", "checkout.session.completed",
				`{"id":"cs_3","object":"checkout.session","subscription":"sub_3","metadata":{}}`),
			want: provider.CheckoutCompleted{
				EventMeta:      provider.EventMeta{ID: "evt_3", Type: "checkout.session.completed", Created: time.Unix(1710417600, 0).UTC()},
				SessionID:      "cs_3",
				SubscriptionID: "sub_3",
			},
		},
		{
			name:    "invoice paid",
			payload: eventJSON("evt_4", "invoice.payment_succeeded", `{"id":"in_1","object":"invoice","subscription":"sub_1"}`),
			want: provider.InvoicePaymentSucceeded{
				EventMeta:      provider.EventMeta{ID: "evt_4", Type: "invoice.payment_succeeded", Created: time.Unix(1710417600, 0).UTC()},
				InvoiceID:      "in_1",
				SubscriptionID: "sub_1",
			},
		},
		{
			name:    "subscription deleted",
			payload: eventJSON("evt_5", "customer.subscription.deleted", `{"id":"sub_1","object":"subscription","status":"canceled"}`),
			want: provider.SubscriptionDeleted{
				EventMeta:      provider.EventMeta{ID: "evt_5", Type: "customer.subscription.deleted", Created: time.Unix(1710417600, 0).UTC()},
				SubscriptionID: "sub_1",
			},
		},
		{
			name:    "subscription updated",
			payload: eventJSON("evt_6", "customer.subscription.updated", `{"id":"sub_1","object":"subscription","status":"past_due"}`),
			want: provider.SubscriptionUpdated{
				EventMeta:      provider.EventMeta{ID: "evt_6", Type: "customer.subscription.updated", Created: time.Unix(1710417600, 0).UTC()},
				SubscriptionID: "sub_1",
			},
		},
		{
			name:    "unhandled type",
			payload: eventJSON("evt_7", "customer.created", `{"id":"cus_1","object":"customer"}`),
			want: provider.Ignored{
				EventMeta: provider.EventMeta{ID: "evt_7", Type: "customer.created", Created: time.Unix(1710417600, 0).UTC()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := p.ParseEvent(tt.payload, sign(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, event)
		})
	}
}

func TestParseEvent_RejectsBadSignature(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret, zap.NewNop())
	payload := eventJSON("evt_1", "customer.created", `{"id":"cus_1"}`)

	_, err := p.ParseEvent(payload, "t=1710417600,v1=deadbeef")
	assert.Error(t, err)

	other := NewStripeProvider("sk_test_123", "whsec_other", zap.NewNop())
	_, err = other.ParseEvent(payload, sign(payload))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, provider.ErrMalformedEvent)
}

func TestParseEvent_MalformedObject(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret, zap.NewNop())
	payload := eventJSON("evt_1", "invoice.payment_succeeded", `{"id":"in_1","object":"invoice","amount_due":"lots"}`)

	_, err := p.ParseEvent(payload, sign(payload))

	assert.ErrorIs(t, err, provider.ErrMalformedEvent)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		HTTPClient:        server.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     zap.NewNop().Sugar(),
	})
	return newStripeProvider("sk_test_123", testSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, zap.NewNop())
}

func TestGetSubscription(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/subscriptions/sub_1":
			assert.Contains(t, r.URL.RawQuery, "default_payment_method")
			fmt.Fprint(w, `{
				"id": "sub_1",
				"object": "subscription",
				"status": "active",
				"customer": "cus_1",
				"currency": "brl",
				"current_period_start": 1710417600,
				"current_period_end": 1713096000,
				"canceled_at": null,
				"default_payment_method": {"id": "pm_1", "object": "payment_method", "card": {"brand": "visa", "last4": "4242"}},
				"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_1", "unit_amount": 9990, "currency": "brl"}}]}
			}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such subscription"}}`)
		}
	})

	sub, err := p.GetSubscription(context.Background(), "sub_1")
	require.NoError(t, err)

	assert.Equal(t, provider.StateActive, sub.State)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, time.Unix(1713096000, 0).UTC(), *sub.CurrentPeriodEnd)
	assert.Nil(t, sub.CanceledAt)
	assert.Equal(t, int64(9990), sub.AmountMinor)
	assert.Equal(t, "brl", sub.Currency)
	assert.Equal(t, "visa", sub.PaymentMethodBrand)
	assert.Equal(t, "4242", sub.PaymentLast4)

	_, err = p.GetSubscription(context.Background(), "sub_missing")
	assert.ErrorIs(t, err, provider.ErrResourceMissing)
}

func TestCancelSubscription(t *testing.T) {
	var method string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/subscriptions/sub_gone" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such subscription"}}`)
			return
		}
		fmt.Fprint(w, `{"id": "sub_1", "object": "subscription", "status": "canceled"}`)
	})

	require.NoError(t, p.CancelSubscription(context.Background(), "sub_1"))
	assert.Equal(t, http.MethodDelete, method)

	err := p.CancelSubscription(context.Background(), "sub_gone")
	assert.ErrorIs(t, err, provider.ErrResourceMissing)
}

func TestCreateCheckoutSession(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "price_monthly", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, testDoctorID, r.PostForm.Get("metadata[actor_id]"))
		assert.Equal(t, "doctor", r.PostForm.Get("subscription_data[metadata][actor_kind]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cs_1", "object": "checkout.session", "url": "https://checkout.stripe.com/c/pay/cs_1"}`)
	})

	session, err := p.CreateCheckoutSession(context.Background(), provider.CheckoutRequest{
		Actor:      entity.Doctor(testDoctorID),
		CustomerID: "cus_1",
		PriceID:    "price_monthly",
		SuccessURL: "https://app.example.com/medico/area/assinatura?success=true",
		CancelURL:  "https://app.example.com/medico/area/assinatura?canceled=true",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", session.URL)
}

func TestCreateCustomerWithoutEmail(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		_, hasEmail := r.PostForm["email"]
		assert.False(t, hasEmail)
		assert.Equal(t, "Dr. Bruno", r.PostForm.Get("name"))
		assert.Equal(t, testTenantID, r.PostForm.Get("metadata[actor_id]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "cus_9", "object": "customer"}`)
	})

	id, err := p.CreateCustomer(context.Background(), provider.CustomerRequest{Actor: entity.Tenant(testTenantID), Name: "Dr. Bruno"})
	require.NoError(t, err)
	assert.Equal(t, "cus_9", id)
}
