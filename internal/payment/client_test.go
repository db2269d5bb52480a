package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/model"
	"github.com/stretchr/testify/require"
)

func shortWaits(t *testing.T) {
	t.Helper()
	orig := fetchWaits
	fetchWaits = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { fetchWaits = orig })
}

func TestGetPayment_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 123,
			"status":             "approved",
			"external_reference": "order-1",
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "https://loja.example.com", "secret")

	pay, err := c.GetPayment(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, int64(123), pay.ID)
	require.Equal(t, "approved", pay.Status)
	require.Equal(t, "order-1", pay.ExternalReference)
}

func TestGetPayment_RetriesThenSucceeds(t *testing.T) {
	shortWaits(t)

	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 42,
			"status":             "pending",
			"external_reference": "order-2",
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "https://loja.example.com", "secret")

	pay, err := c.GetPayment(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "pending", pay.Status)
	require.Equal(t, 3, calls)
}

func TestGetPayment_NotVisibleAfterRetries(t *testing.T) {
	shortWaits(t)

	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "https://loja.example.com", "secret")

	_, err := c.GetPayment(context.Background(), "42")
	require.ErrorIs(t, err, errs.ErrPaymentNotVisible)
	require.Equal(t, len(fetchWaits), calls)
}

func TestGetPayment_UpstreamErrorStopsRetry(t *testing.T) {
	shortWaits(t)

	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "https://loja.example.com", "secret")

	_, err := c.GetPayment(context.Background(), "42")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	require.Equal(t, 1, calls)
}

func TestCreatePreference(t *testing.T) {
	var got preferencePayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":                 "pref-1",
			"init_point":         "https://mp.example.com/init",
			"sandbox_init_point": "https://mp.example.com/sandbox",
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "https://loja.example.com", "s3cret")

	items := []model.PreferenceItem{
		{ID: 1, Name: "Marmita P", Price: 10, Quantity: 2},
	}

	pref, err := c.CreatePreference(context.Background(), "order-9", items, 7)
	require.NoError(t, err)
	require.Equal(t, "pref-1", pref.ID)
	require.Equal(t, "https://mp.example.com/init", pref.InitPoint)

	require.Len(t, got.Items, 2)
	require.Equal(t, "Marmita P", got.Items[0].Title)
	require.Equal(t, 2, got.Items[0].Quantity)
	require.Equal(t, "FRETE", got.Items[1].ID)
	require.Equal(t, 7.0, got.Items[1].UnitPrice)

	require.Equal(t, "order-9", got.ExternalReference)
	require.Contains(t, got.NotificationURL, "/api/payments/webhook?secret=s3cret")
	require.Contains(t, got.BackURLs["success"], "/pagamento/sucesso?order=order-9")
	require.Contains(t, got.BackURLs["pending"], "/pagamento/pendente?order=order-9")
	require.Contains(t, got.BackURLs["failure"], "/pagamento/falha?order=order-9")
	require.Equal(t, "approved", got.AutoReturn)
}

func TestCreatePreference_NoShippingLine(t *testing.T) {
	var got preferencePayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "pref-2"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "http://localhost:3000", "secret")

	_, err := c.CreatePreference(context.Background(), "order-10", []model.PreferenceItem{{ID: 1, Name: "X", Price: 5, Quantity: 1}}, 0)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Empty(t, got.AutoReturn, "auto_return must be off for localhost")
}

func TestCreatePreference_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid items"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "token", "https://loja.example.com", "secret")

	_, err := c.CreatePreference(context.Background(), "order-11", []model.PreferenceItem{{ID: 1, Price: 5, Quantity: 1}}, 0)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	require.Contains(t, upstream.Body, "invalid items")
}
