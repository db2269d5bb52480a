package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/model"
)

// Payment is the processor's own payment record, the ground truth the
// reconciler converges to. external_reference carries the local order ID.
type Payment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// UpstreamError carries the processor's rejection verbatim so callers can
// pass it through.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("processor returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	apiURL        string
	token         string
	siteURL       string
	webhookSecret string
	httpClient    *http.Client
}

func NewClient(apiURL, token, siteURL, webhookSecret string) *Client {
	return &Client{
		apiURL:        strings.TrimRight(apiURL, "/"),
		token:         token,
		siteURL:       strings.TrimRight(siteURL, "/"),
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferencePayload struct {
	Items             []preferenceItem  `json:"items"`
	BackURLs          map[string]string `json:"back_urls"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url"`
	AutoReturn        string            `json:"auto_return,omitempty"`
}

func isPublicHTTPS(siteURL string) bool {
	if !strings.HasPrefix(siteURL, "https://") {
		return false
	}
	if strings.Contains(siteURL, "localhost") || strings.Contains(siteURL, "127.0.0.1") {
		return false
	}
	return true
}

// CreatePreference opens a hosted checkout session for the order. The
// notification URL carries the shared secret; external_reference carries the
// order ID so the webhook can correlate the payment back.
func (c *Client) CreatePreference(ctx context.Context, orderID string, items []model.PreferenceItem, shippingFee float64) (Preference, error) {
	prefItems := make([]preferenceItem, 0, len(items)+1)
	for _, it := range items {
		title := it.Name
		if title == "" {
			title = fmt.Sprintf("Produto %d", it.ID)
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		prefItems = append(prefItems, preferenceItem{
			ID:         fmt.Sprintf("%d", it.ID),
			Title:      title,
			Quantity:   qty,
			UnitPrice:  it.Price,
			CurrencyID: "BRL",
		})
	}

	if shippingFee > 0 {
		prefItems = append(prefItems, preferenceItem{
			ID:         "FRETE",
			Title:      "Frete",
			Quantity:   1,
			UnitPrice:  shippingFee,
			CurrencyID: "BRL",
		})
	}

	escaped := url.QueryEscape(orderID)
	payload := preferencePayload{
		Items: prefItems,
		BackURLs: map[string]string{
			"success": fmt.Sprintf("%s/pagamento/sucesso?order=%s", c.siteURL, escaped),
			"pending": fmt.Sprintf("%s/pagamento/pendente?order=%s", c.siteURL, escaped),
			"failure": fmt.Sprintf("%s/pagamento/falha?order=%s", c.siteURL, escaped),
		},
		ExternalReference: orderID,
		NotificationURL:   fmt.Sprintf("%s/api/payments/webhook?secret=%s", c.siteURL, url.QueryEscape(c.webhookSecret)),
	}

	// auto_return breaks on non-public callback hosts
	if isPublicHTTPS(c.siteURL) {
		payload.AutoReturn = "approved"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Preference{}, fmt.Errorf("marshal preference: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return Preference{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Preference{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Preference{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Preference{}, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var pref Preference
	if err := json.Unmarshal(respBody, &pref); err != nil {
		return Preference{}, fmt.Errorf("decode preference: %w", err)
	}

	return pref, nil
}

// The processor sometimes announces a payment ID before the record is
// queryable, so a fresh payment can 404 for a short window.
var fetchWaits = []time.Duration{0, 700 * time.Millisecond, 1400 * time.Millisecond, 2800 * time.Millisecond}

// GetPayment fetches the payment record, retrying on 404 until the schedule
// is exhausted. Returns errs.ErrPaymentNotVisible when every attempt 404s and
// *UpstreamError for any other non-2xx answer.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	var lastStatus int
	var lastBody string

	for _, wait := range fetchWaits {
		if wait > 0 {
			select {
			case <-ctx.Done():
				return Payment{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/payments/"+paymentID, nil)
		if err != nil {
			return Payment{}, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return Payment{}, fmt.Errorf("send request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return Payment{}, fmt.Errorf("read response: %w", err)
		}

		lastStatus = resp.StatusCode
		lastBody = string(body)

		if resp.StatusCode == http.StatusNotFound {
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			var pay Payment
			if err := json.Unmarshal(body, &pay); err != nil {
				return Payment{}, fmt.Errorf("decode payment: %w", err)
			}
			return pay, nil
		}

		return Payment{}, &UpstreamError{StatusCode: resp.StatusCode, Body: lastBody}
	}

	if lastStatus == http.StatusNotFound {
		return Payment{}, errs.ErrPaymentNotVisible
	}

	return Payment{}, &UpstreamError{StatusCode: lastStatus, Body: lastBody}
}
