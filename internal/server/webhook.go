package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/model"
	"github.com/and161185/lojinha/internal/payment"
)

type webhookAck struct {
	OK      bool   `json:"ok"`
	Ignored bool   `json:"ignored,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func ackOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, webhookAck{OK: true})
}

func ackIgnored(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusOK, webhookAck{OK: true, Ignored: true, Reason: reason})
}

// WebhookHandler receives the processor's at-least-once, possibly out-of-order
// notifications. Everything after the secret check answers 200, including
// events that cannot be processed.
func (s *Server) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret")
	if secret == "" || secret != s.config.WebhookSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}

	var body []byte
	if r.Method == http.MethodPost && r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	event := payment.ExtractEvent(r.URL.Query(), body)
	if process, reason := event.ShouldProcess(); !process {
		s.deps.Logger.Infof("webhook ignored (%s): kind=%s id=%s", reason, event.Kind, event.PaymentID)
		ackIgnored(w, reason)
		return
	}

	pay, err := s.payments.GetPayment(r.Context(), event.PaymentID)
	if err != nil {
		if errors.Is(err, errs.ErrPaymentNotVisible) {
			// the processor will notify again once the record is queryable
			s.deps.Logger.Infof("webhook ignored (payment not found yet): id=%s", event.PaymentID)
			ackIgnored(w, "payment not found yet")
			return
		}
		s.deps.Logger.Errorf("webhook payment fetch: id=%s err=%v", event.PaymentID, err)
		ackIgnored(w, "payment fetch failed")
		return
	}

	s.reconcile(r.Context(), w, pay)
}

// reconcile converges the local order onto the fetched payment record.
// An order that reached PAID never leaves it, and a repeat of the current
// state writes nothing.
func (s *Server) reconcile(ctx context.Context, w http.ResponseWriter, pay payment.Payment) {
	paymentID := strconv.FormatInt(pay.ID, 10)

	if pay.ExternalReference == "" {
		s.deps.Logger.Warnf("webhook payment without external_reference: id=%s status=%s", paymentID, pay.Status)
		ackIgnored(w, "no external_reference")
		return
	}

	order, err := s.storage.GetOrder(ctx, pay.ExternalReference)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			s.deps.Logger.Infof("webhook ignored (order not found): order=%s payment=%s", pay.ExternalReference, paymentID)
			ackIgnored(w, "order not found")
			return
		}
		s.deps.Logger.Errorf("webhook load order: order=%s err=%v", pay.ExternalReference, err)
		ackIgnored(w, "order load failed")
		return
	}

	next := model.FromProcessorStatus(pay.Status)

	if order.Status == model.StatusPaid && next != model.StatusPaid {
		s.deps.Logger.Infof("webhook ignored (no downgrade from PAID): order=%s next=%s", order.ID, next)
		ackIgnored(w, "order already paid")
		return
	}

	if order.Status == next && order.PaymentID != nil && *order.PaymentID == paymentID {
		ackOK(w)
		return
	}

	changed, err := s.storage.ApplyPaymentStatus(ctx, order.ID, next, paymentID)
	if err != nil {
		// acknowledged anyway: a redelivery may land after the DB recovers
		s.deps.Logger.Errorf("webhook update order: order=%s err=%v", order.ID, err)
		ackIgnored(w, "update failed")
		return
	}

	if changed {
		s.deps.Logger.Infof("order reconciled: order=%s status=%s payment=%s mp_status=%s",
			order.ID, next, paymentID, pay.Status)
	}
	ackOK(w)
}
