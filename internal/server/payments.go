package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/middleware"
	"github.com/and161185/lojinha/internal/model"
	"github.com/and161185/lojinha/internal/payment"
)

// PreferenceHandler opens a hosted checkout session for an admitted order and
// stores the returned preference ID. One preference per call; re-calling
// replaces the stored ID.
func (s *Server) PreferenceHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(model.User)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req model.PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "no items for the preference")
		return
	}

	order, err := s.storage.GetOrder(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			writeError(w, http.StatusBadRequest, "unknown order")
			return
		}
		s.deps.Logger.Errorf("get order for preference: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if order.UserID != user.ID {
		writeError(w, http.StatusForbidden, "no permission for this order")
		return
	}

	pref, err := s.payments.CreatePreference(r.Context(), req.OrderID, req.Items, req.ShippingFee)
	if err != nil {
		var upstream *payment.UpstreamError
		if errors.As(err, &upstream) {
			// pass the processor's answer through to the checkout flow
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "processor rejected the preference",
				"mp":    json.RawMessage(upstream.Body),
			})
			return
		}
		s.deps.Logger.Errorf("create preference: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create preference")
		return
	}

	if err := s.storage.SetPreferenceID(r.Context(), req.OrderID, pref.ID); err != nil {
		s.deps.Logger.Errorf("set preference id: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}

	writeJSON(w, http.StatusOK, pref)
}

// VerifyHandler is the success page's eager check: fetch the payment once and
// fold it into the order, unless the order is already PAID.
func (s *Server) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "orderId and paymentId are required")
		return
	}

	order, err := s.storage.GetOrder(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			writeError(w, http.StatusBadRequest, "unknown order")
			return
		}
		s.deps.Logger.Errorf("get order for verify: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	pay, err := s.payments.GetPayment(r.Context(), req.PaymentID)
	if err != nil {
		var upstream *payment.UpstreamError
		if errors.As(err, &upstream) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": json.RawMessage(upstream.Body)})
			return
		}
		if errors.Is(err, errs.ErrPaymentNotVisible) {
			writeError(w, http.StatusBadRequest, "payment not found")
			return
		}
		s.deps.Logger.Errorf("fetch payment for verify: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch payment")
		return
	}

	next := model.FromProcessorStatus(pay.Status)

	if order.Status == model.StatusPaid {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": order.Status})
		return
	}

	if _, err := s.storage.ApplyPaymentStatus(r.Context(), req.OrderID, next, req.PaymentID); err != nil {
		s.deps.Logger.Errorf("verify update order: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": next})
}
