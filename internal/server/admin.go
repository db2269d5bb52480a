package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/model"
	"github.com/go-chi/chi/v5"
)

func (s *Server) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := model.OrderFilter{
		PaymentStatus:  strings.ToUpper(strings.TrimSpace(q.Get("pay"))),
		DeliveryStatus: strings.ToUpper(strings.TrimSpace(q.Get("del"))),
		City:           strings.TrimSpace(q.Get("cidade")),
		Term:           strings.ToLower(strings.TrimSpace(q.Get("q"))),
		Limit:          limit,
	}

	orders, err := s.storage.ListOrders(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Errorf("list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	if filter.Term != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if matchesTerm(o, filter.Term) {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func matchesTerm(o model.Order, term string) bool {
	return strings.Contains(strings.ToLower(o.ID), term) ||
		strings.Contains(strings.ToLower(o.City), term) ||
		strings.Contains(strings.ToLower(o.CEP), term) ||
		strings.Contains(strconv.Itoa(o.UserID), term)
}

// UpdateDeliveryHandler mutates delivery fields only; payment status stays
// with the reconciler.
func (s *Server) UpdateDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req model.DeliveryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	status := strings.ToUpper(strings.TrimSpace(req.DeliveryStatus))
	if status == "" {
		writeError(w, http.StatusBadRequest, "delivery_status is required")
		return
	}
	if !model.ValidDeliveryStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown delivery_status")
		return
	}

	err := s.storage.UpdateDelivery(r.Context(), orderID, model.DeliveryStatus(status), req.DeliveryNotes, req.MarkDelivered)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.deps.Logger.Errorf("update delivery: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
