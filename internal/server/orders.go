package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/middleware"
	"github.com/and161185/lojinha/internal/model"
	"github.com/and161185/lojinha/internal/utils"
	"github.com/go-chi/chi/v5"
)

// CreateOrderHandler is the admission path: it validates the cart against the
// configured per-day capacity and creates the order as PENDING. Amounts are
// fixed here; nothing downstream recomputes them.
func (s *Server) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(model.User)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req model.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	if req.CEP == "" || req.Street == "" || req.Number == "" || req.City == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.Weekday < 1 || req.Weekday > 7 {
		writeError(w, http.StatusBadRequest, "dia_semana must be 1-7")
		return
	}

	productIDs := make([]int, 0, len(req.Items))
	seen := make(map[int]bool, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid item product_id")
			return
		}
		if it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid item quantidade")
			return
		}
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			productIDs = append(productIDs, it.ProductID)
		}
	}

	products, err := s.storage.GetProducts(r.Context(), productIDs)
	if err != nil {
		if errors.Is(err, errs.ErrProductNotFound) {
			writeError(w, http.StatusBadRequest, "invalid products")
			return
		}
		s.deps.Logger.Errorf("get products: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	for _, p := range products {
		if !p.Active {
			writeError(w, http.StatusBadRequest, "cart contains an inactive product")
			return
		}
	}

	fee, err := s.storage.GetShippingFee(r.Context())
	if err != nil {
		s.deps.Logger.Errorf("get shipping fee: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	var subtotal float64
	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		price := products[it.ProductID].Price
		line := price * float64(it.Quantity)
		subtotal += line
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: price,
			Subtotal:  line,
		})
	}

	order := model.Order{
		UserID:      user.ID,
		City:        strings.TrimSpace(req.City),
		Weekday:     req.Weekday,
		CEP:         utils.OnlyDigits(req.CEP),
		Street:      strings.TrimSpace(req.Street),
		Number:      strings.TrimSpace(req.Number),
		Complement:  strings.TrimSpace(req.Complement),
		Subtotal:    subtotal,
		ShippingFee: fee,
		Total:       subtotal + fee,
	}

	orderID, err := s.storage.CreateOrder(r.Context(), order, items)
	if err != nil {
		var capErr *errs.CapacityExceededError
		switch {
		case errors.Is(err, errs.ErrCapacityNotConfigured):
			writeError(w, http.StatusBadRequest, "capacity not configured for a product on that day")
		case errors.As(err, &capErr):
			writeError(w, http.StatusConflict,
				fmt.Sprintf("limit exceeded for product %d on that day, remaining: %d", capErr.ProductID, capErr.Remaining))
		default:
			s.deps.Logger.Errorf("create order: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID})
}

// GetOrderHandler backs the landing pages' polling. The redirect URL is not
// trusted: status always comes from storage.
func (s *Server) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(model.User)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID := chi.URLParam(r, "id")

	order, err := s.storage.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.deps.Logger.Errorf("get order: %v", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	if order.UserID != user.ID && user.Role != "admin" {
		writeError(w, http.StatusForbidden, "no permission to view this order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) GetUserOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(model.User)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := s.storage.GetUserOrders(r.Context(), user)
	if err != nil {
		s.deps.Logger.Errorf("get user orders: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get orders")
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}
