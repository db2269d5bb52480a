package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/and161185/lojinha/internal/auth"
	"github.com/and161185/lojinha/internal/config"
	"github.com/and161185/lojinha/internal/deps"
	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/middleware"
	"github.com/and161185/lojinha/internal/mocks"
	"github.com/and161185/lojinha/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func setup(t *testing.T) (*Server, *mocks.MockStorage, *mocks.MockPaymentClient) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockStorage := mocks.NewMockStorage(ctrl)
	mockPayments := mocks.NewMockPaymentClient(ctrl)

	logger := zaptest.NewLogger(t)
	cfg := &config.Config{WebhookSecret: "hooksecret"}
	deps := &deps.Deps{
		TokenManager: auth.NewTokenManager("testsecret"),
		Logger:       logger.Sugar(),
	}

	srv := NewServer(mockStorage, mockPayments, cfg, deps)

	return srv, mockStorage, mockPayments
}

func requestAs(user model.User, method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, user)
	return req.WithContext(ctx)
}

func TestRegisterHandler(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		CreateUser(gomock.Any(), "user", gomock.Any()).
		Return(nil)

	mock.EXPECT().
		GetUserByLogin(gomock.Any(), "user").
		Return(model.User{ID: 1, Login: "user"}, "", nil)

	payload := `{"login":"user","password":"pass"}`
	req := httptest.NewRequest("POST", "/api/user/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.RegisterHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	authHeader := resp.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		t.Errorf("missing token")
	}
}

func TestLoginHandler(t *testing.T) {
	srv, mock, _ := setup(t)

	pw, _ := bcryptHash("pass")
	mock.EXPECT().
		GetUserByLogin(gomock.Any(), "user").
		Return(model.User{ID: 1, Login: "user"}, pw, nil)

	payload := `{"login":"user","password":"pass"}`
	req := httptest.NewRequest("POST", "/api/user/login", strings.NewReader(payload))
	w := httptest.NewRecorder()

	srv.LoginHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200")
	}
}

func TestCreateOrderHandler(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetProducts(gomock.Any(), []int{7}).
		Return(map[int]model.Product{7: {ID: 7, Name: "Marmita G", Price: 10, Active: true}}, nil)

	mock.EXPECT().
		GetShippingFee(gomock.Any()).
		Return(7.0, nil)

	mock.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, order model.Order, items []model.OrderItem) (string, error) {
			if order.Subtotal != 20 {
				t.Errorf("subtotal = %v; want 20", order.Subtotal)
			}
			if order.Total != 27 {
				t.Errorf("total = %v; want 27", order.Total)
			}
			if order.CEP != "01310100" {
				t.Errorf("cep = %q; want digits only", order.CEP)
			}
			if len(items) != 1 || items[0].Subtotal != 20 {
				t.Errorf("unexpected items: %+v", items)
			}
			return "order-1", nil
		})

	body := `{"cidade":"Campinas","dia_semana":3,"cep":"01310-100","rua":"Rua A","numero":"10","items":[{"product_id":7,"quantidade":2}]}`
	req := requestAs(model.User{ID: 1}, "POST", "/api/orders", body)
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateOrderHandler_CapacityExceeded(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetProducts(gomock.Any(), []int{7}).
		Return(map[int]model.Product{7: {ID: 7, Price: 10, Active: true}}, nil)

	mock.EXPECT().
		GetShippingFee(gomock.Any()).
		Return(7.0, nil)

	mock.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", &errs.CapacityExceededError{ProductID: 7, Remaining: 1})

	body := `{"cidade":"Campinas","dia_semana":3,"cep":"13000000","rua":"Rua A","numero":"10","items":[{"product_id":7,"quantidade":2}]}`
	req := requestAs(model.User{ID: 1}, "POST", "/api/orders", body)
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
	if !strings.Contains(w.Body.String(), "remaining: 1") {
		t.Errorf("expected remaining units in error, got %s", w.Body.String())
	}
}

func TestCreateOrderHandler_CapacityNotConfigured(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetProducts(gomock.Any(), []int{7}).
		Return(map[int]model.Product{7: {ID: 7, Price: 10, Active: true}}, nil)

	mock.EXPECT().
		GetShippingFee(gomock.Any()).
		Return(7.0, nil)

	mock.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errs.ErrCapacityNotConfigured)

	body := `{"cidade":"Campinas","dia_semana":3,"cep":"13000000","rua":"Rua A","numero":"10","items":[{"product_id":7,"quantidade":1}]}`
	req := requestAs(model.User{ID: 1}, "POST", "/api/orders", body)
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrderHandler_InactiveProduct(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetProducts(gomock.Any(), []int{7}).
		Return(map[int]model.Product{7: {ID: 7, Price: 10, Active: false}}, nil)

	body := `{"cidade":"Campinas","dia_semana":3,"cep":"13000000","rua":"Rua A","numero":"10","items":[{"product_id":7,"quantidade":1}]}`
	req := requestAs(model.User{ID: 1}, "POST", "/api/orders", body)
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrderHandler_BadWeekday(t *testing.T) {
	srv, _, _ := setup(t)

	body := `{"cidade":"Campinas","dia_semana":8,"cep":"13000000","rua":"Rua A","numero":"10","items":[{"product_id":7,"quantidade":1}]}`
	req := requestAs(model.User{ID: 1}, "POST", "/api/orders", body)
	w := httptest.NewRecorder()

	srv.CreateOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetOrderHandler_Owner(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetOrder(gomock.Any(), "order-1").
		Return(model.Order{ID: "order-1", UserID: 1, Status: model.StatusPending, CreatedAt: time.Now()}, nil)

	req := requestAs(model.User{ID: 1}, "GET", "/api/orders/order-1", "")
	req = withURLParam(req, "id", "order-1")
	w := httptest.NewRecorder()

	srv.GetOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGetOrderHandler_ForeignOrder(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetOrder(gomock.Any(), "order-1").
		Return(model.Order{ID: "order-1", UserID: 2, Total: 27}, nil)

	req := requestAs(model.User{ID: 1, Role: "customer"}, "GET", "/api/orders/order-1", "")
	req = withURLParam(req, "id", "order-1")
	w := httptest.NewRecorder()

	srv.GetOrderHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
	if strings.Contains(w.Body.String(), "27") {
		t.Error("order data leaked to a non-owner")
	}
}

func TestGetUserOrdersHandler(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetUserOrders(gomock.Any(), model.User{ID: 1}).
		Return([]model.Order{{ID: "order-1", Status: model.StatusPaid, CreatedAt: time.Now()}}, nil)

	req := requestAs(model.User{ID: 1}, "GET", "/api/user/orders", "")
	w := httptest.NewRecorder()

	srv.GetUserOrdersHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200")
	}
}

func TestGetUserOrdersHandler_Empty(t *testing.T) {
	srv, mock, _ := setup(t)

	mock.EXPECT().
		GetUserOrders(gomock.Any(), model.User{ID: 1}).
		Return(nil, nil)

	req := requestAs(model.User{ID: 1}, "GET", "/api/user/orders", "")
	w := httptest.NewRecorder()

	srv.GetUserOrdersHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func bcryptHash(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), 10)
	return string(hash), err
}
