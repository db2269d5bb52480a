package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/lojinha/internal/model"
	"github.com/golang/mock/gomock"
)

func TestListOrdersHandler_Filters(t *testing.T) {
	srv, storage, _ := setup(t)

	storage.EXPECT().
		ListOrders(gomock.Any(), model.OrderFilter{
			PaymentStatus:  "PAID",
			DeliveryStatus: "NEW",
			City:           "Campinas",
			Limit:          50,
		}).
		Return([]model.Order{{ID: "order-1", City: "Campinas"}}, nil)

	req := requestAs(model.User{ID: 1, Role: "admin"}, "GET",
		"/api/admin/orders?pay=paid&del=new&cidade=Campinas&limit=50", "")
	w := httptest.NewRecorder()

	srv.ListOrdersHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Orders []model.Order `json:"orders"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(resp.Orders))
	}
}

func TestListOrdersHandler_TermFilter(t *testing.T) {
	srv, storage, _ := setup(t)

	storage.EXPECT().
		ListOrders(gomock.Any(), gomock.Any()).
		Return([]model.Order{
			{ID: "abc-1", City: "Campinas", CEP: "13000000"},
			{ID: "def-2", City: "Valinhos", CEP: "13270000"},
		}, nil)

	req := requestAs(model.User{ID: 1, Role: "admin"}, "GET", "/api/admin/orders?q=valinhos", "")
	w := httptest.NewRecorder()

	srv.ListOrdersHandler(w, req)

	var resp struct {
		Orders []model.Order `json:"orders"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].ID != "def-2" {
		t.Errorf("unexpected filtered orders: %+v", resp.Orders)
	}
}

func TestUpdateDeliveryHandler(t *testing.T) {
	srv, storage, _ := setup(t)

	storage.EXPECT().
		UpdateDelivery(gomock.Any(), "order-1", model.DeliveryDelivered, "left at the door", true).
		Return(nil)

	body := `{"delivery_status":"delivered","delivery_notes":"left at the door","markDelivered":true}`
	req := requestAs(model.User{ID: 1, Role: "admin"}, "PATCH", "/api/admin/orders/order-1/delivery", body)
	req = withURLParam(req, "id", "order-1")
	w := httptest.NewRecorder()

	srv.UpdateDeliveryHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestUpdateDeliveryHandler_BadStatus(t *testing.T) {
	srv, _, _ := setup(t)

	for _, body := range []string{
		`{}`,
		`{"delivery_status":"SHIPPED"}`,
	} {
		req := requestAs(model.User{ID: 1, Role: "admin"}, "PATCH", "/api/admin/orders/order-1/delivery", body)
		req = withURLParam(req, "id", "order-1")
		w := httptest.NewRecorder()

		srv.UpdateDeliveryHandler(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}
