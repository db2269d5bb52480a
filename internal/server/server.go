package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/and161185/lojinha/internal/config"
	"github.com/and161185/lojinha/internal/deps"
	"github.com/and161185/lojinha/internal/errs"
	"github.com/and161185/lojinha/internal/middleware"
	"github.com/and161185/lojinha/internal/model"
	"github.com/and161185/lojinha/internal/payment"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type Storage interface {
	CreateUser(ctx context.Context, login, passwordHash string) error
	GetUserByLogin(ctx context.Context, login string) (model.User, string, error)
	GetUserByID(ctx context.Context, id int) (model.User, error)

	GetProducts(ctx context.Context, ids []int) (map[int]model.Product, error)
	GetShippingFee(ctx context.Context) (float64, error)

	CreateOrder(ctx context.Context, order model.Order, items []model.OrderItem) (string, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	GetUserOrders(ctx context.Context, user model.User) ([]model.Order, error)
	SetPreferenceID(ctx context.Context, orderID string, preferenceID string) error
	ApplyPaymentStatus(ctx context.Context, orderID string, next model.PaymentStatus, paymentID string) (bool, error)

	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	UpdateDelivery(ctx context.Context, orderID string, status model.DeliveryStatus, notes string, markDelivered bool) error
}

type PaymentClient interface {
	CreatePreference(ctx context.Context, orderID string, items []model.PreferenceItem, shippingFee float64) (payment.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (payment.Payment, error)
}

type Server struct {
	storage  Storage
	payments PaymentClient
	config   *config.Config
	deps     *deps.Deps
}

func NewServer(storage Storage, payments PaymentClient, config *config.Config, deps *deps.Deps) *Server {
	return &Server{
		storage:  storage,
		payments: payments,
		config:   config,
		deps:     deps,
	}
}

func (srv *Server) buildRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.deps.Logger))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware)

	router.Post("/api/user/register", srv.RegisterHandler)
	router.Post("/api/user/login", srv.LoginHandler)

	// the processor calls this both ways
	router.Post("/api/payments/webhook", srv.WebhookHandler)
	router.Get("/api/payments/webhook", srv.WebhookHandler)

	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(srv.storage, srv.deps.TokenManager))

		r.Post("/api/orders", srv.CreateOrderHandler)
		r.Get("/api/orders/{id}", srv.GetOrderHandler)
		r.Get("/api/user/orders", srv.GetUserOrdersHandler)
		r.Post("/api/payments/preference", srv.PreferenceHandler)
		r.Post("/api/payments/verify", srv.VerifyHandler)

		r.Group(func(ar chi.Router) {
			ar.Use(middleware.RequireAdmin)
			ar.Get("/api/admin/orders", srv.ListOrdersHandler)
			ar.Patch("/api/admin/orders/{id}/delivery", srv.UpdateDeliveryHandler)
		})
	})

	return router
}

func (srv *Server) Run(ctx context.Context) error {
	router := srv.buildRouter()

	server := &http.Server{
		Addr:    srv.config.RunAddress,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srv.deps.Logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if creds.Login == "" || creds.Password == "" {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "hash error", http.StatusInternalServerError)
		return
	}

	err = s.storage.CreateUser(r.Context(), creds.Login, string(hash))
	if err != nil {
		if errors.Is(err, errs.ErrLoginAlreadyExists) {
			http.Error(w, "login taken", http.StatusConflict)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	user, _, err := s.storage.GetUserByLogin(r.Context(), creds.Login)
	if err != nil {
		http.Error(w, "failed to fetch user", http.StatusInternalServerError)
		return
	}

	token, err := s.deps.TokenManager.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if creds.Login == "" || creds.Password == "" {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}

	user, hash, err := s.storage.GetUserByLogin(r.Context(), creds.Login)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.deps.TokenManager.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}
