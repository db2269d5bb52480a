package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/lojinha/internal/config"
	"github.com/and161185/lojinha/internal/deps"
	"github.com/and161185/lojinha/internal/payment"
	"github.com/and161185/lojinha/internal/server"
	"github.com/and161185/lojinha/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := config.NewConfig()
	config.Validate()

	storage, err := storage.NewPostgreStorage(ctx, config.DatabaseURI)
	if err != nil {
		config.Logger.Fatal(err)
	}

	deps := deps.NewDependencies(config.AuthKey)
	payments := payment.NewClient(config.PaymentAPIURL, config.PaymentToken, config.SiteURL, config.WebhookSecret)

	srv := server.NewServer(storage, payments, config, deps)
	if err := srv.Run(ctx); err != nil {
		config.Logger.Fatal(err)
	}
}
