package config

import (
	"flag"
	"os"

	"go.uber.org/zap"
)

type Config struct {
	RunAddress    string
	DatabaseURI   string
	PaymentAPIURL string
	PaymentToken  string
	WebhookSecret string
	SiteURL       string
	AuthKey       string
	Logger        *zap.SugaredLogger
}

func NewConfig() *Config {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "server.log"}

	logger := zap.Must(logCfg.Build())

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "HTTP server address")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "DB connection string")
	flag.StringVar(&cfg.PaymentAPIURL, "p", "https://api.mercadopago.com", "payment processor base URL")
	flag.StringVar(&cfg.SiteURL, "s", "http://localhost:3000", "public site URL for return/notification links")
	flag.Parse()

	cfg.Logger = logger.Sugar()

	ReadServerEnvironment(cfg)

	return cfg
}

func ReadServerEnvironment(cfg *Config) {
	if runAddress := os.Getenv("RUN_ADDRESS"); runAddress != "" {
		cfg.RunAddress = runAddress
	}

	if databaseURI := os.Getenv("DATABASE_URI"); databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}

	if apiURL := os.Getenv("MP_API_ADDRESS"); apiURL != "" {
		cfg.PaymentAPIURL = apiURL
	}

	if token := os.Getenv("MP_ACCESS_TOKEN"); token != "" {
		cfg.PaymentToken = token
	}

	if secret := os.Getenv("MP_WEBHOOK_SECRET"); secret != "" {
		cfg.WebhookSecret = secret
	}

	if siteURL := os.Getenv("SITE_URL"); siteURL != "" {
		cfg.SiteURL = siteURL
	}

	if key := os.Getenv("AUTH_KEY"); key != "" {
		cfg.AuthKey = key
	}
}

// Validate is called once at startup: a long-running service must fail fast
// on missing secrets instead of deferring the failure into request handling.
func (cfg *Config) Validate() {
	if cfg.DatabaseURI == "" {
		cfg.Logger.Fatal("DATABASE_URI is required")
	}
	if cfg.PaymentToken == "" {
		cfg.Logger.Fatal("MP_ACCESS_TOKEN is required")
	}
	if cfg.WebhookSecret == "" {
		cfg.Logger.Fatal("MP_WEBHOOK_SECRET is required")
	}
	if cfg.AuthKey == "" {
		cfg.Logger.Fatal("AUTH_KEY is required")
	}
}
