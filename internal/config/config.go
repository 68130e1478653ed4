package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ServerConfig struct {
	Port      int `yaml:"port"`       // public API
	AdminPort int `yaml:"admin_port"` // admin API + /metrics
}

type AdminConfig struct {
	APIKey       string        `yaml:"api_key"` // exchanged for a session at /admin/login
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
	Email        string        `yaml:"email"` // digest/alert recipient
}

type GatewayConfig struct {
	KeyID         string        `yaml:"key_id"`
	KeySecret     string        `yaml:"key_secret"`
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	Provider            string        `yaml:"provider"` // razorpay|stripe|noop
	MinAmountMinor      int64         `yaml:"min_amount_minor"`
	MaxAmountMinor      int64         `yaml:"max_amount_minor"`
	ReconcileInterval   time.Duration `yaml:"reconcile_interval"`
	ReconcileStaleAfter time.Duration `yaml:"reconcile_stale_after"`
	Razorpay            GatewayConfig `yaml:"razorpay"`
	Stripe              GatewayConfig `yaml:"stripe"`
}

type InvoiceConfig struct {
	GSTPercent  int    `yaml:"gst_percent"` // split 50/50 CGST/SGST intra-state
	TDSPercent  int    `yaml:"tds_percent"`
	SellerName  string `yaml:"seller_name"`
	SellerGSTIN string `yaml:"seller_gstin"`
	SellerState string `yaml:"seller_state"`
	SellerEmail string `yaml:"seller_email"`
	SellerAddr  string `yaml:"seller_address"`
	DocumentDir string `yaml:"document_dir"`
}

type QueueConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type RetentionConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	InvoiceWindow   time.Duration `yaml:"invoice_window"`   // archive-then-delete after this age
	ArchiveWindow   time.Duration `yaml:"archive_window"`   // delete bundles after this age
	ArchiveDir      string        `yaml:"archive_dir"`
	DiskPath        string        `yaml:"disk_path"`
	DiskMinFreePct  int           `yaml:"disk_min_free_pct"`
	DigestInterval  time.Duration `yaml:"digest_interval"`
}

type NotifyConfig struct {
	SinkURL string        `yaml:"sink_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Invoice   InvoiceConfig   `yaml:"invoice"`
	Queue     QueueConfig     `yaml:"queue"`
	Retention RetentionConfig `yaml:"retention"`
	Notify    NotifyConfig    `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AdminPort <= 0 {
		cfg.Server.AdminPort = 9090
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "razorpay"
	}
	if cfg.Payment.MinAmountMinor <= 0 {
		cfg.Payment.MinAmountMinor = 100 // 1 rupee
	}
	if cfg.Payment.MaxAmountMinor <= 0 {
		cfg.Payment.MaxAmountMinor = 10_000_000_00 // 10 lakh rupees
	}
	if cfg.Payment.ReconcileInterval <= 0 {
		cfg.Payment.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Payment.ReconcileStaleAfter <= 0 {
		cfg.Payment.ReconcileStaleAfter = 30 * time.Minute
	}
	if cfg.Payment.Razorpay.Timeout <= 0 {
		cfg.Payment.Razorpay.Timeout = 15 * time.Second
	}
	if cfg.Payment.Stripe.Timeout <= 0 {
		cfg.Payment.Stripe.Timeout = 15 * time.Second
	}
	if cfg.Invoice.GSTPercent <= 0 {
		cfg.Invoice.GSTPercent = 18
	}
	if cfg.Invoice.TDSPercent < 0 {
		cfg.Invoice.TDSPercent = 0
	} else if cfg.Invoice.TDSPercent == 0 {
		cfg.Invoice.TDSPercent = 1
	}
	if cfg.Invoice.DocumentDir == "" {
		cfg.Invoice.DocumentDir = "data/invoices"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 2 * time.Second
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Retention.SweepInterval <= 0 {
		cfg.Retention.SweepInterval = 24 * time.Hour
	}
	if cfg.Retention.InvoiceWindow <= 0 {
		cfg.Retention.InvoiceWindow = 2 * 365 * 24 * time.Hour
	}
	if cfg.Retention.ArchiveWindow <= 0 {
		cfg.Retention.ArchiveWindow = 7 * 365 * 24 * time.Hour
	}
	if cfg.Retention.ArchiveDir == "" {
		cfg.Retention.ArchiveDir = "data/archives"
	}
	if cfg.Retention.DiskPath == "" {
		cfg.Retention.DiskPath = "data"
	}
	if cfg.Retention.DiskMinFreePct <= 0 {
		cfg.Retention.DiskMinFreePct = 10
	}
	if cfg.Retention.DigestInterval <= 0 {
		cfg.Retention.DigestInterval = 24 * time.Hour
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.MinAmountMinor >= cfg.Payment.MaxAmountMinor {
		return nil, errors.New("payment.min_amount_minor must be below max_amount_minor")
	}
	if !dev && cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
