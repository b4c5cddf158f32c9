package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transaction store backends.
const (
	TransactionStorePostgres = "postgres"
	TransactionStoreMemory   = "memory"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress        string
	DatabaseURI       string
	TokenSecret       string
	TokenTTL          time.Duration
	TransactionStore  string
	Mpesa             MpesaConfig
	ReconcileInterval time.Duration
	ReconcileBatch    int
	WorkerPoolSize    int
	PendingQueryAfter time.Duration
	CallbackRPS       float64
	CallbackBurst     int
	ShutdownTimeout   time.Duration
	LogLevel          slog.Level
}

// MpesaConfig configures the payment gateway client.
type MpesaConfig struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	Timeout          time.Duration
	ProbeAddress     string
	ProbeTimeout     time.Duration
}

const (
	defaultRunAddress        = ":8080"
	defaultTokenSecret       = "change-me-in-production"
	defaultTokenTTL          = 24 * time.Hour
	defaultEnvFile           = ".env"
	defaultMpesaBaseURL      = "https://sandbox.safaricom.co.ke"
	defaultShortCode         = "174379"
	defaultAccountReference  = "KukuHub"
	defaultMpesaTimeout      = 30 * time.Second
	defaultProbeAddress      = "8.8.8.8:53"
	defaultProbeTimeout      = 3 * time.Second
	defaultReconcileInterval = 5 * time.Second
	defaultReconcileBatch    = 32
	defaultWorkerPoolSize    = 4
	defaultPendingQueryAfter = 2 * time.Minute
	defaultCallbackRPS       = 5
	defaultCallbackBurst     = 20
	defaultShutdownTimeout   = 10 * time.Second
)

// Load parses configuration from an optional dotenv file, environment variables and flags.
func Load() (*Config, error) {
	envFile := getString(os.LookupEnv, "ENV_FILE", defaultEnvFile)
	fileEnv, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	return load(os.Args[1:], chain(os.LookupEnv, mapLookup(fileEnv)))
}

type envLookup func(string) (string, bool)

func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return values, nil
}

func mapLookup(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// chain consults lookups in order; the process environment wins over the dotenv file.
func chain(lookups ...envLookup) envLookup {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if v, ok := lookup(key); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:       getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:      getString(lookup, "DATABASE_URI", ""),
		TokenSecret:      getString(lookup, "TOKEN_SECRET", defaultTokenSecret),
		TokenTTL:         getDuration(lookup, "TOKEN_TTL", defaultTokenTTL),
		TransactionStore: getString(lookup, "TRANSACTION_STORE", TransactionStorePostgres),
		Mpesa: MpesaConfig{
			BaseURL:          getString(lookup, "MPESA_BASE_URL", defaultMpesaBaseURL),
			ConsumerKey:      getString(lookup, "MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:   getString(lookup, "MPESA_CONSUMER_SECRET", ""),
			ShortCode:        getString(lookup, "MPESA_SHORTCODE", defaultShortCode),
			Passkey:          getString(lookup, "MPESA_PASSKEY", ""),
			CallbackURL:      getString(lookup, "MPESA_CALLBACK_URL", ""),
			AccountReference: getString(lookup, "MPESA_ACCOUNT_REFERENCE", defaultAccountReference),
			Timeout:          getDuration(lookup, "MPESA_TIMEOUT", defaultMpesaTimeout),
			ProbeAddress:     getString(lookup, "CONNECTIVITY_PROBE_ADDRESS", defaultProbeAddress),
			ProbeTimeout:     getDuration(lookup, "CONNECTIVITY_PROBE_TIMEOUT", defaultProbeTimeout),
		},
		ReconcileInterval: getDuration(lookup, "RECONCILE_INTERVAL", defaultReconcileInterval),
		ReconcileBatch:    getInt(lookup, "RECONCILE_BATCH_SIZE", defaultReconcileBatch),
		WorkerPoolSize:    getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		PendingQueryAfter: getDuration(lookup, "PENDING_QUERY_AFTER", defaultPendingQueryAfter),
		CallbackRPS:       getFloat(lookup, "CALLBACK_RPS", defaultCallbackRPS),
		CallbackBurst:     getInt(lookup, "CALLBACK_BURST", defaultCallbackBurst),
		ShutdownTimeout:   getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	flags := flag.NewFlagSet("marketplace", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var (
		mpesaTimeoutStr      = cfg.Mpesa.Timeout.String()
		reconcileIntervalStr = cfg.ReconcileInterval.String()
		pendingQueryAfterStr = cfg.PendingQueryAfter.String()
		shutdownTimeoutStr   = cfg.ShutdownTimeout.String()
	)

	flags.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	flags.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	flags.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "Secret shared with the auth service for bearer tokens")
	flags.StringVar(&cfg.TransactionStore, "tx-store", cfg.TransactionStore, "Transaction store backend: postgres or memory")
	flags.StringVar(&cfg.Mpesa.BaseURL, "mpesa-url", cfg.Mpesa.BaseURL, "Payment gateway base URL")
	flags.StringVar(&cfg.Mpesa.CallbackURL, "callback-url", cfg.Mpesa.CallbackURL, "Public URL the gateway posts results to")
	flags.StringVar(&mpesaTimeoutStr, "mpesa-timeout", mpesaTimeoutStr, "Timeout for payment gateway calls")
	flags.StringVar(&reconcileIntervalStr, "reconcile-interval", reconcileIntervalStr, "Interval between reconciliation passes")
	flags.IntVar(&cfg.ReconcileBatch, "reconcile-batch", cfg.ReconcileBatch, "Maximum transactions per reconciliation pass")
	flags.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent reconciliation workers")
	flags.StringVar(&pendingQueryAfterStr, "pending-query-after", pendingQueryAfterStr, "Age after which pending transactions are queried at the gateway")
	flags.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.Mpesa.Timeout, err = time.ParseDuration(mpesaTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid mpesa timeout: %w", err)
	}
	if cfg.ReconcileInterval, err = time.ParseDuration(reconcileIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid reconcile interval: %w", err)
	}
	if cfg.PendingQueryAfter, err = time.ParseDuration(pendingQueryAfterStr); err != nil {
		return nil, fmt.Errorf("invalid pending query age: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.TokenSecret, err = secretFromFile(lookup, "TOKEN_SECRET_FILE", cfg.TokenSecret); err != nil {
		return nil, err
	}
	if cfg.Mpesa.Passkey, err = secretFromFile(lookup, "MPESA_PASSKEY_FILE", cfg.Mpesa.Passkey); err != nil {
		return nil, err
	}

	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = defaultReconcileBatch
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	if cfg.PendingQueryAfter <= 0 {
		cfg.PendingQueryAfter = defaultPendingQueryAfter
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Mpesa.Timeout <= 0 {
		cfg.Mpesa.Timeout = defaultMpesaTimeout
	}
	if cfg.Mpesa.ProbeTimeout <= 0 {
		cfg.Mpesa.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.CallbackRPS <= 0 {
		cfg.CallbackRPS = defaultCallbackRPS
	}
	if cfg.CallbackBurst <= 0 {
		cfg.CallbackBurst = defaultCallbackBurst
	}
	cfg.TransactionStore = strings.ToLower(strings.TrimSpace(cfg.TransactionStore))
}

func validate(cfg *Config) error {
	if cfg.DatabaseURI == "" {
		return fmt.Errorf("database URI must be provided")
	}
	switch cfg.TransactionStore {
	case TransactionStorePostgres, TransactionStoreMemory:
	default:
		return fmt.Errorf("unknown transaction store %q", cfg.TransactionStore)
	}
	if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" {
		return fmt.Errorf("mpesa consumer key and secret must be provided")
	}
	if cfg.Mpesa.Passkey == "" {
		return fmt.Errorf("mpesa passkey must be provided")
	}
	if cfg.Mpesa.CallbackURL == "" {
		return fmt.Errorf("mpesa callback URL must be provided")
	}
	return nil
}

func secretFromFile(lookup envLookup, key, current string) (string, error) {
	path, ok := lookup(key)
	if !ok || path == "" {
		return current, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(key), err)
	}
	return strings.TrimSpace(string(content)), nil
}

// UsesDefaultTokenSecret reports whether bearer tokens are verified with the built-in development secret.
func (c *Config) UsesDefaultTokenSecret() bool {
	return c.TokenSecret == defaultTokenSecret
}

// LogValue hides credentials when the configuration is logged.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_address", c.RunAddress),
		slog.String("transaction_store", c.TransactionStore),
		slog.Any("mpesa", c.Mpesa),
		slog.Duration("reconcile_interval", c.ReconcileInterval),
		slog.Int("worker_pool", c.WorkerPoolSize),
		slog.Duration("token_ttl", c.TokenTTL),
	)
}

// LogValue hides gateway credentials when the configuration is logged.
func (m MpesaConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", m.BaseURL),
		slog.String("short_code", m.ShortCode),
		slog.String("callback_url", m.CallbackURL),
		slog.String("consumer_key", redact(m.ConsumerKey)),
		slog.String("consumer_secret", redact(m.ConsumerSecret)),
		slog.String("passkey", redact(m.Passkey)),
		slog.Duration("timeout", m.Timeout),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(lookup envLookup, key string, def float64) float64 {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
