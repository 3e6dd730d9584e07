package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the order service configuration, loadable from environment
// variables (COMMERCE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"Operational server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (COMMERCE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Reconcile   ReconcileConfig
	Health      HealthConfig
	Graceful    GracefulConfig
}

// ReconcileConfig controls the background order total reconciler.
type ReconcileConfig struct {
	Enabled   bool          `default:"true" usage:"Run the order total reconciler"`
	Interval  time.Duration `default:"5m" usage:"Delay between reconcile passes"`
	BatchSize int           `default:"200" usage:"Orders listed per page" flag:"reconcile-batch-size"`
	Workers   int           `default:"4" usage:"Orders reconciled concurrently"`
}

// HealthConfig controls background health checks.
type HealthConfig struct {
	Interval        time.Duration `default:"10s" usage:"Health check interval"`
	MaxGoroutines   int           `default:"10000" usage:"Liveness goroutine threshold" flag:"max-goroutines"`
	PostgresTimeout time.Duration `default:"5s" usage:"Postgres ping timeout" flag:"postgres-timeout"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform fallbacks.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "COMMERCE",
		Files:     []string{"config.yaml", "/etc/commerce/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, ac)
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set COMMERCE_DATABASE_URL or DATABASE_URL")
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		return errors.Errorf("reconcile interval must be positive, got %s", c.Reconcile.Interval)
	}
	return nil
}

// applyPlatformDefaults maps the DATABASE_URL and PORT variables set by
// hosting platforms onto the COMMERCE_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
