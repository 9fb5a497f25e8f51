package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config is the API server configuration, loadable from REBATE_-prefixed
// environment variables, flags or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Store        StoreConfig
	ProductCache ProductCacheConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// ProductCacheConfig controls the in-process product cache. A zero TTL
// disables it.
type ProductCacheConfig struct {
	TTL     time.Duration `default:"30s" usage:"Product cache entry TTL, 0 disables the cache"`
	Cleanup time.Duration `default:"1m" usage:"Product cache purge interval"`
}

// KafkaConfig controls calculation event publishing. Publishing is off when
// no brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers (host:port)"`
	Topic   string   `default:"rebate-calculations" usage:"Kafka topic for calculation events"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m" usage:"Rate limit refill window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s" usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from the environment, config files and
// command-line flags.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "REBATE"
	if !base.SkipFiles {
		base.Files = []string{"config.yaml", "/etc/rebate/config.yaml"}
		base.FileDecoders = map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		}
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the DATABASE_URL and PORT variables that hosting
// platforms set to the REBATE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
