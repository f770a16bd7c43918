// Package config loads engine and storefront settings: defaults first, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Routes struct {
	Change string `yaml:"change"`
	Add    string `yaml:"add"`
	Update string `yaml:"update"`
	Cart   string `yaml:"cart"`
}

// Strings are the user-facing messages of the drawer. QuantityError carries a
// [quantity] placeholder.
type Strings struct {
	Error         string `yaml:"error"`
	QuantityError string `yaml:"quantity_error"`
	Unavailable   string `yaml:"unavailable"`
	AddFailed     string `yaml:"add_failed"`
	SubscribeFail string `yaml:"subscription_failed"`
}

type Breaker struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

type Engine struct {
	StorefrontURL     string        `yaml:"storefront_url"`
	Session           string        `yaml:"session"` // cart session token to resume
	PagePath          string        `yaml:"page_path"`
	Routes            Routes        `yaml:"routes"`
	SampleThreshold   string        `yaml:"sample_threshold"`
	TransitionTimeout time.Duration `yaml:"transition_timeout"`
	CartErrorTTL      time.Duration `yaml:"cart_error_ttl"`
	RequestTimeout    time.Duration `yaml:"request_timeout"` // zero: no timeout
	Breaker           Breaker       `yaml:"breaker"`
	Strings           Strings       `yaml:"strings"`
}

type Storefront struct {
	HTTPPort        string        `yaml:"http_port"`
	Store           string        `yaml:"store"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	CartTTL         time.Duration `yaml:"cart_ttl"`
	RateLimitRPS    int           `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CatalogFile     string        `yaml:"catalog_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SampleThreshold int64         `yaml:"sample_threshold"`
}

type Config struct {
	Engine     Engine     `yaml:"engine"`
	Storefront Storefront `yaml:"storefront"`
}

func Default() *Config {
	return &Config{
		Engine: Engine{
			StorefrontURL: "http://localhost:8080",
			PagePath:      "/",
			Routes: Routes{
				Change: "/cart/change.js",
				Add:    "/cart/add.js",
				Update: "/cart/update.js",
				Cart:   "/cart.js",
			},
			TransitionTimeout: 500 * time.Millisecond,
			CartErrorTTL:      3 * time.Second,
			Breaker: Breaker{
				MaxFailures: 5,
				OpenTimeout: 10 * time.Second,
			},
			Strings: Strings{
				Error:         "There was an error while updating your cart. Please try again.",
				QuantityError: "You can only add [quantity] of this item to your cart.",
				Unavailable:   "This product is currently unavailable.",
				AddFailed:     "Failed to add product to cart. Please try again.",
				SubscribeFail: "Failed to update subscription. Please try again.",
			},
		},
		Storefront: Storefront{
			HTTPPort:        "8080",
			Store:           "memory",
			RedisAddr:       "localhost:6379",
			CartTTL:         24 * time.Hour,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			ShutdownTimeout: 10 * time.Second,
			SampleThreshold: 5000,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if _, err := cfg.Engine.Threshold(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Engine.StorefrontURL = getEnv("STOREFRONT_URL", c.Engine.StorefrontURL)
	c.Engine.PagePath = getEnv("STOREFRONT_PAGE_PATH", c.Engine.PagePath)
	c.Engine.Session = getEnv("CART_SESSION", c.Engine.Session)
	c.Engine.SampleThreshold = getEnv("CART_SAMPLE_THRESHOLD", c.Engine.SampleThreshold)
	c.Engine.TransitionTimeout = getDuration("DRAWER_TRANSITION_TIMEOUT", c.Engine.TransitionTimeout)
	c.Engine.RequestTimeout = getDuration("CART_REQUEST_TIMEOUT", c.Engine.RequestTimeout)

	c.Storefront.HTTPPort = getEnv("HTTP_PORT", c.Storefront.HTTPPort)
	c.Storefront.Store = getEnv("CART_STORE", c.Storefront.Store)
	c.Storefront.RedisAddr = getEnv("REDIS_ADDR", c.Storefront.RedisAddr)
	c.Storefront.RedisPassword = getEnv("REDIS_PASSWORD", c.Storefront.RedisPassword)
	c.Storefront.CatalogFile = getEnv("CATALOG_FILE", c.Storefront.CatalogFile)
	c.Storefront.CartTTL = getDuration("CART_TTL", c.Storefront.CartTTL)
	if v, err := strconv.ParseInt(getEnv("STOREFRONT_SAMPLE_THRESHOLD", ""), 10, 64); err == nil {
		c.Storefront.SampleThreshold = v
	}
}

// Threshold parses the sample threshold, in the platform's minor currency
// unit. Zero means no threshold is configured.
func (e Engine) Threshold() (threshold decimal.Decimal, err error) {
	if e.SampleThreshold == "" {
		return decimal.Zero, nil
	}
	threshold, err = decimal.NewFromString(e.SampleThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid sample threshold %q: %w", e.SampleThreshold, err)
	}
	return threshold, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
