package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const EnvironmentProduction = "production"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Database    Database
	AdminToken  string `env:"ADMIN_TOKEN"`
	RedisURL    string `env:"REDIS_URL"`

	Stripe   Stripe   `envPrefix:"STRIPE_"`
	Webhook  Webhook  `envPrefix:"WEBHOOK_"`
	Notifier Notifier `envPrefix:"NOTIFY_"`
}

type Stripe struct {
	SecretKey          string `env:"SECRET_KEY"`
	WebhookSecret      string `env:"WEBHOOK_SECRET"`
	SessionLookupLimit int    `env:"SESSION_LOOKUP_LIMIT" envDefault:"10"`
	// product id -> membership tier, e.g. "prod_abc:no-lock-in,prod_def:12-month"
	ProductTiers map[string]string `env:"PRODUCT_TIERS" envKeyValSeparator:":"`
}

type Webhook struct {
	DevBypassSignature      bool          `env:"DEV_BYPASS_SIGNATURE" envDefault:"false"`
	DevSignatureSentinel    string        `env:"DEV_SIGNATURE_SENTINEL" envDefault:"dev_bypass"`
	LenientVerification     bool          `env:"LENIENT_VERIFICATION" envDefault:"false"`
	ProcessingLease         time.Duration `env:"PROCESSING_LEASE" envDefault:"2m"`
	ProcessedCacheTTL       time.Duration `env:"PROCESSED_CACHE_TTL" envDefault:"72h"`
	UntypedPaymentAsBooking bool          `env:"UNTYPED_PAYMENT_AS_BOOKING" envDefault:"true"`
}

type Notifier struct {
	Driver   string `env:"DRIVER" envDefault:"log"` // log | amqp
	AMQPURL  string `env:"AMQP_URL"`
	Exchange string `env:"EXCHANGE" envDefault:"gym.notifications"`
}

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"mysql"` // mysql | postgres | sqlite
	URL    string `env:"DATABASE_URL"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment.Name, EnvironmentProduction)
}

// Validate reports misconfiguration that must stop the server from starting.
func (c *Config) Validate() error {
	var errs []error

	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.IsProduction() {
		if c.Webhook.DevBypassSignature {
			errs = append(errs, errors.New("WEBHOOK_DEV_BYPASS_SIGNATURE must not be enabled in production"))
		}
		if c.Webhook.LenientVerification {
			errs = append(errs, errors.New("WEBHOOK_LENIENT_VERIFICATION must not be enabled in production"))
		}
	}
	if c.Webhook.DevBypassSignature && c.Webhook.DevSignatureSentinel == "" {
		errs = append(errs, errors.New("WEBHOOK_DEV_SIGNATURE_SENTINEL must be set when the dev bypass is enabled"))
	}

	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}

	switch c.Notifier.Driver {
	case "log":
	case "amqp":
		if c.Notifier.AMQPURL == "" {
			errs = append(errs, errors.New("NOTIFY_AMQP_URL is required for the amqp notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported NOTIFY_DRIVER %q", c.Notifier.Driver))
	}

	if c.Stripe.SessionLookupLimit <= 0 {
		errs = append(errs, errors.New("STRIPE_SESSION_LOOKUP_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}
