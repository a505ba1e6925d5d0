package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/frame/config"
)

type SignalConfig struct {
	config.ConfigurationDefault

	// Webhook delivery configuration. Retries are additional attempts on top
	// of the first one, so the default of 5 means 6 attempts in total.
	WebhookMaxRetries    int    `envDefault:"5"                env:"WEBHOOK_MAX_RETRIES"`
	WebhookRetryDelaySec int    `envDefault:"10"               env:"WEBHOOK_RETRY_DELAY_SEC"`
	WebhookSignatureAlgo string `envDefault:"sha512"           env:"WEBHOOK_SIGNATURE_ALGO"`
	WebhookSigHeader     string `envDefault:"X-Hook-Signature" env:"WEBHOOK_SIGNATURE_HEADER"`
	WebhookTokenParam    string `envDefault:"token"            env:"WEBHOOK_TOKEN_PARAM"`

	// Circuit breaker guarding tenant webhook endpoints
	BreakerMaxFailures     int64 `envDefault:"10" env:"WEBHOOK_BREAKER_MAX_FAILURES"`
	BreakerResetTimeoutSec int   `envDefault:"60" env:"WEBHOOK_BREAKER_RESET_TIMEOUT_SEC"`

	// Header the upstream auth proxy uses to convey the authenticated client
	ClientIDHeader string `envDefault:"X-Client-Id" env:"CLIENT_ID_HEADER"`
}

// WebhookRetryDelay returns the fixed delay between delivery attempts.
func (c *SignalConfig) WebhookRetryDelay() time.Duration {
	return time.Duration(c.WebhookRetryDelaySec) * time.Second
}

// BreakerResetTimeout returns how long an open webhook breaker waits before probing again.
func (c *SignalConfig) BreakerResetTimeout() time.Duration {
	return time.Duration(c.BreakerResetTimeoutSec) * time.Second
}

// Validate checks that the configuration is valid.
// Returns an error if any validation fails.
func (c *SignalConfig) Validate() error {
	var errs []error

	if c.WebhookMaxRetries < 0 {
		errs = append(errs, errors.New("WebhookMaxRetries must be >= 0"))
	}

	if c.WebhookRetryDelaySec <= 0 {
		errs = append(errs, errors.New("WebhookRetryDelaySec must be > 0"))
	}

	if err := validateSignatureAlgo(c.WebhookSignatureAlgo); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(c.WebhookSigHeader) == "" {
		errs = append(errs, errors.New("WebhookSigHeader cannot be empty"))
	}

	if strings.TrimSpace(c.WebhookTokenParam) == "" {
		errs = append(errs, errors.New("WebhookTokenParam cannot be empty"))
	}

	if c.BreakerMaxFailures <= 0 {
		errs = append(errs, errors.New("BreakerMaxFailures must be > 0"))
	}

	if c.BreakerResetTimeoutSec <= 0 {
		errs = append(errs, errors.New("BreakerResetTimeoutSec must be > 0"))
	}

	if strings.TrimSpace(c.ClientIDHeader) == "" {
		errs = append(errs, errors.New("ClientIDHeader cannot be empty"))
	}

	return errors.Join(errs...)
}

// validateSignatureAlgo checks that the configured HMAC hash is one we can construct.
func validateSignatureAlgo(algo string) error {
	switch algo {
	case "sha256", "sha512":
		return nil
	default:
		return fmt.Errorf("WebhookSignatureAlgo must be one of sha256, sha512: %s", algo)
	}
}
