package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validator enforces constraints on Config.
type Validator interface {
	Validate(*Config) error
}

// DefaultValidator checks everything the server needs to start.
type DefaultValidator struct {
	maxTemperature float64
}

// NewDefaultValidator builds the validator used by Loader.
func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{maxTemperature: 2}
}

// Validate reports every problem found, joined.
func (v *DefaultValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	switch cfg.Provider.Name {
	case ProviderXAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("provider.name %q must be %q or %q", cfg.Provider.Name, ProviderXAI, ProviderAnthropic))
	}
	if cfg.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider api key is required (XAI_API_KEY or ANTHROPIC_API_KEY)"))
	}
	if cfg.Provider.BaseURL != "" {
		if u, err := url.Parse(cfg.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("provider.base_url %q is not an absolute URL", cfg.Provider.BaseURL))
		}
	}
	if cfg.Provider.Timeout < 0 {
		errs = append(errs, errors.New("provider.timeout must not be negative"))
	}

	if t := cfg.Completion.Temperature; t != nil && (*t < 0 || *t > v.maxTemperature) {
		errs = append(errs, fmt.Errorf("completion.temperature %.2f outside [0, %.0f]", *t, v.maxTemperature))
	}
	if cfg.Completion.MaxTokens < 0 {
		errs = append(errs, errors.New("completion.max_tokens must not be negative"))
	}
	if cfg.Completion.MaxRounds < 0 {
		errs = append(errs, errors.New("completion.max_rounds must not be negative"))
	}

	if cfg.Auth.Username == "" {
		errs = append(errs, errors.New("auth.username is required"))
	}
	if cfg.Auth.Secret == "" {
		errs = append(errs, errors.New("token secret is required (SECRET_KEY)"))
	}
	if cfg.Auth.PasswordHash == "" && cfg.Auth.Password == "" {
		errs = append(errs, errors.New("auth.password_hash or PASSWORD is required"))
	}
	if cfg.Auth.TokenTTL < 0 {
		errs = append(errs, errors.New("auth.token_ttl must not be negative"))
	}

	switch cfg.Store.Backend {
	case BackendFile:
		if cfg.Store.Root == "" {
			errs = append(errs, errors.New("store.root is required for the file backend"))
		}
	case BackendS3:
		if cfg.Store.S3.Bucket == "" {
			errs = append(errs, errors.New("store.s3.bucket is required for the s3 backend (S3_BUCKET)"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be %q or %q", cfg.Store.Backend, BackendFile, BackendS3))
	}

	if cfg.Tools.SearchTimeout < 0 || cfg.Tools.CodeTimeout < 0 {
		errs = append(errs, errors.New("tool timeouts must not be negative"))
	}
	if err := cfg.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
