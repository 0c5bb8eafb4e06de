package payment

import (
	"errors"
	"net/url"
	"time"
)

const (
	defaultTranzilaFrameBaseURL = "https://direct.tranzila.com"
	defaultTranzilaAPIBaseURL   = "https://api.tranzila.com"
	defaultTranzilaDomain       = "tranzila.com"
	defaultTranzilaCurrency     = 1 // ILS
	defaultTranzilaLanguage     = "il"
	defaultTranzilaHTTPTimeout  = 30 * time.Second
)

// TranzilaConfig contains configuration for the Tranzila gateway
type TranzilaConfig struct {
	// Terminal is the terminal (supplier) name used for charges and the frame
	Terminal string
	// TokenTerminal is the terminal used to tokenize cards, defaults to Terminal
	TokenTerminal string
	// FrameBaseURL is the base URL of the hosted payment frame
	FrameBaseURL string
	// APIBaseURL is the base URL of the server-to-server API
	APIBaseURL string
	// GatewayDomain is the registrable domain trusted for frame messages
	GatewayDomain string
	// AppKey and Secret sign API requests
	AppKey string
	Secret string
	// Currency is the Tranzila currency code (1 = ILS, 2 = USD, 978 = EUR)
	Currency int
	// Language of the hosted frame
	Language string
	// HTTPTimeout bounds each API request
	HTTPTimeout time.Duration
}

// Errors for configuration validation
var (
	ErrTranzilaMissingTerminal = errors.New("tranzila: missing terminal name")
	ErrTranzilaMissingAppKey   = errors.New("tranzila: missing API app key")
	ErrTranzilaMissingSecret   = errors.New("tranzila: missing API secret")
	ErrTranzilaInvalidFrameURL = errors.New("tranzila: frame base URL must be an absolute https URL")
	ErrTranzilaInvalidAPIURL   = errors.New("tranzila: API base URL must be an absolute URL")
	ErrTranzilaMissingDomain   = errors.New("tranzila: missing gateway domain")
	ErrTranzilaInvalidCurrency = errors.New("tranzila: currency code must be positive")
	ErrTranzilaInvalidTimeout  = errors.New("tranzila: HTTP timeout must be positive")
)

// DefaultTranzilaConfig returns a config with the public Tranzila endpoints
// filled in. Terminal and credentials still need to be set.
func DefaultTranzilaConfig() TranzilaConfig {
	return TranzilaConfig{
		FrameBaseURL:  defaultTranzilaFrameBaseURL,
		APIBaseURL:    defaultTranzilaAPIBaseURL,
		GatewayDomain: defaultTranzilaDomain,
		Currency:      defaultTranzilaCurrency,
		Language:      defaultTranzilaLanguage,
		HTTPTimeout:   defaultTranzilaHTTPTimeout,
	}
}

// Validate validates the configuration
func (c *TranzilaConfig) Validate() error {
	if c.Terminal == "" {
		return ErrTranzilaMissingTerminal
	}
	if c.AppKey == "" {
		return ErrTranzilaMissingAppKey
	}
	if c.Secret == "" {
		return ErrTranzilaMissingSecret
	}
	if u, err := url.Parse(c.FrameBaseURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrTranzilaInvalidFrameURL
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return ErrTranzilaInvalidAPIURL
	}
	if c.GatewayDomain == "" {
		return ErrTranzilaMissingDomain
	}
	if c.Currency <= 0 {
		return ErrTranzilaInvalidCurrency
	}
	if c.HTTPTimeout <= 0 {
		return ErrTranzilaInvalidTimeout
	}
	return nil
}

func (c *TranzilaConfig) tokenTerminal() string {
	if c.TokenTerminal != "" {
		return c.TokenTerminal
	}
	return c.Terminal
}
