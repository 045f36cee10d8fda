package negotiator

import (
	"fmt"
	"strings"

	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/models"
)

const (
	HistoryReplace    = "replace"
	HistoryCumulative = "cumulative"

	DefaultMaxAttempts = 20
	DefaultCurrency    = "KZT"
)

type Config struct {
	MaxAttempts int
	Tolerance   TolerancePolicy
	HistoryMode string
	Currency    string
	PriceField  models.PriceField
}

// ConfigFrom maps the negotiation section of the service config.
func ConfigFrom(cfg config.NegotiationConfig) (Config, error) {
	policy, err := NewTolerancePolicy(cfg.Tolerance.Policy, cfg.Tolerance.Percent, cfg.Tolerance.Absolute)
	if err != nil {
		return Config{}, err
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.HistoryMode))
	switch mode {
	case "":
		mode = HistoryReplace
	case HistoryReplace, HistoryCumulative:
	default:
		return Config{}, fmt.Errorf("unknown history mode %q", cfg.HistoryMode)
	}

	field, err := models.ParsePriceField(cfg.PriceField)
	if err != nil {
		return Config{}, err
	}

	return Config{
		MaxAttempts: cfg.MaxAttempts,
		Tolerance:   policy,
		HistoryMode: mode,
		Currency:    cfg.Currency,
		PriceField:  field,
	}.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Tolerance == nil {
		c.Tolerance = NewPercentTolerance(DefaultPercent)
	}
	if c.HistoryMode == "" {
		c.HistoryMode = HistoryReplace
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.PriceField == "" {
		c.PriceField = models.PriceList
	}
	return c
}
