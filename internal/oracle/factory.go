package oracle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/common/metrics"
)

const (
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai_compatible"
	ProviderAnthropic        = "anthropic"
	ProviderGemini           = "gemini"
)

// Settings is the provider-neutral subset of config.OracleConfig.
type Settings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature *float64
	MaxRetries  int
}

func SettingsFromConfig(cfg config.OracleConfig) Settings {
	s := Settings{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		MaxTokens:  cfg.MaxTokens,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		s.Temperature = &t
	}
	return s
}

// New builds the oracle for cfg.Provider, instrumented with request metrics.
func New(ctx context.Context, cfg config.OracleConfig, httpClient *http.Client) (*Instrumented, error) {
	settings := SettingsFromConfig(cfg)

	var inner Oracle
	switch settings.Provider {
	case ProviderOpenAI, ProviderOpenAICompatible:
		inner = NewOpenAI(settings, httpClient)
	case ProviderAnthropic:
		inner = NewAnthropic(settings, httpClient)
	case ProviderGemini:
		g, err := NewGemini(ctx, settings, httpClient)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", settings.Provider)
	}

	return NewInstrumented(settings.Provider, inner), nil
}

// Instrumented records request duration per provider and outcome.
type Instrumented struct {
	provider string
	next     Oracle
}

func NewInstrumented(provider string, next Oracle) *Instrumented {
	return &Instrumented{provider: provider, next: next}
}

func (i *Instrumented) Provider() string {
	return i.provider
}

func (i *Instrumented) Complete(ctx context.Context, system string, conversation []Message) (string, error) {
	start := time.Now()
	reply, err := i.next.Complete(ctx, system, conversation)

	status := "ok"
	if err != nil {
		status = "error"
		te := AsTransportError(i.provider, err)
		if te.Timeout() {
			status = "timeout"
		}
		err = te
	}
	metrics.OracleRequestDuration.WithLabelValues(i.provider, status).Observe(time.Since(start).Seconds())
	return reply, err
}
