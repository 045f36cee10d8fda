// internal/workers/build/generate-build/config.go
package generatebuild

import (
	"time"

	"pcbuild-service/internal/common/config"
)

type Config struct {
	Timeout    time.Duration
	MaxRetries int
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	timeout := config.GetDuration(wc.Timeout)
	if nt := config.GetDuration(cfg.Negotiation.Timeout); nt > 0 && (timeout <= 0 || nt < timeout) {
		timeout = nt
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Config{
		Timeout:    timeout,
		MaxRetries: wc.MaxRetries,
	}
}
