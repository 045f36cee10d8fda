// internal/workers/build/estimate-fps/config.go
package estimatefps

import (
	"time"

	"pcbuild-service/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Config{Timeout: timeout}
}
