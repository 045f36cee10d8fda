// internal/common/camunda/worker.go
package camunda

import (
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/common/logger"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Workers keeps the job workers opened against one client so they can be
// closed together on shutdown.
type Workers struct {
	client  zbc.Client
	logger  logger.Logger
	workers map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a job worker for taskType unless wcfg disables it. It reports
// whether a worker was opened.
func (w *Workers) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		w.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 5
	}

	w.workers[taskType] = w.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobs).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobs,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// Running lists the task types with an open worker.
func (w *Workers) Running() []string {
	types := make([]string, 0, len(w.workers))
	for t := range w.workers {
		types = append(types, t)
	}
	return types
}

// Stop closes every worker and waits for in-flight handlers.
func (w *Workers) Stop() {
	for taskType, jw := range w.workers {
		w.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
	}
	w.workers = make(map[string]worker.JobWorker)
}
