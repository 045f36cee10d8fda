// internal/workers/build/estimate-fps/handler.go
package estimatefps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	errs "pcbuild-service/internal/common/errors"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/common/metrics"
	"pcbuild-service/internal/common/validation"
	"pcbuild-service/internal/fps"
)

const (
	TaskType = "estimate-fps"
)

type Estimator interface {
	Estimate(ctx context.Context, componentNames, gameNames []string) (map[string]string, error)
}

type InputValidator interface {
	ValidateInput(taskType string, variables []byte) (*validation.ValidationResult, error)
}

type Handler struct {
	config       *Config
	estimator    Estimator
	validator    InputValidator
	errorHandler *errs.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, estimator Estimator, validator InputValidator, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		estimator:    estimator,
		validator:    validator,
		errorHandler: errs.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	if h.validator != nil {
		result, err := h.validator.ValidateInput(TaskType, []byte(variables))
		if err != nil {
			return nil, errs.NewInvalidRequestError(err.Error())
		}
		if !result.Valid {
			return nil, errs.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	estimates, err := h.estimator.Estimate(ctx, input.ComponentNames, input.GameNames)
	if err != nil {
		return nil, fps.StandardErrorFrom(err)
	}
	return &Output{FPS: estimates}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr, ok := errs.AsStandardError(err)
	if !ok {
		stdErr = errs.NewInternalError(err)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()

	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
