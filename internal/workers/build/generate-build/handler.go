// internal/workers/build/generate-build/handler.go
package generatebuild

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
	"pcbuild-service/internal/negotiator"
)

const (
	TaskType = "generate-build"
)

type Generator interface {
	Generate(ctx context.Context, budget int64) (*negotiator.Result, error)
}

type InputValidator interface {
	ValidateInput(taskType string, variables []byte) (*validation.ValidationResult, error)
}

type Handler struct {
	config       *Config
	generator    Generator
	validator    InputValidator
	errorHandler *errs.ErrorHandler
	logger       logger.Logger
}

// NewHandler wires the negotiator behind a Zeebe job handler. validator may be nil.
func NewHandler(config *Config, generator Generator, validator InputValidator, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		generator:    generator,
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

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	if h.validator != nil {
		result, err := h.validator.ValidateInput(TaskType, []byte(variables))
		if err != nil {
			return nil, errs.NewInvalidRequestError(err.Error())
		}
		if !result.Valid {
			return nil, errs.NewInvalidBudgetError(strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute runs one negotiation and maps failures to StandardError codes.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	budget, err := negotiator.CheckBudget(input.Budget)
	if err != nil {
		return nil, errs.NewInvalidBudgetError(err.Error())
	}

	result, err := h.generator.Generate(ctx, budget)
	if err != nil {
		return nil, negotiator.StandardErrorFrom(err).WithMetadata("budget", input.Budget)
	}

	h.logger.Info("Build generated", map[string]interface{}{
		"buildId":    result.BuildID,
		"attempts":   result.Attempts,
		"totalPrice": result.TotalPrice,
	})
	return toOutput(result), nil
}

func toOutput(r *negotiator.Result) *Output {
	out := &Output{
		BuildID:          r.BuildID,
		ChosenComponents: make(map[string]string, len(r.ChosenComponents)),
		ResolvedProducts: make(map[string]ResolvedProduct, len(r.Resolved)),
		TotalPrice:       r.TotalPrice,
		BudgetDifference: r.BudgetDifference,
		Attempts:         r.Attempts,
		Band:             Band{Lower: r.Band.Lower, Upper: r.Band.Upper},
	}
	for c, name := range r.ChosenComponents {
		out.ChosenComponents[string(c)] = name
	}
	for c, rc := range r.Resolved {
		out.ResolvedProducts[string(c)] = ResolvedProduct{
			ID:        rc.Product.ID,
			Title:     rc.Product.Title,
			Price:     rc.Price,
			StoreLink: rc.Product.StoreLink,
			Score:     rc.Score,
		}
	}
	return out
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
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

	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr, ok := errs.AsStandardError(err)
	if !ok {
		stdErr = errs.NewInternalError(err)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()

	// The job context may already be spent; report with a fresh deadline.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
