package main

import (
	"context"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"pcbuild-service/internal/common/camunda"
	"pcbuild-service/internal/common/observability"
	"pcbuild-service/internal/negotiator"
)

// observedGenerator feeds finished negotiations into the otel meters.
type observedGenerator struct {
	next *negotiator.Negotiator
	obs  *observability.Observability
}

func (g *observedGenerator) Generate(ctx context.Context, budget int64) (*negotiator.Result, error) {
	start := time.Now()
	ctx, span := g.obs.StartSpan(ctx, "build.generate", attribute.Int64("budget", budget))
	defer span.End()

	result, err := g.next.Generate(ctx, budget)

	outcome, attempts := "accepted", 0
	var exhausted *negotiator.ExhaustedError
	switch {
	case err == nil:
		attempts = result.Attempts
	case errors.As(err, &exhausted):
		outcome, attempts = "exhausted", exhausted.Attempts
	default:
		outcome = "error"
		span.RecordError(err)
	}
	g.obs.RecordNegotiation(ctx, outcome, attempts, time.Since(start))
	return result, err
}

// observedJob records every handled job with the otel job meters.
type observedJob struct {
	taskType string
	next     camunda.JobHandler
	obs      *observability.Observability
}

func (j *observedJob) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	j.next.Handle(client, job)
	ctx := context.Background()
	j.obs.RecordJobProcessed(ctx, j.taskType, "handled")
	j.obs.RecordJobDuration(ctx, j.taskType, time.Since(start), "handled")
}
