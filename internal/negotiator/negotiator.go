// Package negotiator drives the propose, resolve and verify loop that turns a
// budget into a catalog-backed parts list.
package negotiator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pcbuild-service/internal/audit"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/common/metrics"
	"pcbuild-service/internal/models"
	"pcbuild-service/internal/oracle"
	"pcbuild-service/internal/resolver"
)

// MaxBudget is the largest budget Generate accepts.
const MaxBudget int64 = 1_000_000_000_000

var (
	ErrInvalidBudget        = errors.New("budget must be between 1 and 1000000000000")
	ErrNegotiationExhausted = errors.New("negotiation exhausted without an acceptable build")
)

// CheckBudget validates an amount received at a boundary and floors it to
// whole currency units.
func CheckBudget(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 1 || amount >= float64(MaxBudget)+1 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidBudget, amount)
	}
	return int64(math.Floor(amount)), nil
}

var tracer = otel.Tracer("pcbuild-service/negotiator")

type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeUnresolved  Outcome = "unresolved"
	OutcomeOutOfBudget Outcome = "out_of_budget"
)

// ProductSource is the read-only catalog view the negotiator resolves
// against. Returned slices must not be modified.
type ProductSource interface {
	Products() []models.Product
}

// ComponentResolver matches a free-text name to a catalog product.
type ComponentResolver interface {
	Resolve(query string, category models.Category, candidates []models.Product) (resolver.Match, bool)
}

// Evaluation is the verdict on one oracle reply.
type Evaluation struct {
	Outcome    Outcome
	Proposal   models.ProposedBuild
	ParseErr   *ParseError
	Resolved   models.ResolvedBuild
	Unresolved []models.Category
	Total      int64
}

// State lives for a single Generate call.
type State struct {
	Attempt        int
	Conversation   []oracle.Message
	LastEvaluation *Evaluation
}

// Result is an accepted build.
type Result struct {
	BuildID          string               `json:"buildId"`
	ChosenComponents models.ProposedBuild `json:"chosenComponents"`
	Resolved         models.ResolvedBuild `json:"resolvedProducts"`
	TotalPrice       int64                `json:"totalPrice"`
	BudgetDifference int64                `json:"budgetDifference"`
	Attempts         int                  `json:"attempts"`
	Band             Band                 `json:"band"`
}

// ExhaustedError carries the attempt count and the last round outcome.
type ExhaustedError struct {
	Attempts    int
	LastOutcome Outcome
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts (last outcome: %s)", ErrNegotiationExhausted, e.Attempts, e.LastOutcome)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrNegotiationExhausted
}

type Negotiator struct {
	cfg      Config
	catalog  ProductSource
	resolver ComponentResolver
	oracle   oracle.Oracle
	sink     audit.Sink
	log      logger.Logger
}

func New(cfg Config, catalog ProductSource, res ComponentResolver, o oracle.Oracle, sink audit.Sink, log logger.Logger) *Negotiator {
	if sink == nil {
		sink = audit.Nop{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Negotiator{
		cfg:      cfg.withDefaults(),
		catalog:  catalog,
		resolver: res,
		oracle:   o,
		sink:     sink,
		log:      log.With(map[string]interface{}{"component": "negotiator"}),
	}
}

func (n *Negotiator) Band(budget int64) Band {
	return n.cfg.Tolerance.Band(budget)
}

// Generate negotiates a build for budget. It returns ErrInvalidBudget, an
// *ExhaustedError, an *oracle.TransportError or the context error.
func (n *Negotiator) Generate(ctx context.Context, budget int64) (*Result, error) {
	if budget <= 0 || budget > MaxBudget {
		return nil, ErrInvalidBudget
	}

	buildID := uuid.NewString()
	band := n.Band(budget)
	log := n.log.With(map[string]interface{}{"buildId": buildID, "budget": budget})
	start := time.Now()

	ctx, span := tracer.Start(ctx, "negotiation.generate")
	span.SetAttributes(
		attribute.String("build.id", buildID),
		attribute.Int64("build.budget", budget),
		attribute.Int64("build.band.lower", band.Lower),
		attribute.Int64("build.band.upper", band.Upper),
	)
	defer span.End()

	initial := oracle.UserMessage(InitialRequest(budget, band, n.cfg.Currency))
	state := &State{Conversation: []oracle.Message{initial}}
	system := SystemInstructions()

	log.Info("Negotiation started", map[string]interface{}{
		"lower":       band.Lower,
		"upper":       band.Upper,
		"maxAttempts": n.cfg.MaxAttempts,
	})

	finish := func(outcome string) {
		metrics.NegotiationOutcomes.WithLabelValues(outcome).Inc()
		metrics.NegotiationAttempts.Observe(float64(state.Attempt))
		span.SetAttributes(attribute.String("negotiation.outcome", outcome), attribute.Int("negotiation.attempts", state.Attempt))
		log.Info("Negotiation finished", map[string]interface{}{
			"outcome":  outcome,
			"attempts": state.Attempt,
			"duration": time.Since(start).String(),
		})
	}

	for state.Attempt < n.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			finish("cancelled")
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		state.Attempt++

		eval, reply, err := n.round(ctx, buildID, budget, band, state, system)
		if err != nil {
			outcome := "transport_error"
			if ctx.Err() != nil {
				outcome = "cancelled"
			}
			finish(outcome)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Oracle request failed", map[string]interface{}{"attempt": state.Attempt, "error": err})
			return nil, err
		}
		state.LastEvaluation = eval

		if eval.Outcome == OutcomeAccepted {
			finish(string(OutcomeAccepted))
			return &Result{
				BuildID:          buildID,
				ChosenComponents: eval.Proposal,
				Resolved:         eval.Resolved,
				TotalPrice:       eval.Total,
				BudgetDifference: eval.Total - budget,
				Attempts:         state.Attempt,
				Band:             band,
			}, nil
		}

		correction := n.correction(eval, band)
		switch n.cfg.HistoryMode {
		case HistoryCumulative:
			state.Conversation = append(state.Conversation, oracle.AssistantMessage(reply), oracle.UserMessage(correction))
		default:
			state.Conversation = []oracle.Message{initial, oracle.UserMessage(correction)}
		}
	}

	last := Outcome("")
	if state.LastEvaluation != nil {
		last = state.LastEvaluation.Outcome
	}
	finish("exhausted")
	err := &ExhaustedError{Attempts: state.Attempt, LastOutcome: last}
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (n *Negotiator) round(ctx context.Context, buildID string, budget int64, band Band, state *State, system string) (*Evaluation, string, error) {
	ctx, span := tracer.Start(ctx, "negotiation.round")
	span.SetAttributes(attribute.Int("negotiation.attempt", state.Attempt))
	defer span.End()

	reply, err := n.oracle.Complete(ctx, system, state.Conversation)
	if err != nil {
		return nil, "", oracle.AsTransportError("oracle", err)
	}

	eval := n.Evaluate(ctx, reply, band)
	metrics.NegotiationRoundOutcomes.WithLabelValues(string(eval.Outcome)).Inc()
	span.SetAttributes(attribute.String("negotiation.round.outcome", string(eval.Outcome)))

	fields := map[string]interface{}{
		"buildId": buildID,
		"attempt": state.Attempt,
		"outcome": string(eval.Outcome),
	}
	switch eval.Outcome {
	case OutcomeMalformed:
		fields["reason"] = eval.ParseErr.Error()
	case OutcomeUnresolved:
		fields["unresolved"] = joinCategories(eval.Unresolved)
		n.recordUnresolved(ctx, buildID, budget, state.Attempt, eval)
	case OutcomeOutOfBudget, OutcomeAccepted:
		fields["total"] = eval.Total
	}
	n.log.Info("Negotiation round evaluated", fields)

	return eval, reply, nil
}

// Evaluate parses, resolves and prices one reply without side effects.
func (n *Negotiator) Evaluate(ctx context.Context, reply string, band Band) *Evaluation {
	parsed := ParseProposal(reply)
	if !parsed.OK() {
		return &Evaluation{Outcome: OutcomeMalformed, ParseErr: parsed.Err}
	}

	products := n.catalog.Products()
	eval := &Evaluation{
		Proposal: parsed.Build,
		Resolved: make(models.ResolvedBuild, len(models.RequiredCategories)),
	}
	for _, c := range models.RequiredCategories {
		match, ok := n.resolver.Resolve(parsed.Build[c], c, products)
		if !ok {
			eval.Unresolved = append(eval.Unresolved, c)
			continue
		}
		eval.Resolved[c] = models.ResolvedComponent{
			Product: match.Product,
			Score:   match.Score,
			Price:   match.Product.PriceOf(n.cfg.PriceField),
		}
	}
	eval.Total = eval.Resolved.Total()

	switch {
	case len(eval.Unresolved) > 0:
		eval.Outcome = OutcomeUnresolved
	case !band.Contains(eval.Total):
		eval.Outcome = OutcomeOutOfBudget
	default:
		eval.Outcome = OutcomeAccepted
	}
	return eval
}

func (n *Negotiator) correction(eval *Evaluation, band Band) string {
	if eval.Outcome == OutcomeMalformed {
		return FormatCorrection(eval.ParseErr)
	}
	return PriceCorrection(eval, band, n.cfg.Currency)
}

// recordUnresolved is best-effort; sink failures are logged and never fail
// the negotiation.
func (n *Negotiator) recordUnresolved(ctx context.Context, buildID string, budget int64, attempt int, eval *Evaluation) {
	for _, c := range eval.Unresolved {
		metrics.ComponentResolutionMisses.WithLabelValues(string(c)).Inc()
		rec := models.NewUnresolvedComponent(buildID, c, eval.Proposal[c], budget, attempt)
		if err := n.sink.Record(ctx, rec); err != nil {
			n.log.Warn("Failed to record unresolved component", map[string]interface{}{
				"buildId":  buildID,
				"category": string(c),
				"error":    err,
			})
		}
	}
}
