package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/models"
	"pcbuild-service/internal/oracle"
	"pcbuild-service/internal/resolver"
)

func TestMain(m *testing.M) {
	// genai links go.opencensus.io, whose init starts a stats worker.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type staticCatalog []models.Product

func (c staticCatalog) Products() []models.Product { return c }

func scenarioCatalog() staticCatalog {
	return staticCatalog{
		{ID: "1", Title: "Ryzen 5 3600", Price: 60000},
		{ID: "2", Title: "GTX1660S", Price: 90000},
		{ID: "3", Title: "B450M-K", Price: 30000},
		{ID: "4", Title: "Vengeance16", Price: 20000},
		{ID: "5", Title: "EVGA600", Price: 15000},
		{ID: "6", Title: "Hyper212", Price: 8000},
		{ID: "7", Title: "NF-P12", Price: 5000},
		{ID: "8", Title: "H510", Price: 20000},
	}
}

func scenarioBuild() map[string]string {
	return map[string]string{
		"CPU":         "Ryzen 5 3600",
		"GPU":         "GTX1660S",
		"Motherboard": "B450M-K",
		"RAM":         "Vengeance16",
		"PSU":         "EVGA600",
		"CPU-Cooler":  "Hyper212",
		"Case-Fan":    "NF-P12",
		"Case":        "H510",
	}
}

func reply(t *testing.T, build map[string]string) string {
	t.Helper()
	raw, err := json.Marshal(build)
	require.NoError(t, err)
	return string(raw)
}

// scriptedOracle replays canned replies and records every conversation it saw.
type scriptedOracle struct {
	mu      sync.Mutex
	replies []string
	systems []string
	calls   [][]oracle.Message
}

func (o *scriptedOracle) Complete(_ context.Context, system string, conversation []oracle.Message) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.systems = append(o.systems, system)
	o.calls = append(o.calls, append([]oracle.Message(nil), conversation...))
	if len(o.replies) == 0 {
		return "not json", nil
	}
	next := o.replies[0]
	if len(o.replies) > 1 {
		o.replies = o.replies[1:]
	}
	return next, nil
}

type memorySink struct {
	mu      sync.Mutex
	records []models.UnresolvedComponent
	err     error
}

func (s *memorySink) Record(_ context.Context, rec models.UnresolvedComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func newNegotiator(t *testing.T, cfg Config, o oracle.Oracle, res ComponentResolver, sink *memorySink) *Negotiator {
	t.Helper()
	if res == nil {
		res = resolver.New(nil, resolver.DefaultThreshold)
	}
	if sink == nil {
		return New(cfg, scenarioCatalog(), res, o, nil, logger.NewTestLogger(t))
	}
	return New(cfg, scenarioCatalog(), res, o, sink, logger.NewTestLogger(t))
}

func TestGenerate_AcceptsScenarioOnFirstAttempt(t *testing.T) {
	o := &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
	n := newNegotiator(t, Config{}, o, nil, nil)

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(248000), res.TotalPrice)
	assert.Equal(t, int64(-2000), res.BudgetDifference)
	assert.Equal(t, Band{Lower: 225000, Upper: 275000}, res.Band)
	assert.NotEmpty(t, res.BuildID)
	assert.True(t, res.Resolved.Complete())
	assert.Len(t, res.Resolved, len(models.RequiredCategories))
	assert.True(t, res.Band.Contains(res.TotalPrice))

	want := models.ProposedBuild{}
	for k, v := range scenarioBuild() {
		want[models.Category(k)] = v
	}
	if diff := cmp.Diff(want, res.ChosenComponents); diff != "" {
		t.Errorf("chosen components mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "Ryzen 5 3600", res.Resolved[models.CategoryCPU].Product.Title)
	require.Len(t, o.calls, 1)
	assert.Equal(t, SystemInstructions(), o.systems[0])
}

func TestGenerate_ResolvedProductsPointIntoCatalog(t *testing.T) {
	cat := scenarioCatalog()
	o := &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
	n := New(Config{}, cat, resolver.New(nil, resolver.DefaultThreshold), o, nil, logger.NewTestLogger(t))

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Same(t, &cat[0], res.Resolved[models.CategoryCPU].Product)
}

func TestGenerate_AlwaysMalformedExhaustsAfterMaxAttempts(t *testing.T) {
	o := &scriptedOracle{replies: []string{"I think you should buy a Mac."}}
	n := newNegotiator(t, Config{}, o, nil, nil)

	_, err := n.Generate(context.Background(), 250000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNegotiationExhausted)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, DefaultMaxAttempts, exhausted.Attempts)
	assert.Equal(t, OutcomeMalformed, exhausted.LastOutcome)
	assert.Len(t, o.calls, DefaultMaxAttempts)
}

func TestGenerate_MaxAttemptsIsConfigurable(t *testing.T) {
	o := &scriptedOracle{replies: []string{"{}"}}
	n := newNegotiator(t, Config{MaxAttempts: 3}, o, nil, nil)

	_, err := n.Generate(context.Background(), 250000)
	assert.ErrorIs(t, err, ErrNegotiationExhausted)
	assert.Len(t, o.calls, 3)
}

func TestGenerate_MissingRAMRetries(t *testing.T) {
	missing := scenarioBuild()
	delete(missing, "RAM")

	o := &scriptedOracle{replies: []string{reply(t, missing), reply(t, scenarioBuild())}}
	n := newNegotiator(t, Config{}, o, nil, nil)

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	require.Len(t, o.calls, 2)
	correction := o.calls[1][len(o.calls[1])-1]
	assert.Equal(t, oracle.RoleUser, correction.Role)
	assert.Contains(t, correction.Content, "Missing keys: RAM.")
}

// gpuMetric scores the unknown GPU name at 0.3 against everything.
type gpuMetric struct{}

func (gpuMetric) Compare(a, b string) float64 {
	if a == "geforcemystery" || b == "geforcemystery" {
		return 0.3
	}
	return 0
}

func TestGenerate_LowSimilarityGPUIsNamedInCorrection(t *testing.T) {
	unknownGPU := scenarioBuild()
	unknownGPU["GPU"] = "GeForce Mystery"

	sink := &memorySink{}
	o := &scriptedOracle{replies: []string{reply(t, unknownGPU), reply(t, scenarioBuild())}}
	n := newNegotiator(t, Config{}, o, resolver.New(gpuMetric{}, 0.5), sink)

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	correction := o.calls[1][len(o.calls[1])-1].Content
	assert.Contains(t, correction, "No store product matches your choice for: GPU.")
	assert.Contains(t, correction, "CPU: Ryzen 5 3600, 60 000 KZT")
	assert.NotContains(t, correction, "GPU: ")

	require.Len(t, sink.records, 1)
	assert.Equal(t, models.CategoryGPU, sink.records[0].Category)
	assert.Equal(t, "GeForce Mystery", sink.records[0].RequestedName)
	assert.Equal(t, 1, sink.records[0].Attempt)
	assert.Equal(t, res.BuildID, sink.records[0].BuildID)
}

func TestGenerate_SinkFailureDoesNotFailNegotiation(t *testing.T) {
	unknownGPU := scenarioBuild()
	unknownGPU["GPU"] = "GeForce Mystery"

	sink := &memorySink{err: errors.New("disk full")}
	o := &scriptedOracle{replies: []string{reply(t, unknownGPU), reply(t, scenarioBuild())}}
	n := newNegotiator(t, Config{}, o, resolver.New(gpuMetric{}, 0.5), sink)

	_, err := n.Generate(context.Background(), 250000)
	assert.NoError(t, err)
}

func TestGenerate_OutOfBudgetDirection(t *testing.T) {
	tests := []struct {
		name   string
		budget int64
		want   string
	}{
		{name: "too expensive", budget: 150000, want: "Lower the total"},
		{name: "too cheap", budget: 400000, want: "Raise the total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
			n := newNegotiator(t, Config{MaxAttempts: 2}, o, nil, nil)

			_, err := n.Generate(context.Background(), tt.budget)
			var exhausted *ExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, OutcomeOutOfBudget, exhausted.LastOutcome)

			correction := o.calls[1][len(o.calls[1])-1].Content
			assert.Contains(t, correction, tt.want)
			assert.Contains(t, correction, "The current total is 248 000 KZT")
		})
	}
}

func TestGenerate_HistoryModes(t *testing.T) {
	bad := "nope"

	t.Run("replace keeps initial framing and latest correction", func(t *testing.T) {
		o := &scriptedOracle{replies: []string{bad, bad, reply(t, scenarioBuild())}}
		n := newNegotiator(t, Config{HistoryMode: HistoryReplace}, o, nil, nil)

		_, err := n.Generate(context.Background(), 250000)
		require.NoError(t, err)
		require.Len(t, o.calls, 3)
		assert.Len(t, o.calls[0], 1)
		assert.Len(t, o.calls[1], 2)
		assert.Len(t, o.calls[2], 2)
		assert.Equal(t, o.calls[0][0], o.calls[2][0])
	})

	t.Run("cumulative appends reply and correction", func(t *testing.T) {
		o := &scriptedOracle{replies: []string{bad, bad, reply(t, scenarioBuild())}}
		n := newNegotiator(t, Config{HistoryMode: HistoryCumulative}, o, nil, nil)

		_, err := n.Generate(context.Background(), 250000)
		require.NoError(t, err)
		require.Len(t, o.calls, 3)
		assert.Len(t, o.calls[1], 3)
		assert.Len(t, o.calls[2], 5)
		assert.Equal(t, oracle.RoleAssistant, o.calls[2][1].Role)
		assert.Equal(t, bad, o.calls[2][1].Content)
	})
}

func TestGenerate_TransportErrorIsNotRetried(t *testing.T) {
	calls := 0
	o := oracle.Func(func(ctx context.Context, system string, conversation []oracle.Message) (string, error) {
		calls++
		return "", &oracle.TransportError{Provider: "openai", Err: errors.New("401 unauthorized")}
	})
	n := newNegotiator(t, Config{}, o, nil, nil)

	_, err := n.Generate(context.Background(), 250000)
	var te *oracle.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "openai", te.Provider)
	assert.Equal(t, 1, calls)
}

func TestGenerate_PlainOracleErrorBecomesTransport(t *testing.T) {
	o := oracle.Func(func(ctx context.Context, system string, conversation []oracle.Message) (string, error) {
		return "", errors.New("connection reset")
	})
	n := newNegotiator(t, Config{}, o, nil, nil)

	_, err := n.Generate(context.Background(), 250000)
	var te *oracle.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestGenerate_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	o := oracle.Func(func(ctx context.Context, system string, conversation []oracle.Message) (string, error) {
		calls++
		cancel()
		return "still not json", nil
	})
	n := newNegotiator(t, Config{}, o, nil, nil)

	_, err := n.Generate(ctx, 250000)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGenerate_DeadlineDuringOracleCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	n := newNegotiator(t, Config{}, &scriptedOracle{}, nil, nil)
	_, err := n.Generate(ctx, 250000)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerate_InvalidBudget(t *testing.T) {
	o := &scriptedOracle{}
	n := newNegotiator(t, Config{}, o, nil, nil)

	for _, budget := range []int64{0, -1, MaxBudget + 1} {
		_, err := n.Generate(context.Background(), budget)
		assert.ErrorIs(t, err, ErrInvalidBudget)
	}
	assert.Empty(t, o.calls)
}

func TestCheckBudget(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   int64
		ok     bool
	}{
		{name: "whole", amount: 250000, want: 250000, ok: true},
		{name: "fraction floors", amount: 250000.7, want: 250000, ok: true},
		{name: "maximum", amount: float64(MaxBudget), want: MaxBudget, ok: true},
		{name: "zero", amount: 0},
		{name: "below one", amount: 0.5},
		{name: "above maximum", amount: 1e15},
		{name: "nan", amount: math.NaN()},
		{name: "inf", amount: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckBudget(tt.amount)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidBudget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func discountedCatalog() staticCatalog {
	cat := scenarioCatalog()
	cat[1].SalePrice = 10000
	return cat
}

func TestGenerate_SumsListPriceByDefault(t *testing.T) {
	o := &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
	n := New(Config{MaxAttempts: 1}, discountedCatalog(), resolver.New(nil, resolver.DefaultThreshold), o, nil, logger.NewTestLogger(t))

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Equal(t, int64(248000), res.TotalPrice)
	assert.Equal(t, int64(90000), res.Resolved[models.CategoryGPU].Price)
}

func TestGenerate_EffectivePriceFieldUsesSalePrice(t *testing.T) {
	o := &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
	cfg := Config{MaxAttempts: 1, PriceField: models.PriceEffective}
	n := New(cfg, discountedCatalog(), resolver.New(nil, resolver.DefaultThreshold), o, nil, logger.NewTestLogger(t))

	eval := n.Evaluate(context.Background(), reply(t, scenarioBuild()), n.Band(250000))
	assert.Equal(t, OutcomeOutOfBudget, eval.Outcome)
	assert.Equal(t, int64(168000), eval.Total)
	assert.Contains(t, PriceCorrection(eval, n.Band(250000), "KZT"), "GTX1660S, 10 000 KZT")

	_, err := n.Generate(context.Background(), 250000)
	assert.ErrorIs(t, err, ErrNegotiationExhausted)
}

func TestGenerate_BlankReplyIsRetriedAsMalformed(t *testing.T) {
	o := &scriptedOracle{replies: []string{"", reply(t, scenarioBuild())}}
	n := newNegotiator(t, Config{}, o, nil, nil)

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, o.calls, 2)
	assert.Contains(t, o.calls[1][len(o.calls[1])-1].Content, "JSON")
}

func TestGenerate_FencedReplyIsAccepted(t *testing.T) {
	fenced := "Sure! Here is your build:\n```json\n" + reply(t, scenarioBuild()) + "\n```\nHave fun."
	o := &scriptedOracle{replies: []string{fenced}}
	n := newNegotiator(t, Config{}, o, nil, nil)

	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestGenerate_AbsoluteTolerance(t *testing.T) {
	o := &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
	n := newNegotiator(t, Config{Tolerance: NewAbsoluteTolerance(1000), MaxAttempts: 1}, o, nil, nil)

	_, err := n.Generate(context.Background(), 250000)
	assert.ErrorIs(t, err, ErrNegotiationExhausted)

	o = &scriptedOracle{replies: []string{reply(t, scenarioBuild())}}
	n = newNegotiator(t, Config{Tolerance: NewAbsoluteTolerance(2000), MaxAttempts: 1}, o, nil, nil)
	res, err := n.Generate(context.Background(), 250000)
	require.NoError(t, err)
	assert.Equal(t, Band{Lower: 248000, Upper: 252000}, res.Band)
}

func TestEvaluate_ConcurrentCallsShareCatalog(t *testing.T) {
	n := newNegotiator(t, Config{}, &scriptedOracle{}, nil, nil)
	band := n.Band(250000)
	raw := reply(t, scenarioBuild())

	var wg sync.WaitGroup
	results := make([]*Evaluation, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = n.Evaluate(context.Background(), raw, band)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, OutcomeAccepted, r.Outcome)
		assert.Equal(t, int64(248000), r.Total)
	}
}

func TestStandardErrorFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "invalid budget", err: ErrInvalidBudget, code: "INVALID_BUDGET"},
		{name: "exhausted", err: &ExhaustedError{Attempts: 20, LastOutcome: OutcomeMalformed}, code: "NEGOTIATION_EXHAUSTED"},
		{name: "transport", err: &oracle.TransportError{Provider: "openai", Err: errors.New("502")}, code: "ORACLE_TRANSPORT_FAILED"},
		{name: "transport timeout", err: &oracle.TransportError{Provider: "openai", Err: context.DeadlineExceeded}, code: "ORACLE_TIMEOUT"},
		{name: "bare deadline", err: context.DeadlineExceeded, code: "ORACLE_TIMEOUT"},
		{name: "other", err: errors.New("boom"), code: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StandardErrorFrom(tt.err)
			assert.Equal(t, tt.code, string(got.Code))
		})
	}

	exhausted := StandardErrorFrom(&ExhaustedError{Attempts: 20, LastOutcome: OutcomeOutOfBudget})
	assert.Equal(t, 20, exhausted.Metadata["attempts"])
	assert.True(t, strings.Contains(exhausted.Details, "out_of_budget"))
}
