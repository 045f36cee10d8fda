// Package fps asks the oracle for frame-rate estimates of a build.
package fps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	errs "pcbuild-service/internal/common/errors"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/oracle"
)

const Unknown = "unknown"

var (
	ErrInvalidInput        = errors.New("component and game names are required")
	ErrFPSEstimationFailed = errors.New("fps estimate could not be parsed")
)

const systemInstructions = `You estimate gaming performance for PC builds.
Answer with a single JSON object mapping each game name, exactly as given, to an FPS range string such as "60-75 FPS".
Assume 1080p resolution and high settings. Do not add explanations.`

type Estimator struct {
	oracle oracle.Oracle
	log    logger.Logger
}

func NewEstimator(o oracle.Oracle, log logger.Logger) *Estimator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Estimator{oracle: o, log: log.With(map[string]interface{}{"component": "fps"})}
}

// Estimate sends one request and returns an FPS range per requested game.
// Games the reply omits are reported as Unknown.
func (e *Estimator) Estimate(ctx context.Context, componentNames, gameNames []string) (map[string]string, error) {
	components := nonEmpty(componentNames)
	games := nonEmpty(gameNames)
	if len(components) == 0 || len(games) == 0 {
		return nil, ErrInvalidInput
	}

	reply, err := e.oracle.Complete(ctx, systemInstructions, []oracle.Message{
		oracle.UserMessage(buildRequest(components, games)),
	})
	if err != nil {
		return nil, oracle.AsTransportError("oracle", err)
	}

	estimates, err := parseReply(reply)
	if err != nil {
		e.log.Warn("Unparseable FPS reply", map[string]interface{}{"error": err})
		return nil, err
	}

	out := make(map[string]string, len(games))
	for _, g := range games {
		if v, ok := lookup(estimates, g); ok {
			out[g] = v
			continue
		}
		out[g] = Unknown
	}

	e.log.Info("FPS estimated", map[string]interface{}{
		"components": len(components),
		"games":      len(games),
	})
	return out, nil
}

func buildRequest(components, games []string) string {
	var b strings.Builder
	b.WriteString("PC components:\n")
	for _, c := range components {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("Games:\n")
	for _, g := range games {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	b.WriteString(`Reply with JSON like {"<game>": "<min>-<max> FPS"}.`)
	return b.String()
}

func parseReply(reply string) (map[string]string, error) {
	raw, ok := oracle.ExtractJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrFPSEstimationFailed)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFPSEstimationFailed, err)
	}

	out := make(map[string]string, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				out[k] = s
			}
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64) + " FPS"
		}
	}
	return out, nil
}

// lookup tolerates case and surrounding-space differences in game names.
func lookup(estimates map[string]string, game string) (string, bool) {
	if v, ok := estimates[game]; ok {
		return v, true
	}
	want := strings.ToLower(strings.TrimSpace(game))
	for k, v := range estimates {
		if strings.ToLower(strings.TrimSpace(k)) == want {
			return v, true
		}
	}
	return "", false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StandardErrorFrom maps an Estimate error to a boundary error code.
func StandardErrorFrom(err error) *errs.StandardError {
	var transport *oracle.TransportError
	switch {
	case errors.Is(err, ErrInvalidInput):
		return errs.NewInvalidRequestError(err.Error())
	case errors.As(err, &transport):
		if transport.Timeout() {
			return errs.NewOracleTimeoutError(transport.Provider)
		}
		return errs.NewOracleTransportFailedError(transport.Provider, transport.Err)
	case errors.Is(err, ErrFPSEstimationFailed):
		return errs.NewFPSEstimationFailedError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.NewOracleTimeoutError("")
	default:
		return errs.NewInternalError(err)
	}
}
