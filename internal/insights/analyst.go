package insights

import (
	"context"
	"log/slog"
	"time"

	"github.com/cleared-dev/fpa/internal/logging"
	"github.com/cleared-dev/fpa/internal/metrics"
	"github.com/cleared-dev/fpa/internal/model"
)

// Generator produces narrative insights for an analysis.
type Generator interface {
	Generate(ctx context.Context, a *model.Analysis) (string, error)
}

// Completer sends chat messages to a language model.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Analyst builds the prompt and calls the model.
type Analyst struct {
	completer Completer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewAnalyst wires a Completer with logging and metrics. m may be nil.
func NewAnalyst(c Completer, logger *slog.Logger, m *metrics.Metrics) *Analyst {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Analyst{completer: c, logger: logger, metrics: m}
}

// Generate returns the model's reply for the analysis.
func (a *Analyst) Generate(ctx context.Context, an *model.Analysis) (string, error) {
	messages, err := BuildPrompt(an)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := a.completer.Complete(ctx, messages)
	elapsed := time.Since(start)
	a.metrics.Insights(elapsed, err)

	if err != nil {
		a.logger.ErrorContext(ctx, "AI analysis failed",
			slog.Int("rows", len(an.Rows)),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		return "", err
	}
	a.logger.InfoContext(ctx, "AI analysis generated",
		slog.Int("rows", len(an.Rows)),
		slog.Int("chars", len(text)),
		slog.Duration("duration", elapsed))
	return text, nil
}
