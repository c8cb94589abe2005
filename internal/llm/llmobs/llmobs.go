package llmobs

import (
	"context"
	"errors"
	"time"

	"tradegraph/internal/interfaces"
	"tradegraph/internal/llm"
	"tradegraph/internal/logger"
	"tradegraph/internal/trace"
)

// observableCompleter wraps a Completer with logging and tracing.
type observableCompleter struct {
	inner    interfaces.Completer
	provider string
}

var _ interfaces.Completer = (*observableCompleter)(nil)

// Wrap wraps a completer with observability middleware.
func Wrap(c interfaces.Completer, provider string) interfaces.Completer {
	return &observableCompleter{inner: c, provider: provider}
}

func (o *observableCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting completion", "provider", o.provider, "prompt_chars", len(prompt))
	start := time.Now()

	out, err := o.inner.Complete(ctx, system, prompt)
	if err != nil {
		if errors.Is(err, llm.ErrDisabled) {
			return "", err
		}
		logger.ErrorWithErrSkip(ctx, 1, "Completion failed", err,
			"provider", o.provider,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Completion received",
		"provider", o.provider,
		"reply_chars", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
