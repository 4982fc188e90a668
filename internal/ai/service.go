package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/pkg/models"
)

const fallbackSummary = "Automated analysis was unavailable for this document. " +
	"Word and character counts were computed locally."

// Orchestrator runs the provider chain: each provider gets a bounded number
// of attempts with exponential backoff on retryable failures, a
// non-retryable failure moves straight to the next provider, and exhausting
// the whole chain yields a deterministic fallback result. Callers therefore
// never receive an error purely because the AI backends were down.
type Orchestrator struct {
	providers     []models.Provider
	maxAttempts   int
	backoffBase   time.Duration
	timeout       time.Duration
	maxInputChars int
	log           *slog.Logger
}

func NewOrchestrator(providers []models.Provider, maxAttempts int, backoffBase, timeout time.Duration, maxInputChars int, log *slog.Logger) *Orchestrator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	if maxInputChars <= 0 {
		maxInputChars = 12000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		providers:     providers,
		maxAttempts:   maxAttempts,
		backoffBase:   backoffBase,
		timeout:       timeout,
		maxInputChars: maxInputChars,
		log:           log,
	}
}

// Analyze runs text through the provider chain and always returns a result.
func (o *Orchestrator) Analyze(ctx context.Context, text string) models.DocumentAnalysis {
	input := truncateRunes(text, o.maxInputChars)

	for _, p := range o.providers {
		if result, ok := o.tryProvider(ctx, p, input); ok {
			return finalize(result, text, p.Name())
		}
	}

	o.log.Warn("all ai providers exhausted, using fallback result",
		"providers", len(o.providers))
	return Fallback(text)
}

func (o *Orchestrator) tryProvider(ctx context.Context, p models.Provider, input string) (models.DocumentAnalysis, bool) {
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if o.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		}
		result, err := p.Analyze(callCtx, input)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, true
		}

		if !llm.IsRetryable(err) {
			o.log.Warn("ai provider failed, moving to next",
				"provider", p.Name(), "error", err)
			return models.DocumentAnalysis{}, false
		}

		o.log.Warn("ai provider attempt failed",
			"provider", p.Name(), "attempt", attempt, "error", err)
		if attempt < o.maxAttempts {
			if !sleep(ctx, o.backoffBase<<(attempt-1)) {
				return models.DocumentAnalysis{}, false
			}
		}
	}
	return models.DocumentAnalysis{}, false
}

// Fallback builds the deterministic degraded result used when no provider
// produced an analysis.
func Fallback(text string) models.DocumentAnalysis {
	return models.DocumentAnalysis{
		Summary:   fallbackSummary,
		KeyPoints: []string{},
		Keywords:  []string{},
		Category:  "general",
		Sentiment: "neutral",
		WordCount: countWords(text),
		CharCount: utf8.RuneCountInString(text),
		Provider:  "fallback",
		Degraded:  true,
	}
}

// finalize normalizes a provider result: counts are recomputed from the
// source text whenever the provider's own figures are absent or malformed.
func finalize(result models.DocumentAnalysis, text, provider string) models.DocumentAnalysis {
	if result.WordCount <= 0 {
		result.WordCount = countWords(text)
	}
	if result.CharCount <= 0 {
		result.CharCount = utf8.RuneCountInString(text)
	}
	if result.KeyPoints == nil {
		result.KeyPoints = []string{}
	}
	if result.Keywords == nil {
		result.Keywords = []string{}
	}
	if result.Sentiment == "" {
		result.Sentiment = "neutral"
	}
	if result.Category == "" {
		result.Category = "general"
	}
	if result.Provider == "" {
		result.Provider = provider
	}
	return result
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// truncateRunes truncates s to at most max runes without splitting UTF-8.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
