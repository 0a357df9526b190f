package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-toy-backend/internal/search"
)

// Answerer produces the assistant reply to a child's question.
type Answerer interface {
	Answer(ctx context.Context, childID, question string) (answer, model string, err error)
}

// StubAnswerer echoes the question back. It stands in until a model backend
// is configured.
type StubAnswerer struct{}

// Model names recorded as model_used.
const (
	StubModel = "stub"
	FactModel = "facts"
)

// DefaultFactThreshold is the minimum similarity for a fact to be used.
const DefaultFactThreshold = 0.2

// Answer implements Answerer.
func (StubAnswerer) Answer(_ context.Context, _ string, question string) (string, string, error) {
	return fmt.Sprintf("Answer to: %s", question), StubModel, nil
}

// FactAnswerer answers from a fact sheet when the best fact scores at least
// Threshold, and defers to Fallback otherwise.
type FactAnswerer struct {
	Index     search.Index
	Threshold float64
	// Fallback defaults to StubAnswerer.
	Fallback Answerer
}

// Answer implements Answerer.
func (a *FactAnswerer) Answer(ctx context.Context, childID, question string) (string, string, error) {
	ctx, span := otel.Tracer("services/FactAnswerer").Start(ctx, "Answer")
	defer span.End()

	threshold := a.Threshold
	if threshold <= 0 {
		threshold = DefaultFactThreshold
	}
	if a.Index != nil {
		if res := a.Index.TopK(question, 1); len(res) == 1 && res[0].Score >= threshold {
			span.SetAttributes(
				attribute.Float64("facts.score", res[0].Score),
				attribute.String("facts.topic", res[0].Topic),
			)
			return res[0].Text, FactModel, nil
		}
	}
	span.AddEvent("fallback", trace.WithAttributes(attribute.Float64("facts.threshold", threshold)))

	fb := a.Fallback
	if fb == nil {
		fb = StubAnswerer{}
	}
	return fb.Answer(ctx, childID, question)
}
