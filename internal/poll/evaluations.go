package poll

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/lmeval"
)

const (
	CollectionInterval = 5 * time.Second
	ItemInterval       = 3 * time.Second
)

// Evaluations polls the evaluation collection of one namespace.
type Evaluations = Subscription[string, []lmeval.Evaluation]

// Evaluation polls a single evaluation.
type Evaluation = Subscription[lmeval.Ref, *lmeval.Evaluation]

// NewEvaluations returns a collection subscription keyed by namespace.
func NewEvaluations(client lmeval.Fetcher, logger *zap.Logger, opts ...Option) *Evaluations {
	fetch := func(ctx context.Context, namespace string) ([]lmeval.Evaluation, error) {
		return client.ListEvaluations(ctx, namespace)
	}
	empty := func(namespace string) bool { return strings.TrimSpace(namespace) == "" }
	base := []Option{WithInterval(CollectionInterval), WithLogger(logger), WithName("evaluations")}
	return New(fetch, empty, slices.Clone[[]lmeval.Evaluation], append(base, opts...)...)
}

// NewEvaluation returns a single-resource subscription keyed by namespace and name.
func NewEvaluation(client lmeval.Fetcher, logger *zap.Logger, opts ...Option) *Evaluation {
	fetch := func(ctx context.Context, ref lmeval.Ref) (*lmeval.Evaluation, error) {
		return client.GetEvaluation(ctx, ref)
	}
	clone := func(e *lmeval.Evaluation) *lmeval.Evaluation {
		if e == nil {
			return nil
		}
		dup := *e
		return &dup
	}
	base := []Option{WithInterval(ItemInterval), WithLogger(logger), WithName("evaluation")}
	return New(fetch, lmeval.Ref.Empty, clone, append(base, opts...)...)
}
