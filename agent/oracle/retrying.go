package oracle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/llm"
	"github.com/BaSui01/mysteryshopper/llm/retry"
)

// RetryingOracle retries retryable failures of the wrapped Oracle.
type RetryingOracle struct {
	inner   Oracle
	retryer retry.Retryer
}

// NewRetryingOracle wraps inner. A nil policy uses retry.DefaultRetryPolicy.
// ShouldRetry is filled in with ShouldRetry when the policy leaves it nil.
func NewRetryingOracle(inner Oracle, policy *retry.RetryPolicy, logger *zap.Logger) *RetryingOracle {
	if policy == nil {
		policy = retry.DefaultRetryPolicy()
	}
	p := *policy
	if p.ShouldRetry == nil {
		p.ShouldRetry = ShouldRetry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingOracle{
		inner:   inner,
		retryer: retry.NewBackoffRetryer(&p, logger.With(zap.String("component", "oracle_retry"))),
	}
}

// ShouldRetry reports whether an oracle error is worth another attempt.
func ShouldRetry(err error) bool {
	return llm.IsRetryable(err) || errors.Is(err, ErrMalformedResponse)
}

func (r *RetryingOracle) Decide(ctx context.Context, req DecideRequest) (Decision, error) {
	return retry.DoTyped(ctx, r.retryer, func(ctx context.Context) (Decision, error) {
		return r.inner.Decide(ctx, req)
	})
}

func (r *RetryingOracle) Score(ctx context.Context, req ScoreRequest) (UXAnalysis, error) {
	return retry.DoTyped(ctx, r.retryer, func(ctx context.Context) (UXAnalysis, error) {
		return r.inner.Score(ctx, req)
	})
}
