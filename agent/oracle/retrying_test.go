package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mysteryshopper/llm"
	"github.com/BaSui01/mysteryshopper/llm/retry"
)

func fastPolicy(retries int) *retry.RetryPolicy {
	return &retry.RetryPolicy{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
}

func TestRetryingOracle_RetriesRetryable(t *testing.T) {
	p := &fakeProvider{
		errs:    []error{&llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}},
		replies: []string{"", `{"action":"scroll"}`},
	}
	o := NewRetryingOracle(NewVisionOracle(p, nil), fastPolicy(2), nil)

	d, err := o.Decide(context.Background(), DecideRequest{Snapshot: testShot})
	require.NoError(t, err)
	assert.Equal(t, ActionScroll, d.Action)
	assert.Len(t, p.requests, 2)
}

func TestRetryingOracle_RetriesMalformed(t *testing.T) {
	p := &fakeProvider{replies: []string{"oops", `{"page_type":"login","conversion_score":40}`}}
	o := NewRetryingOracle(NewVisionOracle(p, nil), fastPolicy(1), nil)

	a, err := o.Score(context.Background(), ScoreRequest{Snapshot: testShot})
	require.NoError(t, err)
	assert.Equal(t, PageLogin, a.PageType)
}

func TestRetryingOracle_StopsOnPermanent(t *testing.T) {
	perm := &llm.Error{Code: llm.ErrUnauthorized, Message: "bad key"}
	p := &fakeProvider{errs: []error{perm, perm, perm}}
	o := NewRetryingOracle(NewVisionOracle(p, nil), fastPolicy(3), nil)

	_, err := o.Decide(context.Background(), DecideRequest{Snapshot: testShot})
	assert.ErrorIs(t, err, perm)
	assert.Len(t, p.requests, 1)
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(&llm.Error{Retryable: true}))
	assert.True(t, ShouldRetry(ErrMalformedResponse))
	assert.False(t, ShouldRetry(errors.New("plain")))
	assert.False(t, ShouldRetry(context.Canceled))
}
