package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	_, ok := JourneyID(ctx)
	assert.False(t, ok)

	ctx = WithJourneyID(ctx, "j-1")
	ctx = WithRequestID(ctx, "r-1")
	ctx = WithTraceID(ctx, "t-1")
	ctx = WithPrincipal(ctx, "ci")

	id, ok := JourneyID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "j-1", id)

	rid, _ := RequestID(ctx)
	assert.Equal(t, "r-1", rid)
	tid, _ := TraceID(ctx)
	assert.Equal(t, "t-1", tid)
	p, _ := Principal(ctx)
	assert.Equal(t, "ci", p)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}
