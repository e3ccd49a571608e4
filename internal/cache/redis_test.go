package cache

import (
	"context"
	"testing"

	"buspass/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	_ = c.Close()

	c, err = Connect(ctx, "redis://"+mr.Addr()+"/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	_, err = Connect(ctx, "redis://:bad:url")
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestOpen_UnreachableLeavesNoClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	t.Cleanup(func() { SetClient(nil) })

	assert.Nil(t, Open(context.Background(), addr))
	assert.Nil(t, GetClient())
}

func TestErrorCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer c.Close()

	before := testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("incr"))
	mr.SetError("ERR injected failure")
	assert.Error(t, c.Incr(context.Background(), "n").Err())
	mr.SetError("")

	assert.Equal(t, before+1, testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("incr")))

	// a missing key is not an error
	before = testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("get"))
	_ = c.Get(context.Background(), "missing").Err()
	assert.Equal(t, before, testutil.ToFloat64(observability.RedisErrorRate.WithLabelValues("get")))
}
