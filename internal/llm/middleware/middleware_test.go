package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "restack/internal/llm/client"
)

// countingClient fails the first failures calls, then answers.
type countingClient struct {
	calls    int
	failures int
	err      error
	reply    string
}

func (c *countingClient) Name() string                { return "fake" }
func (c *countingClient) Close() error                { return nil }
func (c *countingClient) CountTokens(text string) int { return len(strings.Fields(text)) }
func (c *countingClient) TokenCapacity() int          { return 1024 }
func (c *countingClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", c.err
	}
	return c.reply, nil
}

func TestRetryRecoversTransientFailure(t *testing.T) {
	inner := &countingClient{failures: 2, err: errors.New("boom"), reply: "ok"}
	cli := Wrap(inner, Retry(3, time.Millisecond))
	t.Cleanup(func() { _ = cli.Close() })

	out, err := cli.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &countingClient{
		failures: 10,
		err:      llmclient.NewPermanentError(errors.New("context too long")),
	}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	_, err := cli.GenerateText(context.Background(), "p")
	require.Error(t, err)
	var pErr *llmclient.PermanentError
	assert.True(t, errors.As(err, &pErr))
	assert.Equal(t, 1, inner.calls, "permanent error must not be retried")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &countingClient{failures: 10, err: errors.New("boom")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	_, err := cli.GenerateText(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCacheHitSkipsInnerClient(t *testing.T) {
	inner := &countingClient{reply: "cached answer"}
	cli := Wrap(inner, WithCache(8))

	for i := 0; i < 3; i++ {
		out, err := cli.GenerateText(context.Background(), "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", out)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := cli.GenerateText(context.Background(), "different prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	inner := &countingClient{failures: 1, err: errors.New("boom"), reply: "ok"}
	cli := Wrap(inner, WithCache(8))

	_, err := cli.GenerateText(context.Background(), "p")
	require.Error(t, err)
	out, err := cli.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestCacheDisabledPassesThrough(t *testing.T) {
	inner := &countingClient{reply: "ok"}
	cli := Wrap(inner, WithCache(0))

	_, _ = cli.GenerateText(context.Background(), "p")
	_, _ = cli.GenerateText(context.Background(), "p")
	assert.Equal(t, 2, inner.calls)
}

func TestRateLimitSpacing(t *testing.T) {
	// Expect >=400ms total for two calls when rps=2 and burst=1.
	inner := &countingClient{reply: "ok"}
	cli := Wrap(inner, RateLimit(2, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	_, err := cli.GenerateText(ctx, "p")
	require.NoError(t, err)
	_, err = cli.GenerateText(ctx, "p")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestRateLimitHonorsContextCancellation(t *testing.T) {
	inner := &countingClient{reply: "ok"}
	cli := Wrap(inner, RateLimit(0.01, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	_, err := cli.GenerateText(ctx, "p") // drains the single burst token
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cli.GenerateText(ctx, "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrapOrder(t *testing.T) {
	inner := &countingClient{failures: 1, err: errors.New("boom"), reply: "ok"}
	// Retry outside the cache: the cache only ever sees settled outcomes.
	cli := Wrap(inner, Retry(2, time.Millisecond), WithCache(8))

	out, err := cli.GenerateText(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, inner.calls)
}
