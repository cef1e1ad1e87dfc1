package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_news/internal/httpclient"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func transient() error {
	return &httpclient.Error{Kind: httpclient.KindServer, StatusCode: 503, Err: errors.New("unavailable")}
}

func TestDo_SucceedsAfterTwoTransientFailures(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	res, err := Do(context.Background(), Policy{MaxAttempts: 3, Sleep: rec.sleep}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", transient()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestDo_ExhaustsAfterMaxAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	var retries []Attempt

	res, err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Sleep:       rec.sleep,
		OnRetry:     func(a Attempt) { retries = append(retries, a) },
	}, func(ctx context.Context) ([]int, error) {
		calls++
		return nil, &httpclient.Error{Kind: httpclient.KindNetwork, Err: errors.New("timeout")}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, httpclient.KindNetwork, httpclient.KindOf(err))
	assert.Nil(t, res)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2)
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Number)
	assert.Equal(t, 2*time.Second, retries[1].Delay)
}

func TestDo_NonTransientFailsFast(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	authErr := &httpclient.Error{Kind: httpclient.KindClient, StatusCode: 401, Err: errors.New("unauthorized")}

	_, err := Do(context.Background(), Policy{MaxAttempts: 3, Sleep: rec.sleep}, func(ctx context.Context) (int, error) {
		calls++
		return 0, authErr
	})

	require.Error(t, err)
	assert.Same(t, authErr, err)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_RateLimitIsNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Sleep: (&sleepRecorder{}).sleep}, func(ctx context.Context) (int, error) {
		calls++
		return 0, &httpclient.Error{Kind: httpclient.KindRateLimited, StatusCode: 429, Err: errors.New("slow down")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour}, func(ctx context.Context) (int, error) {
		calls++
		return 0, transient()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 5*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(10))
}
