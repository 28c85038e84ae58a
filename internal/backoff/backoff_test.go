package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keyspandb/keyspan-go-sdk/internal/xrand"
)

func TestLogBackoffDelay(t *testing.T) {
	type exp struct {
		eq  time.Duration
		gte time.Duration
		lte time.Duration
	}
	for _, tt := range []struct {
		name    string
		backoff logBackoff
		exp     []exp
		seeds   int64
	}{
		{
			name: "withoutJitter",
			backoff: New(
				WithSlotDuration(time.Second),
				WithCeiling(3),
				WithJitterLimit(1),
			),
			exp: []exp{
				{eq: 1 * time.Second},
				{eq: 2 * time.Second},
				{eq: 4 * time.Second},
				{eq: 8 * time.Second},
				{eq: 8 * time.Second},
			},
		},
		{
			name: "withJitter",
			backoff: New(
				WithSlotDuration(time.Second),
				WithCeiling(3),
				WithJitterLimit(0.5),
			),
			exp: []exp{
				{gte: 500 * time.Millisecond, lte: 1 * time.Second},
				{gte: 1 * time.Second, lte: 2 * time.Second},
				{gte: 2 * time.Second, lte: 4 * time.Second},
				{gte: 4 * time.Second, lte: 8 * time.Second},
			},
			seeds: 1000,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seeds == 0 {
				tt.seeds = 1
			}
			for seed := int64(0); seed < tt.seeds; seed++ {
				b := tt.backoff
				b.r = xrand.New(xrand.WithLock(), xrand.WithSeed(seed))

				for i, exp := range tt.exp {
					d := b.Delay(i)
					if exp.eq != 0 {
						require.Equal(t, exp.eq, d, "delay #%d", i)

						continue
					}
					require.GreaterOrEqual(t, d, exp.gte, "delay #%d", i)
					require.LessOrEqual(t, d, exp.lte, "delay #%d", i)
				}
			}
		})
	}
}

func TestDelayGrowsUpToCeiling(t *testing.T) {
	b := New(
		WithSlotDuration(5*time.Millisecond),
		WithCeiling(6),
		WithJitterLimit(1),
	)
	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := b.Delay(i)
		require.GreaterOrEqual(t, d, prev)
		require.LessOrEqual(t, d, 5*time.Millisecond*(1<<6))
		prev = d
	}
}

func TestWaitCancelation(t *testing.T) {
	b := New(
		WithSlotDuration(time.Hour),
		WithJitterLimit(1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, b, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitFires(t *testing.T) {
	b := New(
		WithSlotDuration(time.Nanosecond),
		WithJitterLimit(1),
	)

	err := Wait(context.Background(), b, 0)
	require.NoError(t, err)
}
