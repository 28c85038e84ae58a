package trace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComposeCallOrder(t *testing.T) {
	var calls []string

	a := &Client{
		OnPoolGet: func(PoolGetStartInfo) func(PoolGetDoneInfo) {
			calls = append(calls, "a.start")

			return func(PoolGetDoneInfo) {
				calls = append(calls, "a.done")
			}
		},
	}
	b := &Client{
		OnPoolGet: func(PoolGetStartInfo) func(PoolGetDoneInfo) {
			calls = append(calls, "b.start")

			return func(PoolGetDoneInfo) {
				calls = append(calls, "b.done")
			}
		},
	}

	done := a.Compose(b).OnPoolGet(PoolGetStartInfo{})
	done(PoolGetDoneInfo{})

	require.Equal(t, []string{"a.start", "b.start", "a.done", "b.done"}, calls)
}

func TestComposeWithNilHooks(t *testing.T) {
	called := false
	a := &Client{}
	b := &Client{
		OnSessionNew: func(SessionNewStartInfo) func(SessionNewDoneInfo) {
			called = true

			return nil
		},
	}

	composed := a.Compose(b)
	require.Nil(t, composed.OnPoolGet)

	done := composed.OnSessionNew(SessionNewStartInfo{})
	require.True(t, called)
	require.Nil(t, done)
}

func TestComposeRetry(t *testing.T) {
	var calls int
	hook := func(RetryLoopStartInfo) func(RetryLoopDoneInfo) {
		calls++

		return nil
	}

	composed := (&Retry{OnRetry: hook}).Compose(&Retry{OnRetry: hook})
	composed.OnRetry(RetryLoopStartInfo{})

	require.Equal(t, 2, calls)
}

func TestComposeStateChange(t *testing.T) {
	var seen []int
	a := &Client{OnPoolStateChange: func(info PoolStateChangeInfo) {
		seen = append(seen, info.Idle)
	}}
	b := &Client{OnPoolStateChange: func(info PoolStateChangeInfo) {
		seen = append(seen, info.Idle*10)
	}}

	a.Compose(b).OnPoolStateChange(PoolStateChangeInfo{Idle: 2})
	require.Equal(t, []int{2, 20}, seen)
}
