package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// inFlight returns the number of keys currently being computed.
func (g *Group[K, V]) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

func TestGroup_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int64
	release := make(chan struct{})

	const N = 16
	var wg sync.WaitGroup
	var shared atomic.Int64
	wg.Add(N)
	for i := 0; i < N; i++ {
		go func() {
			defer wg.Done()
			v, s, err := g.Do(context.Background(), "k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil || v != 7 {
				t.Errorf("Do = %d, %v", v, err)
			}
			if s {
				shared.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return g.inFlight() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	// Every caller is either the leader of a flight or shares one.
	require.EqualValues(t, N-calls.Load(), shared.Load())
	require.Zero(t, g.inFlight())
}

func TestGroup_FollowerCancel(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		v, shared, err := g.Do(context.Background(), "k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		if err != nil || shared || v != 1 {
			t.Errorf("leader Do = %d, %v, %v", v, shared, err)
		}
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, shared, err := g.Do(ctx, "k", func() (int, error) { return 2, nil })
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, shared)

	close(release)
	<-done
}

func TestGroup_ErrorShared(t *testing.T) {
	t.Parallel()

	var g Group[int, string]
	boom := errors.New("boom")
	_, shared, err := g.Do(context.Background(), 1, func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	require.False(t, shared)

	// The failed flight is forgotten; the next call runs fn again.
	v, _, err := g.Do(context.Background(), 1, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestGroup_LeaderPanic(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	require.Panics(t, func() {
		_, _, _ = g.Do(context.Background(), "k", func() (int, error) { panic("bad") })
	})
	require.Zero(t, g.inFlight())
}
