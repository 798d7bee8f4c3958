package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFetcher(value interface{}) (Fetcher, *int32) {
	var calls int32
	return func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)

		return value, nil
	}, &calls
}

func TestFetchCachesSuccess(t *testing.T) {
	c := NewCache(nil)
	fetcher, calls := countingFetcher("hello")

	data, err := c.Fetch(context.Background(), K("greeting"), fetcher)
	require.NoError(t, err)
	assert.Equal(t, "hello", data)

	data, err = c.Fetch(context.Background(), K("greeting"), fetcher)
	require.NoError(t, err)
	assert.Equal(t, "hello", data)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "fresh entry must not refetch")
}

func TestInvalidateMarksStaleAndRefetches(t *testing.T) {
	c := NewCache(nil)
	fetcher, calls := countingFetcher("v1")

	_, err := c.Fetch(context.Background(), K("articles"), fetcher)
	require.NoError(t, err)

	c.Invalidate(K("articles"))
	assert.True(t, c.Peek(K("articles")).Stale)

	_, err = c.Fetch(context.Background(), K("articles"), fetcher)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "stale entry must refetch")
	assert.False(t, c.Peek(K("articles")).Stale)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	c := NewCache(nil)
	fetcher, calls := countingFetcher("v1")

	var notifications int32
	cancel := c.Subscribe(K("articles"), func() {
		atomic.AddInt32(&notifications, 1)
	})
	defer cancel()

	_, err := c.Fetch(context.Background(), K("articles"), fetcher)
	require.NoError(t, err)
	after := atomic.LoadInt32(&notifications)

	c.Invalidate(K("articles"))
	c.Invalidate(K("articles"))

	// Only the first invalidate notifies; the second sees an already-stale
	// entry and is a no-op, so subscribers cannot be goaded into a
	// double-fetch storm.
	assert.Equal(t, after+1, atomic.LoadInt32(&notifications))

	_, err = c.Fetch(context.Background(), K("articles"), fetcher)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestInvalidateMatchesPrefix(t *testing.T) {
	c := NewCache(nil)
	all, _ := countingFetcher("all")
	mine, _ := countingFetcher("mine")
	msgs, _ := countingFetcher("msgs")

	ctx := context.Background()
	_, _ = c.Fetch(ctx, K("articles"), all)
	_, _ = c.Fetch(ctx, K("articles", "user", "u1"), mine)
	_, _ = c.Fetch(ctx, K("messages", "u2"), msgs)

	c.Invalidate(K("articles"))

	assert.True(t, c.Peek(K("articles")).Stale)
	assert.True(t, c.Peek(K("articles", "user", "u1")).Stale)
	assert.False(t, c.Peek(K("messages", "u2")).Stale, "unrelated keys stay fresh")
}

func TestGatedQueryShortCircuits(t *testing.T) {
	c := NewCache(nil)
	fetcher, calls := countingFetcher("never")

	data, err := c.FetchGated(context.Background(), K("articles", "user", ""), "", fetcher)
	require.NoError(t, err)
	assert.Nil(t, data, "empty identifier resolves to an empty success")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls), "disabled query must not hit the network")
	assert.Equal(t, StatusIdle, c.Peek(K("articles", "user", "")).Status)
}

func TestMutateInvalidatesOnSuccessOnly(t *testing.T) {
	c := NewCache(nil)
	fetcher, _ := countingFetcher("cached")
	ctx := context.Background()

	_, err := c.Fetch(ctx, K("articles"), fetcher)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	}, K("articles"))
	require.ErrorIs(t, err, boom)
	assert.False(t, c.Peek(K("articles")).Stale, "a failed mutation leaves cached data untouched")

	res, err := c.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return "created", nil
	}, K("articles"))
	require.NoError(t, err)
	assert.Equal(t, "created", res)
	assert.True(t, c.Peek(K("articles")).Stale, "a successful mutation stales every declared target")
}

func TestInvalidateDuringInFlightFetch(t *testing.T) {
	c := NewCache(nil)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var value atomic.Value
	value.Store("pre-mutation")
	var calls int32
	fetcher := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}

		return value.Load(), nil
	}

	fetchDone := make(chan struct{})
	go func() {
		defer close(fetchDone)
		_, _ = c.Fetch(ctx, K("articles"), fetcher)
	}()

	// A mutation lands while the read is still awaiting its response. The
	// in-flight response predates the mutation, so it must settle stale.
	<-started
	c.Invalidate(K("articles"))
	value.Store("post-mutation")
	close(release)
	<-fetchDone

	res := c.Peek(K("articles"))
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Stale, "a response that began before the invalidation settles stale")

	data, err := c.Fetch(ctx, K("articles"), fetcher)
	require.NoError(t, err)
	assert.Equal(t, "post-mutation", data, "the next read must not return pre-mutation data")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConcurrentFetchesCoalesce(t *testing.T) {
	c := NewCache(nil)

	release := make(chan struct{})
	var calls int32
	fetcher := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release

		return "slow", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := c.Fetch(context.Background(), K("slow"), fetcher)
			require.NoError(t, err)
			results[i] = data
		}(i)
	}

	// Let both goroutines reach the cache before releasing the fetch.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a second trigger must coalesce, never run in parallel")
	assert.Equal(t, "slow", results[0])
	assert.Equal(t, "slow", results[1])
}

func TestFetchErrorKeepsPreviousData(t *testing.T) {
	c := NewCache(nil)
	ctx := context.Background()

	_, err := c.Fetch(ctx, K("articles"), func(ctx context.Context) (interface{}, error) {
		return "old", nil
	})
	require.NoError(t, err)
	c.Invalidate(K("articles"))

	boom := errors.New("network down")
	_, err = c.Fetch(ctx, K("articles"), func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	res := c.Peek(K("articles"))
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "old", res.Data, "an error is local to the fetch and must not corrupt prior data")
}

func TestSubscribeCancelStopsNotifications(t *testing.T) {
	c := NewCache(nil)
	fetcher, _ := countingFetcher("v")

	var notifications int32
	cancel := c.Subscribe(K("a"), func() { atomic.AddInt32(&notifications, 1) })

	_, _ = c.Fetch(context.Background(), K("a"), fetcher)
	seen := atomic.LoadInt32(&notifications)
	assert.Greater(t, seen, int32(0))

	cancel()
	c.Invalidate(K("a"))
	assert.Equal(t, seen, atomic.LoadInt32(&notifications), "a torn-down subscriber never hears late transitions")
}

func TestAutoRefetchConvergesAfterInvalidation(t *testing.T) {
	c := NewCache(nil)

	var value atomic.Value
	value.Store("v1")
	var calls int32
	fetcher := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)

		return value.Load(), nil
	}

	cancel := c.AutoRefetch(K("articles"), fetcher)
	defer cancel()

	_, err := c.Fetch(context.Background(), K("articles"), fetcher)
	require.NoError(t, err)

	value.Store("v2")
	c.Invalidate(K("articles"))

	require.Eventually(t, func() bool {
		res := c.Peek(K("articles"))

		return res.Status == StatusSuccess && !res.Stale && res.Data == "v2"
	}, time.Second, time.Millisecond, "subscribed views converge on server state after invalidation")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestKeyHasPrefix(t *testing.T) {
	assert.True(t, K("articles", "user", "u1").HasPrefix(K("articles")))
	assert.True(t, K("articles").HasPrefix(K("articles")))
	assert.False(t, K("articles").HasPrefix(K("articles", "user")))
	assert.False(t, K("messages", "u1").HasPrefix(K("articles")))
}
