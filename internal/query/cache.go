// Package query implements the client-side data-synchronization layer: a
// keyed cache of read operations with pending/success/error status, prefix
// invalidation after mutations, and subscriber notification so dependent
// views converge on server state without a full reload.
package query

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Status of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}

	return "idle"
}

// Key identifies a cached operation by its parameters, e.g.
// K("articles", "user", userID). Invalidation matches on key prefixes.
type Key []string

func K(parts ...string) Key { return Key(parts) }

func (k Key) String() string { return strings.Join(k, "/") }

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}

	return true
}

// Fetcher loads fresh data for a key from the remote source.
type Fetcher func(ctx context.Context) (interface{}, error)

// Result is a snapshot of a cache entry, used by views to derive
// loading/error/empty/populated states.
type Result struct {
	Status Status
	Data   interface{}
	Err    error
	Stale  bool
}

type entry struct {
	key    Key
	status Status
	data   interface{}
	err    error
	stale  bool
	done   chan struct{} // non-nil while a fetch is in flight
	subs   map[int]func()
}

// Cache is the query/mutation cache. All methods are safe for concurrent
// use; at most one fetch per key is ever in flight.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSub int
	log     *zap.SugaredLogger
}

func NewCache(log *zap.SugaredLogger) *Cache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Cache{entries: map[string]*entry{}, log: log}
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key.String()]
	if !ok {
		e = &entry{key: key, subs: map[int]func(){}}
		c.entries[key.String()] = e
	}

	return e
}

// Fetch returns the cached data for key when it is a fresh success; otherwise
// it runs fetcher, transitioning the entry pending -> success|error and
// notifying subscribers on each transition. A second caller arriving while a
// fetch is in flight waits for that fetch and observes its outcome instead of
// issuing a parallel request.
func (c *Cache) Fetch(ctx context.Context, key Key, fetcher Fetcher) (interface{}, error) {
	for {
		c.mu.Lock()
		e := c.entryLocked(key)

		if e.done != nil {
			done := e.done
			c.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			// Re-read the settled entry; it may have been invalidated
			// between the fetch landing and us waking up.
			continue
		}

		if e.status == StatusSuccess && !e.stale {
			data := e.data
			c.mu.Unlock()

			return data, nil
		}

		done := make(chan struct{})
		e.done = done
		e.status = StatusPending
		// Cleared before the fetcher runs; an invalidation arriving while
		// the fetch is in flight re-marks the entry, and settling below
		// leaves that mark in place so the next read refetches.
		e.stale = false
		notify := subscribersLocked(e)
		c.mu.Unlock()

		fanOut(notify)
		c.log.Debugw("query fetch", "key", key.String())

		data, err := fetcher(ctx)

		c.mu.Lock()
		e.done = nil
		e.err = err
		if err != nil {
			// Keep any previous data around; the error is local to this
			// fetch and must not corrupt what was cached before.
			e.status = StatusError
			c.log.Warnw("query fetch failed", "key", key.String(), "err", err)
		} else {
			e.status = StatusSuccess
			e.data = data
		}
		notify = subscribersLocked(e)
		c.mu.Unlock()

		close(done)
		fanOut(notify)

		return data, err
	}
}

// FetchGated is Fetch for queries that depend on a required identifier. An
// empty identifier short-circuits to an empty successful result without
// touching the cache or the network.
func (c *Cache) FetchGated(ctx context.Context, key Key, requiredID string, fetcher Fetcher) (interface{}, error) {
	if requiredID == "" {
		return nil, nil
	}

	return c.Fetch(ctx, key, fetcher)
}

// Mutate runs fetcher exactly once. On success the declared key prefixes are
// invalidated so their next read refetches; on error the cache is left
// untouched.
func (c *Cache) Mutate(ctx context.Context, fetcher Fetcher, invalidates ...Key) (interface{}, error) {
	data, err := fetcher(ctx)
	if err != nil {
		return nil, err
	}

	for _, prefix := range invalidates {
		c.Invalidate(prefix)
	}

	return data, nil
}

// Invalidate marks every entry whose key starts with prefix as stale and
// notifies its subscribers. Invalidating an already-stale or never-fetched
// entry is a no-op, so repeated invalidations cannot cause a double-fetch
// storm. An entry with a fetch in flight is still marked: that fetch began
// before the invalidation, so its response may predate the mutation and
// must not settle as fresh.
func (c *Cache) Invalidate(prefix Key) {
	var notify []func()

	c.mu.Lock()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.stale || e.status == StatusIdle {
			continue
		}
		e.stale = true
		notify = append(notify, subscribersLocked(e)...)
	}
	c.mu.Unlock()

	fanOut(notify)
}

// Peek returns the current state of a key without triggering a fetch.
func (c *Cache) Peek(key Key) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Result{Status: StatusIdle}
	}

	return Result{Status: e.status, Data: e.data, Err: e.err, Stale: e.stale}
}

// Subscribe registers fn to run whenever the entry for key changes state.
// The returned cancel func deregisters the subscription; a torn-down view
// must call it so late completions are discarded instead of re-rendering a
// defunct subscriber.
func (c *Cache) Subscribe(key Key, fn func()) (cancel func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	id := c.nextSub
	c.nextSub++
	e.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(e.subs, id)
		c.mu.Unlock()
	}
}

// AutoRefetch subscribes to key and refetches it in the background whenever
// it goes stale, so a view subscribed to a listing converges after a
// mutation invalidates it. A refetch arriving while a fetch is in flight
// coalesces onto it, so repeated invalidations cannot stack requests.
func (c *Cache) AutoRefetch(key Key, fetcher Fetcher) (cancel func()) {
	return c.Subscribe(key, func() {
		if !c.Peek(key).Stale {
			return
		}
		go func() {
			_, _ = c.Fetch(context.Background(), key, fetcher)
		}()
	})
}

func subscribersLocked(e *entry) []func() {
	fns := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}

	return fns
}

// fanOut invokes subscriber callbacks outside the cache lock, so a callback
// may call back into the cache.
func fanOut(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
