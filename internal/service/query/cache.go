package query

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"dataframehub/internal/domain"
)

// ErrManagerClosed is returned for queries issued after Manager.Close.
var ErrManagerClosed = errors.New("connection manager is closed")

// fileStamp identifies the version of a physical file a relation was registered from.
type fileStamp struct {
	path    string
	size    int64
	modNano int64
}

// connEntry is the cached backend session of one dataset. sem serializes
// use of conn and guards registered and closed.
type connEntry struct {
	key        string
	backend    domain.BackendType
	location   string
	driver     domain.Driver
	conn       domain.Connection
	sem        *semaphore.Weighted
	registered map[string]fileStamp
	closed     bool
}

func newConnEntry(key string, driver domain.Driver, location string, conn domain.Connection) *connEntry {
	return &connEntry{
		key:        key,
		backend:    driver.Type(),
		location:   location,
		driver:     driver,
		conn:       conn,
		sem:        semaphore.NewWeighted(1),
		registered: make(map[string]fileStamp),
	}
}

// lock takes exclusive use of the session. It reports false, without
// holding the lock, when the session was closed while waiting.
func (e *connEntry) lock(ctx context.Context) (bool, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	if e.closed {
		e.sem.Release(1)
		return false, nil
	}
	return true, nil
}

func (e *connEntry) unlock() { e.sem.Release(1) }

// closeWhenIdle waits for the running query, if any, and closes the session.
func (e *connEntry) closeWhenIdle() error {
	_ = e.sem.Acquire(context.Background(), 1)
	defer e.sem.Release(1)
	if e.closed {
		return nil
	}
	e.closed = true
	return e.conn.Close()
}

// connCache holds one connEntry per dataset key. Construction of a missing
// entry happens at most once per key even under concurrent first use.
type connCache struct {
	mu      sync.RWMutex
	entries map[string]*connEntry
	flight  singleflight.Group
	closed  bool
}

func newConnCache() *connCache {
	return &connCache{entries: make(map[string]*connEntry)}
}

func (c *connCache) lookup(key string) (*connEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrManagerClosed
	}
	e, ok := c.entries[key]
	return e, ok, nil
}

// getOrCreate returns the entry for key, calling create when none exists.
// create runs detached from ctx cancellation so an abandoned caller cannot
// leave a half-built entry behind; ctx only bounds how long this caller waits.
// A failed construction is not cached.
func (c *connCache) getOrCreate(ctx context.Context, key string, create func(context.Context) (*connEntry, error)) (*connEntry, error) {
	if e, ok, err := c.lookup(key); err != nil || ok {
		return e, err
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		// Another flight may have finished between lookup and DoChan.
		if e, ok, err := c.lookup(key); err != nil || ok {
			return e, err
		}

		e, err := create(buildCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = e.conn.Close()
			return nil, ErrManagerClosed
		}
		c.entries[key] = e
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*connEntry), nil
	}
}

// evict removes e if it is still the cached entry for its key and closes it.
func (c *connCache) evict(e *connEntry) error {
	c.mu.Lock()
	if cur, ok := c.entries[e.key]; !ok || cur != e {
		c.mu.Unlock()
		return nil
	}
	delete(c.entries, e.key)
	c.mu.Unlock()
	return e.closeWhenIdle()
}

func (c *connCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// close closes every cached session and rejects further use.
func (c *connCache) close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*connEntry)
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		errs = append(errs, e.closeWhenIdle())
	}
	return errors.Join(errs...)
}
