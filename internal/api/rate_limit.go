package api

import (
	"sync"
	"time"
)

// maxTrackedClients bounds the failure map; past it, expired windows are
// dropped on the next failure.
const maxTrackedClients = 4096

type failureWindow struct {
	count int
	since time.Time
}

// loginGuard locks a client out after limit failed logins inside window.
// A successful login clears the client's record.
type loginGuard struct {
	mu       sync.Mutex
	failures map[string]failureWindow
	limit    int
	window   time.Duration
	now      func() time.Time
}

func newLoginGuard(limit int, window time.Duration) *loginGuard {
	return &loginGuard{
		failures: make(map[string]failureWindow),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// retryAfter reports how long key stays locked out. Zero means it may try.
func (g *loginGuard) retryAfter(key string) time.Duration {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.failures[key]
	if !ok {
		return 0
	}
	elapsed := now.Sub(f.since)
	if elapsed >= g.window {
		delete(g.failures, key)
		return 0
	}
	if f.count < g.limit {
		return 0
	}
	return g.window - elapsed
}

func (g *loginGuard) fail(key string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.failures) >= maxTrackedClients {
		for k, f := range g.failures {
			if now.Sub(f.since) >= g.window {
				delete(g.failures, k)
			}
		}
	}
	f, ok := g.failures[key]
	if !ok || now.Sub(f.since) >= g.window {
		f = failureWindow{since: now}
	}
	f.count++
	g.failures[key] = f
}

func (g *loginGuard) clear(key string) {
	g.mu.Lock()
	delete(g.failures, key)
	g.mu.Unlock()
}
