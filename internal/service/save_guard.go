package service

import (
	"context"
	"sync"
)

// ExportedSaveGuard is an exported alias so _test packages can test the guard.
type ExportedSaveGuard = saveGuard

// ─────────────────────────────────────────────────────────────
// saveGuard — tracks in-flight writes per page key
// ─────────────────────────────────────────────────────────────

// saveGuard ensures only one write for a given page key is in flight and
// lets shutdown wait for all of them.
type saveGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock attempts to mark pageKey as saving. Returns false if a save for
// that key is already running.
func (g *saveGuard) TryLock(pageKey string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[pageKey]; ok {
		return false
	}
	g.running[pageKey] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock marks the save as finished. Must be called after TryLock returns true.
func (g *saveGuard) Unlock(pageKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, pageKey)
	g.wg.Done()
}

// WaitAll blocks until all in-flight saves complete or ctx is cancelled.
func (g *saveGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
