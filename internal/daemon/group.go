package daemon

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// group tracks named background workers so shutdown can wait for them.
type group struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]struct{}
}

func newGroup() *group {
	return &group{running: make(map[string]struct{})}
}

// Go runs fn in its own goroutine under name.
func (g *group) Go(name string, fn func()) {
	g.mu.Lock()
	g.running[name] = struct{}{}
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			delete(g.running, name)
			g.mu.Unlock()
		}()
		log.Debug().Str("worker", name).Msg("worker started")
		fn()
		log.Debug().Str("worker", name).Msg("worker stopped")
	}()
}

// Wait blocks until every worker has returned or ctx expires. It reports
// whether all workers finished.
func (g *group) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		g.mu.Lock()
		defer g.mu.Unlock()
		for name := range g.running {
			log.Warn().Str("worker", name).Msg("worker did not stop before shutdown deadline")
		}
		return false
	}
}

// Running returns the number of workers that have not returned yet.
func (g *group) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
