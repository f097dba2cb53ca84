package epochgc

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Collector is the background reclamation worker bound to its own goroutine
// (spec §4.3 "Collect"). One Collector drains every object type registered
// in a Registry.
type Collector struct {
	registry *Registry
	interval time.Duration

	group  *errgroup.Group
	cancel context.CancelFunc
}

// DefaultInterval is how often the collector sweeps every object type's
// thread list when no interval is supplied to NewCollector.
const DefaultInterval = 5 * time.Millisecond

// NewCollector constructs a collector for registry. Call Start to launch its
// goroutine and Stop to shut it down; lifecycle is managed through
// golang.org/x/sync/errgroup rather than a hand-rolled channel/WaitGroup pair
// (see DESIGN.md).
func NewCollector(registry *Registry, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Collector{registry: registry, interval: interval}
}

// Start launches the collector's background loop.
func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	c.group = g
	g.Go(func() error {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				c.sweep()
			}
		}
	})
}

// Stop cancels the background loop and waits for it to exit.
func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	_ = c.group.Wait()
}

// CollectAll performs one synchronous sweep across every registered object
// type and returns the total number of objects reclaimed. Exposed for tests
// and for callers that want deterministic collection instead of waiting on
// the background ticker (spec §6.3 gc_thread_collect_all, generalized here to
// the whole registry).
func (c *Collector) CollectAll() uint64 {
	return c.sweep()
}

func (c *Collector) sweep() uint64 {
	var total uint64
	c.registry.mu.Lock()
	types := make([]*objectType, 0, len(c.registry.types))
	for _, ot := range c.registry.types {
		types = append(types, ot)
	}
	c.registry.mu.Unlock()

	for _, ot := range types {
		total += collectObjectType(ot)
	}
	return total
}

// collectObjectType implements spec §4.3's "Collect" loop for a single
// object type: for every thread, peek the head ring's oldest entry; if its
// staged epoch is strictly less than the thread's current epoch, destroy a
// batch and advance. Empty non-tail rings are unlinked. Terminated threads
// that have fully drained are removed from the type's thread list.
func collectObjectType(ot *objectType) uint64 {
	threads := ot.snapshotThreads()
	var collected uint64

	for _, thread := range threads {
		currentEpoch := thread.Epoch()
		if thread.Terminated() {
			// A terminated thread never advances again: count one final
			// tick so objects staged at its last epoch are released too.
			currentEpoch++
		}

		for {
			head := thread.ringHead.Load()
			entry, ok := head.peek()
			if !ok {
				if next := head.next.Load(); next != nil && head != thread.ringTail.Load() {
					thread.ringHead.CompareAndSwap(head, next)
					continue
				}
				break
			}
			if entry.epoch >= currentEpoch {
				break
			}

			batch := make([]any, 0, DestructorBatchSize)
			for len(batch) < DestructorBatchSize {
				e, ok := head.peek()
				if !ok || e.epoch >= currentEpoch {
					break
				}
				batch = append(batch, e.object)
				head.advance()
			}
			if len(batch) == 0 {
				break
			}
			if ot.destructor != nil {
				ot.destructor(batch)
			}
			collected += uint64(len(batch))
		}

		head := thread.ringHead.Load()
		if thread.Terminated() && head.drained() && head == thread.ringTail.Load() {
			ot.removeThread(thread)
		}
	}
	return collected
}
