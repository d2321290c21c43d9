package fetch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostSlot tracks one host's semaphore and how many fetches hold or await it.
// A slot is dropped once nothing holds or awaits it.
type hostSlot struct {
	sem    *semaphore.Weighted
	active int64
}

// HostLimiter bounds the number of in-flight fetches per host when several
// batch workers hit the same site. It never delays a request once a slot is free.
type HostLimiter struct {
	slots map[string]*hostSlot
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostLimiter creates a limiter allowing maxPerHost concurrent fetches per host
func NewHostLimiter(maxPerHost int, log *logrus.Entry) *HostLimiter {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
	}
	return &HostLimiter{
		slots: make(map[string]*hostSlot),
		limit: limit,
		log:   log,
	}
}

// Acquire blocks until a slot for host is free or ctx is done
func (h *HostLimiter) Acquire(ctx context.Context, host string) error {
	h.mu.Lock()
	slot, ok := h.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(h.limit)}
		h.slots[host] = slot
	}
	slot.active++
	h.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		h.mu.Lock()
		slot.active--
		h.mu.Unlock()
		return err
	}
	return nil
}

// Release frees one slot for host
func (h *HostLimiter) Release(host string) {
	h.mu.Lock()
	slot, ok := h.slots[host]
	if !ok {
		h.mu.Unlock()
		h.log.Warnf("Release called for unknown host: %s", host)
		return
	}
	slot.active--
	if slot.active == 0 {
		delete(h.slots, host)
	}
	h.mu.Unlock()

	slot.sem.Release(1)
}

// Len returns the number of tracked hosts
func (h *HostLimiter) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots)
}
