package watch

import "sync"

// serviceLocks serializes reconciliations per service. Poll and push
// triggers for the same service take turns; different services proceed
// concurrently. Without this, the full-replace cache write makes
// overlapping reconciliations a last-writer-wins race.
type serviceLocks struct {
	mu   sync.Mutex
	held map[string]*serviceLock
}

type serviceLock struct {
	mu   sync.Mutex
	refs int
}

func newServiceLocks() *serviceLocks {
	return &serviceLocks{held: make(map[string]*serviceLock)}
}

// Lock blocks until the per-service lock is held and returns the
// release function.
func (l *serviceLocks) Lock(service string) func() {
	l.mu.Lock()
	entry, ok := l.held[service]
	if !ok {
		entry = &serviceLock{}
		l.held[service] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, service)
		}
		l.mu.Unlock()
	}
}
