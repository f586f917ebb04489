// Package cache holds the in-process caches for sheet reads and exchange
// rates. Caches are disposable: the row store stays the system of record.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is a string-keyed cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Purger is implemented by caches that can be cleared in one call.
type Purger interface {
	Purge()
}

// Manager owns a set of caches: it sweeps expired entries periodically and
// clears all of them at once after a mutating operation.
type Manager struct {
	mu       sync.Mutex
	cleaners []Cleaner
	purgers  []Purger
	stop     chan struct{}
	done     chan struct{}
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a cache. It is swept if it is a Cleaner and cleared by
// PurgeAll if it is a Purger.
func (m *Manager) Register(c any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cl, ok := c.(Cleaner); ok {
		m.cleaners = append(m.cleaners, cl)
	}
	if p, ok := c.(Purger); ok {
		m.purgers = append(m.purgers, p)
	}
}

// PurgeAll clears every registered cache.
func (m *Manager) PurgeAll() {
	m.mu.Lock()
	purgers := append([]Purger(nil), m.purgers...)
	m.mu.Unlock()
	for _, p := range purgers {
		p.Purge()
	}
}

// StartCleanup sweeps expired entries every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	m.stop, m.done = stop, done
	m.mu.Unlock()
	go m.cleanup(interval, stop, done)
}

// cleanup owns stop and done; Stop may clear the fields while it runs.
func (m *Manager) cleanup(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			cleaners := append([]Cleaner(nil), m.cleaners...)
			m.mu.Unlock()
			total := 0
			for _, c := range cleaners {
				total += c.CleanExpired()
			}
			if total > 0 {
				slog.Debug("Expired cache entries removed", "count", total)
			}
		case <-stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine if it was started.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}
