package resolver

import (
	"sync"

	log "github.com/rs/zerolog/log"
)

// Metrics counts what a resolver has done since creation.
type Metrics struct {
	mu sync.RWMutex

	archivesLoaded int64
	resourceHits   int64
	resourceMisses int64
	bytesRead      int64
	verifyFailures int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	ArchivesLoaded int64
	ResourceHits   int64
	ResourceMisses int64
	BytesRead      int64
	VerifyFailures int64
}

func (m *Metrics) recordArchiveLoaded(path string, entries int) {
	m.mu.Lock()
	m.archivesLoaded++
	m.mu.Unlock()

	log.Debug().Str("path", path).Int("entries", entries).Msg("archive directory loaded")
}

func (m *Metrics) recordHit(name string) {
	m.mu.Lock()
	m.resourceHits++
	m.mu.Unlock()

	log.Debug().Str("name", name).Msg("resource cache hit")
}

func (m *Metrics) recordMiss(name string, bytesRead int) {
	m.mu.Lock()
	m.resourceMisses++
	m.bytesRead += int64(bytesRead)
	m.mu.Unlock()

	log.Debug().Str("name", name).Int("bytes", bytesRead).Msg("resource loaded")
}

func (m *Metrics) recordVerifyFailure(name string) {
	m.mu.Lock()
	m.verifyFailures++
	m.mu.Unlock()

	log.Debug().Str("name", name).Msg("resource checksum mismatch")
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		ArchivesLoaded: m.archivesLoaded,
		ResourceHits:   m.resourceHits,
		ResourceMisses: m.resourceMisses,
		BytesRead:      m.bytesRead,
		VerifyFailures: m.verifyFailures,
	}
}
