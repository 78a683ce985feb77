package metrics

import (
	"time"

	"github.com/arcuru/eidetica/pkg/storage"
)

// Collector periodically samples a storage backend's gauges: tree count,
// total entry count, and entries currently marked Failed verification.
type Collector struct {
	backend storage.Database
	stopCh  chan struct{}
}

// NewCollector creates a collector over backend.
func NewCollector(backend storage.Database) *Collector {
	return &Collector{
		backend: backend,
		stopCh:  make(chan struct{}),
	}
}

// Start begins sampling on a 15-second tick, after an immediate first
// sample.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	roots := c.backend.AllRoots()
	TreesTotal.Set(float64(len(roots)))

	entryCount := 0
	for _, root := range roots {
		entryCount += len(c.backend.GetTree(root))
	}
	EntriesTotal.Set(float64(entryCount))

	failed := c.backend.GetEntriesByVerificationStatus(storage.Failed)
	VerificationFailuresTotal.Set(float64(len(failed)))
}
