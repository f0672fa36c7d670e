package metrics

import (
	"time"

	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
)

// Collector periodically samples the registry's persisted state and
// updates the corresponding gauges.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector backed by store.
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectAuthorMetrics()
	c.collectPackageMetrics()
}

func (c *Collector) collectAuthorMetrics() {
	authors, err := c.store.ListAuthors()
	if err != nil {
		return
	}

	AuthorsTotal.Set(float64(len(authors)))

	var used int64
	for _, author := range authors {
		used += author.UsedStorage
	}
	StorageUsedBytes.Set(float64(used))
}

func (c *Collector) collectPackageMetrics() {
	packages, err := c.store.ListPackages()
	if err != nil {
		return
	}

	PackagesTotal.Set(float64(len(packages)))

	versionCounts := make(map[types.VersionStatus]int)
	for _, pkg := range packages {
		for _, vr := range pkg.Versions {
			versionCounts[vr.Status]++
		}
	}

	for status, count := range versionCounts {
		VersionsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
