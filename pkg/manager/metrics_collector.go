package manager

import (
	"time"

	"github.com/cuemby/catalogd/pkg/metrics"
	"github.com/cuemby/catalogd/pkg/types"
)

// MetricsCollector periodically samples the Manager's raft state and the
// catalog Service's persisted record counts into the Prometheus gauges.
type MetricsCollector struct {
	manager *Manager
	stopCh  chan struct{}
}

// NewMetricsCollector creates a new metrics collector bound to mgr.
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager: mgr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the sampling loop.
func (c *MetricsCollector) Start() {
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

// Stop halts the sampling loop.
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	c.collectCatalogMetrics()
	c.collectRaftMetrics()
}

func (c *MetricsCollector) collectCatalogMetrics() {
	tableCounts := map[types.TableState]int{}
	_ = c.manager.store.VisitTables(func(t *types.Table) error {
		tableCounts[t.State]++
		return nil
	})
	for state, count := range tableCounts {
		metrics.TablesTotal.WithLabelValues(string(state)).Set(float64(count))
	}

	tabletCounts := map[types.TabletState]int{}
	_ = c.manager.store.VisitTablets(func(t *types.Tablet) error {
		tabletCounts[t.State]++
		return nil
	})
	for state, count := range tabletCounts {
		metrics.TabletsTotal.WithLabelValues(string(state)).Set(float64(count))
	}

	var namespaceCount float64
	_ = c.manager.store.VisitNamespaces(func(*types.Namespace) error {
		namespaceCount++
		return nil
	})
	metrics.NamespacesTotal.Set(namespaceCount)

	_ = c.manager.store.VisitClusterConfig(func(cfg *types.ClusterConfig) error {
		metrics.ClusterConfigVersion.Set(float64(cfg.Version))
		return nil
	})
}

func (c *MetricsCollector) collectRaftMetrics() {
	if c.manager.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}

	stats := c.manager.GetRaftStats()
	if stats == nil {
		return
	}
	if lastIndex, ok := stats["last_log_index"].(uint64); ok {
		metrics.RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"].(uint64); ok {
		metrics.RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if peers, ok := stats["peers"].(uint64); ok {
		metrics.RaftPeers.Set(float64(peers))
	}
}
