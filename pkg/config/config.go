// Package config holds the catalog manager's tunables and
// loads them from a YAML file, falling back to documented defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the catalog manager's runtime configuration.
type Config struct {
	NodeID     string `yaml:"node_id"`
	BindAddr   string `yaml:"bind_addr"`
	APIAddr    string `yaml:"api_addr"`
	HealthAddr string `yaml:"health_addr"`
	DataDir    string `yaml:"data_dir"`

	MasterTSRPCTimeoutMS                       int64  `yaml:"master_ts_rpc_timeout_ms"`
	TabletCreationTimeoutMS                    int64  `yaml:"tablet_creation_timeout_ms"`
	CatalogManagerWaitForNewTabletsToElectLeader bool `yaml:"catalog_manager_wait_for_new_tablets_to_elect_leader"`
	ReplicationFactor                          int    `yaml:"replication_factor"`
	CatalogManagerBGTaskWaitMS                 int64  `yaml:"catalog_manager_bg_task_wait_ms"`
	MaxCreateTabletsPerTS                      int    `yaml:"max_create_tablets_per_ts"`
	MasterFailoverCatchupTimeoutMS             int64  `yaml:"master_failover_catchup_timeout_ms"`
	MasterTombstoneEvictedTabletReplicas       bool   `yaml:"master_tombstone_evicted_tablet_replicas"`
	CatalogManagerCheckTSCountForCreateTable   bool   `yaml:"catalog_manager_check_ts_count_for_create_table"`
	ClusterUUID                                string `yaml:"cluster_uuid"`
}

// Default returns the configuration with every flag at its documented
// default.
func Default() *Config {
	return &Config{
		BindAddr:   "127.0.0.1:7400",
		APIAddr:    "127.0.0.1:7500",
		HealthAddr: "127.0.0.1:7501",
		DataDir:    "./data",

		MasterTSRPCTimeoutMS:    30_000,
		TabletCreationTimeoutMS: 30_000,
		CatalogManagerWaitForNewTabletsToElectLeader: true,
		ReplicationFactor:       3,
		CatalogManagerBGTaskWaitMS: 1_000,
		MaxCreateTabletsPerTS:      20,
		MasterFailoverCatchupTimeoutMS: 30_000,
		MasterTombstoneEvictedTabletReplicas: true,
		CatalogManagerCheckTSCountForCreateTable: true,
		ClusterUUID: "",
	}
}

// Load reads a YAML config file and overlays it on Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// RPCTimeout is MasterTSRPCTimeoutMS as a time.Duration.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.MasterTSRPCTimeoutMS) * time.Millisecond
}

// TabletCreationTimeout is TabletCreationTimeoutMS as a time.Duration.
func (c *Config) TabletCreationTimeout() time.Duration {
	return time.Duration(c.TabletCreationTimeoutMS) * time.Millisecond
}

// BGTaskWait is CatalogManagerBGTaskWaitMS as a time.Duration.
func (c *Config) BGTaskWait() time.Duration {
	return time.Duration(c.CatalogManagerBGTaskWaitMS) * time.Millisecond
}

// FailoverCatchupTimeout is MasterFailoverCatchupTimeoutMS as a time.Duration.
func (c *Config) FailoverCatchupTimeout() time.Duration {
	return time.Duration(c.MasterFailoverCatchupTimeoutMS) * time.Millisecond
}
