// Package manager wires the catalog Service to a raft-replicated log: it
// owns the hashicorp/raft instance, the BoltDB-backed log/stable/snapshot
// stores, and the leadership-change plumbing that drives the catalog
// Service's Loader on every election.
package manager

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/catalogd/pkg/catalog"
	"github.com/cuemby/catalogd/pkg/config"
	"github.com/cuemby/catalogd/pkg/log"
	"github.com/cuemby/catalogd/pkg/metrics"
	"github.com/cuemby/catalogd/pkg/storage"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Manager owns one node's raft participation and its bound catalog
// Service. Exactly one Manager exists per process.
type Manager struct {
	cfg   *config.Config
	raft  *raft.Raft
	fsm   *CatalogFSM
	store storage.Store
	svc   *catalog.Service

	tokenManager *JoinTokenManager

	notifyCh  chan bool
	stopNotify chan struct{}
}

// New constructs a Manager. tsDescriptors snapshots the live tablet
// server fleet for the catalog Service's placement and load-balance
// decisions; it may be nil until the fleet manager is wired up.
func New(cfg *config.Config, tsDescriptors catalog.TSDescriptorsFunc) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	m := &Manager{
		cfg:          cfg,
		store:        store,
		tokenManager: NewJoinTokenManager(),
		notifyCh:     make(chan bool, 1),
		stopNotify:   make(chan struct{}),
	}

	svc := catalog.New(cfg, store, m.IsLeader, m.Apply, tsDescriptors)
	fsm := NewCatalogFSM(svc, store)

	m.svc = svc
	m.fsm = fsm
	return m, nil
}

// Service returns the bound catalog Service, for the API transport layer
// to call CO handlers against.
func (m *Manager) Service() *catalog.Service { return m.svc }

func (m *Manager) raftConfig() *raft.Config {
	rc := raft.DefaultConfig()
	rc.LocalID = raft.ServerID(m.cfg.NodeID)
	rc.NotifyCh = m.notifyCh
	return rc
}

func (m *Manager) openRaft() (*raft.Raft, *raft.TCPTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", m.cfg.BindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(m.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(m.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stable store: %w", err)
	}
	r, err := raft.NewRaft(m.raftConfig(), m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a new single-node raft cluster on this node.
func (m *Manager) Bootstrap() error {
	r, transport, err := m.openRaft()
	if err != nil {
		return err
	}
	m.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(m.cfg.NodeID), Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to bootstrap cluster: %w", err)
	}

	m.svc.Start()
	go m.watchLeadership()
	return nil
}

// Join starts raft on this node so it can be added to an existing
// cluster by the leader's AddVoter call; the join token is redeemed by
// the leader's POST /v1/join handler in pkg/api, not here.
func (m *Manager) Join() error {
	r, _, err := m.openRaft()
	if err != nil {
		return err
	}
	m.raft = r
	m.svc.Start()
	go m.watchLeadership()
	return nil
}

// watchLeadership drives the catalog Service's Loader from raft's
// leadership notifications (raft.Config.NotifyCh): true means this node
// just became leader, false means it just stopped being one.
func (m *Manager) watchLeadership() {
	logger := log.WithComponent("manager")
	for {
		select {
		case isLeader := <-m.notifyCh:
			term := m.currentTerm()
			if isLeader {
				logger.Info().Uint64("term", term).Msg("acquired raft leadership")
				if err := m.svc.OnLeaderElected(term); err != nil {
					logger.Error().Err(err).Msg("loader failed after leadership acquired")
				}
			} else {
				logger.Info().Uint64("term", term).Msg("lost or never acquired raft leadership")
				m.svc.OnLeaderLost(term)
			}
		case <-m.stopNotify:
			return
		}
	}
}

func (m *Manager) currentTerm() uint64 {
	if m.raft == nil {
		return 0
	}
	stats := m.raft.Stats()
	term, _ := parseUint64(stats["term"])
	return term
}

func parseUint64(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// AddVoter adds a new node to the raft cluster. Must be called on the
// leader.
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}
	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to add voter: %w", err)
	}
	return nil
}

// RemoveServer removes a node from the raft cluster. Must be called on
// the leader.
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to remove server: %w", err)
	}
	return nil
}

// GetClusterServers returns the current raft cluster membership.
func (m *Manager) GetClusterServers() ([]raft.Server, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}
	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return future.Configuration().Servers, nil
}

// IsLeader reports whether this node currently holds raft leadership.
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the current raft leader's address, if known.
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// GetRaftStats exposes raw raft statistics, also consumed by the
// Prometheus metrics collector.
func (m *Manager) GetRaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}
	stats := map[string]interface{}{
		"state":         m.raft.State().String(),
		"last_log_index": m.raft.LastIndex(),
		"applied_index":  m.raft.AppliedIndex(),
		"leader":         string(m.raft.Leader()),
	}
	if configFuture := m.raft.GetConfiguration(); configFuture.Error() == nil {
		stats["peers"] = uint64(len(configFuture.Configuration().Servers))
	} else {
		stats["peers"] = uint64(0)
	}
	return stats
}

// Apply implements catalog.Applier: it marshals op+payload into a
// Command and submits it through raft, returning once a quorum has
// committed it and the local FSM has replayed it.
func (m *Manager) Apply(op string, payload any) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal command payload: %w", err)
	}
	cmdBytes, err := json.Marshal(Command{Op: op, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	future := m.raft.Apply(cmdBytes, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// GenerateJoinToken issues a join token bound to nodeID. Only the leader
// may generate tokens, and only nodeID may later redeem the token via
// ValidateJoinToken.
func (m *Manager) GenerateJoinToken(nodeID string) (*JoinToken, error) {
	if !m.IsLeader() {
		return nil, fmt.Errorf("not the leader, tokens can only be generated by the leader")
	}
	return m.tokenManager.Issue(nodeID, 24*time.Hour)
}

// ValidateJoinToken redeems a join token presented by nodeID attempting
// to join the cluster. Redemption is single-use: a replayed join request
// with the same token fails.
func (m *Manager) ValidateJoinToken(token, nodeID string) error {
	return m.tokenManager.Redeem(token, nodeID)
}

// NodeID returns this node's raft server id.
func (m *Manager) NodeID() string { return m.cfg.NodeID }

// Shutdown gracefully stops the catalog Service and raft.
func (m *Manager) Shutdown() error {
	m.svc.Shutdown()
	close(m.stopNotify)

	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %w", err)
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}
	return nil
}
