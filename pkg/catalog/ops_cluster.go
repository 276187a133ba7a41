package catalog

import (
	"math"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/types"
)

// GetClusterConfig implements the Cluster GetConfig wire request.
func (s *Service) GetClusterConfig() (*types.ClusterConfig, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e := s.reg.clusterConfig
	s.reg.mu.RUnlock()
	if e == nil {
		return nil, catalogerr.New(catalogerr.KindNotFound, "cluster config not yet initialized")
	}
	rg := e.LockForRead()
	defer rg.Release()
	v := rg.Value()
	return &v, nil
}

// SetClusterConfig implements the Cluster SetConfig wire request. The
// caller must supply the version it last observed; a mismatch is
// reported as CONFIG_VERSION_MISMATCH, matching the CAS
// discipline. clusterUUID is immutable once set: an empty string leaves
// it untouched, but a non-empty value that disagrees with the current
// one is rejected rather than silently applied.
func (s *Service) SetClusterConfig(expectedVersion uint32, clusterUUID string, repl *types.ReplicationInfo, blacklist *types.ServerBlacklist) (*types.ClusterConfig, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e := s.reg.clusterConfig
	live := s.liveServersLocked()
	s.reg.mu.RUnlock()
	if e == nil {
		return nil, catalogerr.New(catalogerr.KindNotFound, "cluster config not yet initialized")
	}

	rg := e.LockForRead()
	current := rg.Value()
	rg.Release()

	if current.Version != expectedVersion {
		return nil, catalogerr.New(catalogerr.KindConfigVersionMismatch, "expected version %d, current is %d", expectedVersion, current.Version)
	}
	if clusterUUID != "" && current.ClusterUUID != "" && clusterUUID != current.ClusterUUID {
		return nil, catalogerr.New(catalogerr.KindInvalidClusterConfig, "cluster_uuid is immutable: current %q, requested %q", current.ClusterUUID, clusterUUID)
	}

	next := current
	next.Version = current.Version + 1
	if clusterUUID != "" {
		next.ClusterUUID = clusterUUID
	}
	if repl != nil {
		next.ReplicationInfo = *repl
	}
	if blacklist != nil {
		next.ServerBlacklist = *blacklist
		next.ServerBlacklist.InitialReplicaLoad = countReplicasOnServers(live, blacklist.Servers)
	}

	if err := s.apply(opSetClusterConfig, &SetClusterConfigPayload{Config: &next}); err != nil {
		return nil, err
	}
	return &next, nil
}

// IsLoadBalanced implements the Cluster IsLoadBalanced wire request:
// samples per-server live-replica counts and reports TRY_AGAIN while
// their population standard deviation is at or above 2.0.
func (s *Service) IsLoadBalanced() (bool, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return false, err
	}
	defer adm.Release()

	live := s.liveServersLocked()
	if len(live) == 0 {
		return true, nil
	}
	stddev := replicaCountStdDev(live)
	if stddev >= 2.0 {
		return false, catalogerr.New(catalogerr.KindTryAgain, "replica distribution stddev %.2f exceeds threshold", stddev)
	}
	return true, nil
}

// GetLoadMovePercent implements the Cluster GetLoadMovePercent wire
// request: the fraction of the blacklist's initial replica load that has
// since moved off the blacklisted servers, clamped to [0,1]. Returns 1.0
// when no blacklist is active or the initial load was zero, since there
// is nothing left to move.
func (s *Service) GetLoadMovePercent() (float64, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return 0, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e := s.reg.clusterConfig
	live := s.liveServersLocked()
	s.reg.mu.RUnlock()
	if e == nil {
		return 1.0, nil
	}
	rg := e.LockForRead()
	blacklist := rg.Value().ServerBlacklist
	rg.Release()

	if blacklist.InitialReplicaLoad == 0 || len(blacklist.Servers) == 0 {
		return 1.0, nil
	}

	remaining := countReplicasOnServers(live, blacklist.Servers)
	percent := 1.0 - float64(remaining)/float64(blacklist.InitialReplicaLoad)
	if math.IsNaN(percent) {
		return 1.0, nil
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}
	return percent, nil
}

func countReplicasOnServers(live []types.TSDescriptor, blacklisted []string) int {
	set := make(map[string]bool, len(blacklisted))
	for _, s := range blacklisted {
		set[s] = true
	}
	total := 0
	for _, d := range live {
		if set[d.ServerID] {
			total += d.NumLiveReplicas
		}
	}
	return total
}

func replicaCountStdDev(live []types.TSDescriptor) float64 {
	n := float64(len(live))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, d := range live {
		sum += float64(d.NumLiveReplicas)
	}
	mean := sum / n
	var variance float64
	for _, d := range live {
		diff := float64(d.NumLiveReplicas) - mean
		variance += diff * diff
	}
	variance /= n
	return math.Sqrt(variance)
}

func (s *Service) applySetClusterConfig(p *SetClusterConfigPayload) error {
	if err := s.store.PutClusterConfig(p.Config); err != nil {
		return err
	}
	s.reg.mu.Lock()
	if s.reg.clusterConfig == nil {
		s.reg.clusterConfig = cowe.New(*p.Config)
	} else {
		wg := s.reg.clusterConfig.LockForWrite()
		*wg.Draft() = *p.Config
		wg.Commit()
	}
	s.reg.mu.Unlock()
	return nil
}
