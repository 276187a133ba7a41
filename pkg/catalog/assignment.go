package catalog

import (
	"math/rand"
	"time"

	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/metrics"
	"github.com/cuemby/catalogd/pkg/types"
)

// Tick runs one Assignment Engine pass: every PREPARING
// tablet gets a replica set chosen by power-of-two-choices (placement-
// block aware), recorded as its committed consensus peers, and moves to
// CREATING; no create-replica RPC is sent from here. Every CREATING tablet past TabletCreationTimeout is REPLACED
// by a fresh PREPARING sibling covering the same partition. It is a
// no-op when this node cannot pass admission (not leader, or still
// loading).
func (s *Service) Tick() error {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil
	}
	defer adm.Release()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AssignmentTickDuration)

	s.reg.mu.RLock()
	entities := make([]*cowe.Entity[types.Tablet], 0, len(s.reg.tabletsByID))
	for _, e := range s.reg.tabletsByID {
		entities = append(entities, e)
	}
	live := s.liveServersLocked()
	s.reg.mu.RUnlock()

	now := time.Now()
	var toUpdate []*types.Tablet
	var toCreate []*types.Tablet
	deletingTables := map[string]bool{}

	for _, e := range entities {
		rg := e.LockForRead()
		v := rg.Value()
		rg.Release()

		table := s.tableOrNil(v.TableID)
		if table != nil && table.State == types.TableStateDeleting && v.State == types.TabletStatePreparing {
			// Never assigned to a server, so there is nothing for a
			// tablet server to confirm: it can be marked DELETED directly.
			deleted := v
			deleted.State = types.TabletStateDeleted
			deleted.LastUpdateTime = now
			toUpdate = append(toUpdate, &deleted)
			deletingTables[table.ID] = true
			continue
		}

		switch v.State {
		case types.TabletStatePreparing:
			tableRepl := s.tableReplicationInfo(v.TableID)
			peers := choosePlacement(live, tableRepl)
			if len(peers) == 0 {
				continue
			}
			v.CommittedConsensusState = types.ConsensusState{Peers: peers}
			v.State = types.TabletStateCreating
			v.LastUpdateTime = now
			toUpdate = append(toUpdate, &v)

		case types.TabletStateCreating:
			if table != nil && table.State == types.TableStateDeleting {
				// Already handed to a server; the reconciler's delete
				// instruction and confirmed-deletion path retire it.
				continue
			}
			if now.Sub(v.LastUpdateTime) < s.cfg.TabletCreationTimeout() {
				continue
			}
			replaced := v
			replaced.State = types.TabletStateReplaced
			replaced.LastUpdateTime = now
			toUpdate = append(toUpdate, &replaced)

			sibling := &types.Tablet{
				ID:             newID(s.tabletIDTaken),
				TableID:        v.TableID,
				Partition:      v.Partition,
				State:          types.TabletStatePreparing,
				LastUpdateTime: now,
			}
			toCreate = append(toCreate, sibling)
			metrics.TabletsReplacedTotal.Inc()
		}
	}

	if len(toCreate) > 0 {
		toUpdate = append(toUpdate, toCreate...)
	}
	if len(toUpdate) > 0 {
		if err := s.apply(opUpdateTablets, &UpdateTabletsPayload{Tablets: toUpdate}); err != nil {
			return err
		}
	}
	for tableID := range deletingTables {
		if err := s.maybeCompleteTableDeletion(tableID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) tableReplicationInfo(tableID string) types.ReplicationInfo {
	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return types.ReplicationInfo{NumReplicas: s.cfg.ReplicationFactor}
	}
	rg := e.LockForRead()
	defer rg.Release()
	return rg.Value().ReplicationInfo
}

// choosePlacement selects repl.NumReplicas servers using power-of-two-
// choices weighted by recent creation load plus current replica count,
// honoring each placement block's minimum before filling the remainder
// freely.
func choosePlacement(live []types.TSDescriptor, repl types.ReplicationInfo) []types.ConsensusPeer {
	if len(live) == 0 || repl.NumReplicas == 0 {
		return nil
	}

	chosen := make(map[string]bool, repl.NumReplicas)
	var peers []types.ConsensusPeer

	pick := func(candidates []types.TSDescriptor) *types.TSDescriptor {
		var pool []types.TSDescriptor
		for _, d := range candidates {
			if !chosen[d.ServerID] {
				pool = append(pool, d)
			}
		}
		if len(pool) == 0 {
			return nil
		}
		if len(pool) == 1 {
			return &pool[0]
		}
		ai := rand.Intn(len(pool))
		bi := rand.Intn(len(pool) - 1)
		if bi >= ai {
			bi++
		}
		a, b := pool[ai], pool[bi]
		aLoad := a.RecentReplicaCreations + a.NumLiveReplicas
		bLoad := b.RecentReplicaCreations + b.NumLiveReplicas
		if aLoad <= bLoad {
			return &a
		}
		return &b
	}

	for _, block := range repl.PlacementBlocks {
		var inBlock []types.TSDescriptor
		for _, d := range live {
			if d.MatchesBlock(block) {
				inBlock = append(inBlock, d)
			}
		}
		for i := 0; i < block.MinNumReplicas && len(chosen) < repl.NumReplicas; i++ {
			d := pick(inBlock)
			if d == nil {
				break
			}
			chosen[d.ServerID] = true
			role := types.PeerRoleFollower
			if len(peers) == 0 {
				role = types.PeerRoleLeader
			}
			peers = append(peers, types.ConsensusPeer{ServerID: d.ServerID, Role: role, LastKnownAddr: d.Address})
		}
	}

	for len(chosen) < repl.NumReplicas {
		d := pick(live)
		if d == nil {
			break
		}
		chosen[d.ServerID] = true
		role := types.PeerRoleFollower
		if len(peers) == 0 {
			role = types.PeerRoleLeader
		}
		peers = append(peers, types.ConsensusPeer{ServerID: d.ServerID, Role: role, LastKnownAddr: d.Address})
	}

	return peers
}
