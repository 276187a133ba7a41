package catalog

import (
	"time"

	"github.com/cuemby/catalogd/pkg/metrics"
	"github.com/cuemby/catalogd/pkg/types"
)

// ProcessTabletReport implements the Report Reconciler: a
// tablet server's heartbeat is folded into the ER, one TabletReportEntry
// at a time, and a list of corrective instructions is handed back.
func (s *Service) ProcessTabletReport(report types.TabletReport) ([]types.ReportedInstruction, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	var instructions []types.ReportedInstruction
	var toUpdate []*types.Tablet
	deletingTables := map[string]bool{}

	for _, entry := range report.Tablets {
		s.reg.mu.RLock()
		e, ok := s.reg.tabletsByID[entry.TabletID]
		s.reg.mu.RUnlock()

		if !ok {
			instructions = append(instructions, types.ReportedInstruction{TabletID: entry.TabletID, Delete: true})
			continue
		}

		rg := e.LockForRead()
		tablet := rg.Value()
		rg.Release()

		table := s.tableOrNil(tablet.TableID)
		if table != nil && table.State == types.TableStateDeleting {
			if entry.State == types.TabletStateDeleted {
				deleted := tablet
				deleted.State = types.TabletStateDeleted
				deleted.LastUpdateTime = time.Now()
				toUpdate = append(toUpdate, &deleted)
				deletingTables[table.ID] = true
				continue
			}
			instructions = append(instructions, types.ReportedInstruction{TabletID: entry.TabletID, Delete: true})
			continue
		}

		if entry.ReportedSchemaVersion != nil && table != nil && *entry.ReportedSchemaVersion < table.SchemaVersion {
			instructions = append(instructions, types.ReportedInstruction{TabletID: entry.TabletID, AlterSchemaTo: table.SchemaVersion})
		}

		updated, instr := reconcileConsensus(report.ServerID, tablet, entry)
		if instr != nil {
			instructions = append(instructions, *instr)
		}
		if updated != nil {
			toUpdate = append(toUpdate, updated)
		}
	}

	if len(toUpdate) > 0 {
		if err := s.apply(opUpdateTablets, &UpdateTabletsPayload{Tablets: toUpdate}); err != nil {
			return nil, err
		}
	}
	for tableID := range deletingTables {
		if err := s.maybeCompleteTableDeletion(tableID); err != nil {
			return nil, err
		}
	}
	return instructions, nil
}

func (s *Service) tableOrNil(tableID string) *types.Table {
	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return nil
	}
	rg := e.LockForRead()
	defer rg.Release()
	v := rg.Value()
	return &v
}

// reconcileConsensus applies one reported tablet's consensus state
// against the committed copy:
//   - no committed consensus reported: idempotent presence check only.
//   - reported opid_index/term higher: the reported consensus state wins,
//     replica_locations are rebuilt from its peer list, and peers present
//     in the old committed set but absent from the new one are tombstoned.
//   - reported opid_index equal: presence is recorded without replacing
//     cstate.
//   - reported opid_index lower (stale) and the reporting server is no
//     longer a peer of the committed set: the reporting replica is
//     tombstoned outright.
//   - a CREATING tablet whose reporter claims RUNNING transitions the
//     tablet to RUNNING.
func reconcileConsensus(serverID string, tablet types.Tablet, entry types.TabletReportEntry) (*types.Tablet, *types.ReportedInstruction) {
	if tablet.ReplicaLocations == nil {
		tablet.ReplicaLocations = map[string]types.ReplicaLocation{}
	}

	if entry.CommittedConsensus == nil {
		tablet.ReplicaLocations[serverID] = types.ReplicaLocation{ServerID: serverID, ReportedState: entry.State}
		return promoteIfRunning(&tablet, entry), nil
	}

	reported := *entry.CommittedConsensus
	current := tablet.CommittedConsensusState

	switch {
	case reported.OpIDIndex > current.OpIDIndex || (reported.OpIDIndex == current.OpIDIndex && reported.Term > current.Term):
		oldPeers := make(map[string]bool, len(current.Peers))
		for _, p := range current.Peers {
			oldPeers[p.ServerID] = true
		}
		newPeers := make(map[string]bool, len(reported.Peers))

		tablet.CommittedConsensusState = reported
		tablet.ReplicaLocations = map[string]types.ReplicaLocation{}
		for _, p := range reported.Peers {
			newPeers[p.ServerID] = true
			tablet.ReplicaLocations[p.ServerID] = types.ReplicaLocation{Role: p.Role, ServerID: p.ServerID, ReportedState: entry.State}
		}
		tablet.LastUpdateTime = time.Now()

		for id := range oldPeers {
			if !newPeers[id] {
				return promoteIfRunning(&tablet, entry), &types.ReportedInstruction{TabletID: tablet.ID, Tombstone: true, CASOpIDIndex: current.OpIDIndex}
			}
		}
		return promoteIfRunning(&tablet, entry), nil

	case reported.OpIDIndex == current.OpIDIndex:
		tablet.ReplicaLocations[serverID] = types.ReplicaLocation{ServerID: serverID, ReportedState: entry.State}
		return promoteIfRunning(&tablet, entry), nil

	default:
		isPeer := false
		for _, p := range current.Peers {
			if p.ServerID == serverID {
				isPeer = true
				break
			}
		}
		if !isPeer {
			return nil, &types.ReportedInstruction{TabletID: tablet.ID, Tombstone: true, CASOpIDIndex: current.OpIDIndex}
		}
		tablet.ReplicaLocations[serverID] = types.ReplicaLocation{ServerID: serverID, ReportedState: entry.State}
		return promoteIfRunning(&tablet, entry), nil
	}
}

func promoteIfRunning(tablet *types.Tablet, entry types.TabletReportEntry) *types.Tablet {
	if tablet.State == types.TabletStateCreating && entry.State == types.TabletStateRunning {
		tablet.State = types.TabletStateRunning
		tablet.LastUpdateTime = time.Now()
	}
	return tablet
}
