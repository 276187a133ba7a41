package catalog

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/types"
)

// CreateTableRequest is the argument envelope for CreateTable.
type CreateTableRequest struct {
	Name            string
	NamespaceID     string
	Schema          types.Schema
	TableType       types.TableType
	NumTablets      int
	SplitRows       [][]byte
	ReplicationInfo types.ReplicationInfo
}

// CreateTable implements the Table Create wire request.
func (s *Service) CreateTable(req CreateTableRequest) (*types.Table, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	if err := validateSchema(req.Schema); err != nil {
		return nil, err
	}

	s.reg.mu.RLock()
	_, hasNS := s.reg.namespacesByID[req.NamespaceID]
	_, dup := s.reg.tablesByNamespace[tableKey(req.NamespaceID, req.Name)]
	live := s.liveServersLocked()
	s.reg.mu.RUnlock()

	if !hasNS {
		return nil, catalogerr.New(catalogerr.KindNotFound, "namespace %s not found", req.NamespaceID).WithCode("NAMESPACE_NOT_FOUND")
	}
	if dup {
		return nil, catalogerr.New(catalogerr.KindAlreadyPresent, "table %q already exists in namespace %s", req.Name, req.NamespaceID)
	}

	repl := req.ReplicationInfo
	if repl.NumReplicas == 0 {
		repl.NumReplicas = s.cfg.ReplicationFactor
	}
	if err := validatePlacementPreflight(repl, len(live), req.NumTablets, s.cfg.MaxCreateTabletsPerTS, s.cfg.CatalogManagerCheckTSCountForCreateTable); err != nil {
		return nil, err
	}

	partition, err := buildPartitionSchema(req.TableType, req.Schema, req.NumTablets, req.SplitRows)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	table := &types.Table{
		ID:              newID(s.tableIDTaken),
		Name:            req.Name,
		NamespaceID:     req.NamespaceID,
		Schema:          req.Schema,
		SchemaVersion:   1,
		NextColumnID:    nextColumnID(req.Schema),
		PartitionSchema: partition,
		ReplicationInfo: repl,
		TableType:       req.TableType,
		State:           types.TableStateRunning,
		CreateTime:      now,
		UpdateTime:      now,
	}

	ranges := partitionRanges(partition)
	tablets := make([]*types.Tablet, 0, len(ranges))
	for _, rng := range ranges {
		tablets = append(tablets, &types.Tablet{
			ID:             newID(s.tabletIDTaken),
			TableID:        table.ID,
			Partition:      rng,
			State:          types.TabletStatePreparing,
			LastUpdateTime: now,
		})
	}

	if err := s.apply(opCreateTable, &CreateTablePayload{Table: table, Tablets: tablets}); err != nil {
		return nil, err
	}
	return table, nil
}

// AlterStepKind is one kind of AlterTable step.
type AlterStepKind string

const (
	StepAddColumn     AlterStepKind = "ADD_COLUMN"
	StepDropColumn    AlterStepKind = "DROP_COLUMN"
	StepRenameColumn  AlterStepKind = "RENAME_COLUMN"
	StepAlterProperties AlterStepKind = "ALTER_PROPERTIES"
)

// AlterStep is one element of an AlterTable ordered step list.
type AlterStep struct {
	Kind AlterStepKind

	// ADD_COLUMN
	NewColumn *types.Column

	// DROP_COLUMN / RENAME_COLUMN
	ColumnName    string
	NewColumnName string

	// ALTER_PROPERTIES
	ReplicationInfo *types.ReplicationInfo
}

// AlterTable implements the Table Alter wire request.
func (s *Service) AlterTable(tableID string, steps []AlterStep) (*types.Table, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return nil, catalogerr.New(catalogerr.KindNotFound, "table %s not found", tableID)
	}

	wg := e.LockForWrite()
	draft := wg.Draft()
	prevSchema := draft.Schema
	draft.Schema.Columns = append([]types.Column(nil), draft.Schema.Columns...)
	renamed := false

	for _, step := range steps {
		switch step.Kind {
		case StepAddColumn:
			if step.NewColumn == nil {
				wg.Abort()
				return nil, catalogerr.New(catalogerr.KindInvalidArgument, "ADD_COLUMN requires a column")
			}
			if step.NewColumn.ID != 0 {
				wg.Abort()
				return nil, catalogerr.New(catalogerr.KindInvalidArgument, "ADD_COLUMN must not specify a column id")
			}
			if !step.NewColumn.Nullable && step.NewColumn.ReadDefault == nil {
				wg.Abort()
				return nil, catalogerr.New(catalogerr.KindInvalidSchema, "ADD_COLUMN of non-nullable column %q requires a read-default", step.NewColumn.Name)
			}
			col := *step.NewColumn
			col.ID = draft.NextColumnID
			draft.NextColumnID++
			draft.Schema.Columns = append(draft.Schema.Columns, col)

		case StepDropColumn:
			idx := -1
			for i, c := range draft.Schema.Columns {
				if c.Name == step.ColumnName {
					idx = i
					break
				}
			}
			if idx == -1 {
				wg.Abort()
				return nil, catalogerr.New(catalogerr.KindNotFound, "column %q not found", step.ColumnName)
			}
			if draft.Schema.Columns[idx].IsKey {
				wg.Abort()
				return nil, catalogerr.New(catalogerr.KindInvalidSchema, "cannot drop key column %q", step.ColumnName)
			}
			draft.Schema.Columns = append(draft.Schema.Columns[:idx], draft.Schema.Columns[idx+1:]...)

		case StepRenameColumn:
			found := false
			for i, c := range draft.Schema.Columns {
				if c.Name == step.ColumnName {
					draft.Schema.Columns[i].Name = step.NewColumnName
					found = true
					break
				}
			}
			if !found {
				wg.Abort()
				return nil, catalogerr.New(catalogerr.KindNotFound, "column %q not found", step.ColumnName)
			}
			renamed = true

		case StepAlterProperties:
			if step.ReplicationInfo != nil {
				draft.ReplicationInfo = *step.ReplicationInfo
			}

		default:
			wg.Abort()
			return nil, catalogerr.New(catalogerr.KindInvalidArgument, "unknown alter step %q", step.Kind)
		}
	}

	draft.SchemaVersion++
	snapshot := prevSchema
	draft.FullyAppliedSchema = &snapshot
	draft.State = types.TableStateAltering
	draft.UpdateTime = time.Now()
	result := *draft

	wg.Abort() // the persisted change happens via apply/commit below, not this in-process draft
	_ = renamed

	if err := s.apply(opUpdateTable, &UpdateTablePayload{Table: &result}); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteTable implements the Table Delete wire request: marks the Table
// DELETING. The by-name index keeps refusing a same-name CreateTable
// until the Assignment Engine and Report Reconciler have driven every
// tablet to confirmed deletion and cascaded the Table to DELETED.
func (s *Service) DeleteTable(tableID string) error {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return catalogerr.New(catalogerr.KindNotFound, "table %s not found", tableID)
	}
	rg := e.LockForRead()
	table := rg.Value()
	rg.Release()

	table.State = types.TableStateDeleting
	table.UpdateTime = time.Now()

	return s.apply(opUpdateTable, &UpdateTablePayload{Table: &table})
}

// GetTableSchema implements the Table GetSchema wire request: returns
// fully_applied_schema while ALTERING, else the live schema.
func (s *Service) GetTableSchema(tableID string) (*types.Schema, uint32, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, 0, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return nil, 0, catalogerr.New(catalogerr.KindNotFound, "table %s not found", tableID)
	}
	rg := e.LockForRead()
	defer rg.Release()
	v := rg.Value()
	if v.State == types.TableStateAltering && v.FullyAppliedSchema != nil {
		schema := *v.FullyAppliedSchema
		return &schema, v.SchemaVersion - 1, nil
	}
	schema := v.Schema
	return &schema, v.SchemaVersion, nil
}

// ListTables implements the Table ListTables wire request: optional name
// substring filter and optional namespace filter.
func (s *Service) ListTables(namespaceID, nameSubstring string) ([]types.Table, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()

	var out []types.Table
	for _, e := range s.reg.tablesByID {
		rg := e.LockForRead()
		v := rg.Value()
		rg.Release()
		if v.State == types.TableStateDeleted || v.State == types.TableStateDeleting {
			continue
		}
		if namespaceID != "" && v.NamespaceID != namespaceID {
			continue
		}
		if nameSubstring != "" && !bytes.Contains([]byte(v.Name), []byte(nameSubstring)) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// GetTableLocations implements the Table GetTableLocations wire request.
func (s *Service) GetTableLocations(tableID string, startKey, endKey []byte, maxReturned int) ([]types.Tablet, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	if len(endKey) > 0 && bytes.Compare(startKey, endKey) > 0 {
		return nil, catalogerr.New(catalogerr.KindInvalidArgument, "partition_key_start > partition_key_end")
	}

	s.reg.mu.RLock()
	ids := append([]string(nil), s.reg.tabletIDsByTable[tableID]...)
	entities := make([]*cowe.Entity[types.Tablet], 0, len(ids))
	for _, id := range ids {
		entities = append(entities, s.reg.tabletsByID[id])
	}
	s.reg.mu.RUnlock()

	type located struct {
		tablet    types.Tablet
		startKey  []byte
	}
	var matches []located
	for _, e := range entities {
		if e == nil {
			continue
		}
		rg := e.LockForRead()
		v := rg.Value()
		rg.Release()
		if v.State == types.TabletStateDeleted || v.State == types.TabletStateReplaced {
			continue
		}
		if len(endKey) > 0 && bytes.Compare(v.Partition.StartKey, endKey) >= 0 {
			continue
		}
		if len(v.Partition.EndKey) > 0 && bytes.Compare(v.Partition.EndKey, startKey) <= 0 {
			continue
		}
		if len(v.ReplicaLocations) == 0 && len(v.CommittedConsensusState.Peers) > 0 {
			v.ReplicaLocations = make(map[string]types.ReplicaLocation, len(v.CommittedConsensusState.Peers))
			for _, peer := range v.CommittedConsensusState.Peers {
				v.ReplicaLocations[peer.ServerID] = types.ReplicaLocation{Role: peer.Role, ServerID: peer.ServerID, ReportedState: v.State}
			}
		}
		matches = append(matches, located{tablet: v, startKey: v.Partition.StartKey})
	}

	sort.Slice(matches, func(i, j int) bool { return bytes.Compare(matches[i].startKey, matches[j].startKey) < 0 })

	if maxReturned > 0 && len(matches) > maxReturned {
		matches = matches[:maxReturned]
	}
	out := make([]types.Tablet, len(matches))
	for i, m := range matches {
		out[i] = m.tablet
	}
	return out, nil
}

// IsCreateTableDone is done once the Table is not PREPARING and every
// initial Tablet is not PREPARING.
func (s *Service) IsCreateTableDone(tableID string) (bool, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return false, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	ids := append([]string(nil), s.reg.tabletIDsByTable[tableID]...)
	s.reg.mu.RUnlock()
	if !ok {
		return false, catalogerr.New(catalogerr.KindNotFound, "table %s not found", tableID)
	}
	rg := e.LockForRead()
	tableState := rg.Value().State
	rg.Release()
	if tableState == types.TableStatePreparing {
		return false, nil
	}

	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	for _, id := range ids {
		te, ok := s.reg.tabletsByID[id]
		if !ok {
			continue
		}
		rg := te.LockForRead()
		state := rg.Value().State
		rg.Release()
		if state == types.TabletStatePreparing {
			return false, nil
		}
	}
	return true, nil
}

// IsAlterTableDone is done once state != ALTERING.
func (s *Service) IsAlterTableDone(tableID string) (bool, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return false, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return false, catalogerr.New(catalogerr.KindNotFound, "table %s not found", tableID)
	}
	rg := e.LockForRead()
	defer rg.Release()
	return rg.Value().State != types.TableStateAltering, nil
}

// IsDeleteTableDone is done once state == DELETED.
func (s *Service) IsDeleteTableDone(tableID string) (bool, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return false, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	s.reg.mu.RUnlock()
	if !ok {
		return false, catalogerr.New(catalogerr.KindNotFound, "table %s not found", tableID)
	}
	rg := e.LockForRead()
	defer rg.Release()
	return rg.Value().State == types.TableStateDeleted, nil
}

// maybeCompleteTableDeletion cascades a DELETING table to DELETED once
// every tablet that ever belonged to it has confirmed deletion (or was
// dropped before it was ever created anywhere). Called after any update
// that could be the last outstanding tablet for the table.
func (s *Service) maybeCompleteTableDeletion(tableID string) error {
	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[tableID]
	ids := append([]string(nil), s.reg.tabletIDsByTable[tableID]...)
	s.reg.mu.RUnlock()
	if !ok {
		return nil
	}

	rg := e.LockForRead()
	table := rg.Value()
	rg.Release()
	if table.State != types.TableStateDeleting {
		return nil
	}

	s.reg.mu.RLock()
	allDeleted := true
	for _, id := range ids {
		te, ok := s.reg.tabletsByID[id]
		if !ok {
			continue
		}
		rg := te.LockForRead()
		state := rg.Value().State
		rg.Release()
		if state != types.TabletStateDeleted {
			allDeleted = false
			break
		}
	}
	s.reg.mu.RUnlock()
	if !allDeleted {
		return nil
	}

	table.State = types.TableStateDeleted
	table.UpdateTime = time.Now()
	return s.apply(opUpdateTable, &UpdateTablePayload{Table: &table})
}

// --- validation & construction helpers ---

func validateSchema(schema types.Schema) error {
	keyCount := 0
	seenNames := map[string]bool{}
	for _, c := range schema.Columns {
		if c.ID != 0 {
			return catalogerr.New(catalogerr.KindInvalidArgument, "CreateTable must not specify client-supplied column ids")
		}
		if seenNames[c.Name] {
			return catalogerr.New(catalogerr.KindInvalidSchema, "duplicate column name %q", c.Name)
		}
		seenNames[c.Name] = true
		if c.IsKey {
			keyCount++
			if !isComparableType(c.Type) {
				return catalogerr.New(catalogerr.KindInvalidSchema, "key column %q has non-comparable type %q", c.Name, c.Type)
			}
		}
	}
	if keyCount == 0 {
		return catalogerr.New(catalogerr.KindInvalidSchema, "schema must have at least one key column")
	}
	return nil
}

// isComparableType is a conservative allow-list of key-column types; the
// query language's full type system is an excluded collaborator, so
// this only rejects the types that can never total-order.
func isComparableType(t string) bool {
	switch t {
	case "map", "set", "list", "udt":
		return false
	default:
		return true
	}
}

func nextColumnID(schema types.Schema) int32 {
	var maxID int32
	for i := range schema.Columns {
		schema.Columns[i].ID = int32(i) + 1
		if schema.Columns[i].ID > maxID {
			maxID = schema.Columns[i].ID
		}
	}
	return maxID + 1
}

func validatePlacementPreflight(repl types.ReplicationInfo, liveServers, numTablets, maxPerServer int, checkTSCount bool) error {
	sumMin := 0
	for _, b := range repl.PlacementBlocks {
		sumMin += b.MinNumReplicas
	}
	if sumMin > repl.NumReplicas {
		return catalogerr.New(catalogerr.KindInvalidSchema, "sum of placement block minimums (%d) exceeds num_replicas (%d)", sumMin, repl.NumReplicas)
	}
	if checkTSCount {
		if numTablets > maxPerServer*liveServers {
			return catalogerr.New(catalogerr.KindTooManyTablets, "requested %d tablets exceeds capacity (%d servers x %d per server)", numTablets, liveServers, maxPerServer)
		}
		if repl.NumReplicas > 1 && liveServers < repl.NumReplicas {
			return catalogerr.New(catalogerr.KindReplicationFactorTooHigh, "num_replicas %d exceeds live server count %d", repl.NumReplicas, liveServers)
		}
	}
	return nil
}

func buildPartitionSchema(tableType types.TableType, schema types.Schema, numTablets int, splitRows [][]byte) (types.PartitionSchema, error) {
	switch tableType {
	case types.TableTypeRange:
		return types.PartitionSchema{Kind: types.PartitionRangeOnKey, SplitRows: splitRows}, nil
	case types.TableTypeKeyValue:
		return types.PartitionSchema{Kind: types.PartitionFixedSlotHash, HashBuckets: maxInt(numTablets, 1)}, nil
	default:
		var hashIDs []int32
		for _, c := range schema.HashColumns() {
			hashIDs = append(hashIDs, c.ID)
		}
		return types.PartitionSchema{Kind: types.PartitionMultiColumnHash, HashBuckets: maxInt(numTablets, 1), HashColumnIDs: hashIDs}, nil
	}
}

func partitionRanges(p types.PartitionSchema) []types.PartitionKeyRange {
	switch p.Kind {
	case types.PartitionRangeOnKey:
		ranges := make([]types.PartitionKeyRange, 0, len(p.SplitRows)+1)
		var prev []byte
		for _, split := range p.SplitRows {
			ranges = append(ranges, types.PartitionKeyRange{StartKey: prev, EndKey: split})
			prev = split
		}
		ranges = append(ranges, types.PartitionKeyRange{StartKey: prev, EndKey: nil})
		return ranges
	default:
		buckets := p.HashBuckets
		if buckets < 1 {
			buckets = 1
		}
		width := uint32(1<<32-1) / uint32(buckets)
		ranges := make([]types.PartitionKeyRange, 0, buckets)
		var start uint32
		for i := 0; i < buckets; i++ {
			end := start + width
			if i == buckets-1 {
				end = ^uint32(0)
			}
			ranges = append(ranges, types.PartitionKeyRange{HashRange: true, HashStart: start, HashEnd: end})
			start = end
		}
		return ranges
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (s *Service) tableIDTaken(id string) bool {
	_, ok := s.reg.tablesByID[id]
	return ok
}

func (s *Service) tabletIDTaken(id string) bool {
	_, ok := s.reg.tabletsByID[id]
	return ok
}

// liveServersLocked returns the live server descriptors; caller must hold
// s.reg.mu (any mode). It is a thin seam so tests can stub tsDescriptors.
func (s *Service) liveServersLocked() []types.TSDescriptor {
	if s.tsDescriptors == nil {
		return nil
	}
	return s.tsDescriptors()
}

func (s *Service) applyCreateTable(p *CreateTablePayload) error {
	if err := s.store.AddTable(p.Table); err != nil {
		return err
	}
	if err := s.store.AddTablets(p.Tablets); err != nil {
		return err
	}
	s.reg.mu.Lock()
	e := cowe.New(*p.Table)
	s.reg.tablesByID[p.Table.ID] = e
	s.reg.tablesByNamespace[tableKey(p.Table.NamespaceID, p.Table.Name)] = e
	for _, t := range p.Tablets {
		te := cowe.New(*t)
		s.reg.tabletsByID[t.ID] = te
		s.reg.tabletIDsByTable[t.TableID] = append(s.reg.tabletIDsByTable[t.TableID], t.ID)
	}
	s.reg.mu.Unlock()
	return nil
}

func (s *Service) applyUpdateTable(p *UpdateTablePayload) error {
	s.reg.mu.RLock()
	e, ok := s.reg.tablesByID[p.Table.ID]
	s.reg.mu.RUnlock()
	if !ok {
		return fmt.Errorf("catalog: update_table for unknown table %s", p.Table.ID)
	}

	wg := e.LockForWrite()
	oldName := wg.Committed().Name
	oldNamespace := wg.Committed().NamespaceID
	*wg.Draft() = *p.Table

	if err := s.store.UpdateTable(p.Table); err != nil {
		wg.Abort()
		return err
	}
	wg.Commit()

	s.reg.mu.Lock()
	if p.Table.State == types.TableStateDeleted {
		// Only freed once DELETED, not at DELETING: the by-namespace slot
		// must keep refusing a same-name CreateTable until every replica
		// of the prior table has actually gone, per the delete/recreate
		// round-trip requirement.
		delete(s.reg.tablesByNamespace, tableKey(oldNamespace, oldName))
	} else if oldName != p.Table.Name || oldNamespace != p.Table.NamespaceID {
		delete(s.reg.tablesByNamespace, tableKey(oldNamespace, oldName))
		s.reg.tablesByNamespace[tableKey(p.Table.NamespaceID, p.Table.Name)] = e
	}
	s.reg.mu.Unlock()
	return nil
}

func (s *Service) applyUpdateTablets(p *UpdateTabletsPayload) error {
	if err := s.store.UpdateTablets(p.Tablets); err != nil {
		return err
	}
	s.reg.mu.Lock()
	for _, t := range p.Tablets {
		e, ok := s.reg.tabletsByID[t.ID]
		if !ok {
			e = cowe.New(*t)
			s.reg.tabletsByID[t.ID] = e
			s.reg.tabletIDsByTable[t.TableID] = append(s.reg.tabletIDsByTable[t.TableID], t.ID)
			continue
		}
		wg := e.LockForWrite()
		prevLocations := wg.Committed().ReplicaLocations
		*wg.Draft() = *t
		if wg.Draft().ReplicaLocations == nil {
			wg.Draft().ReplicaLocations = prevLocations
		}
		wg.Commit()
	}
	s.reg.mu.Unlock()
	return nil
}
