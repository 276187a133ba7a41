package manager

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/cuemby/catalogd/pkg/catalog"
	"github.com/cuemby/catalogd/pkg/config"
	"github.com/cuemby/catalogd/pkg/storage"
	"github.com/cuemby/catalogd/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

// memSnapshotSink is an in-memory raft.SnapshotSink, standing in for the
// file-backed sink raft.FileSnapshotStore produces in production.
type memSnapshotSink struct {
	buf bytes.Buffer
}

func (s *memSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *memSnapshotSink) Close() error                { return nil }
func (s *memSnapshotSink) ID() string                  { return "test-snapshot" }
func (s *memSnapshotSink) Cancel() error                { return nil }
func (s *memSnapshotSink) reader() io.ReadCloser        { return io.NopCloser(&s.buf) }

func newTestFSM(t *testing.T) (*CatalogFSM, *catalog.Service) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var svc *catalog.Service
	apply := func(op string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		return svc.Dispatch(op, data)
	}
	svc = catalog.New(config.Default(), store, func() bool { return true }, apply, nil)
	fsm := NewCatalogFSM(svc, store)
	svc.Start()
	require.NoError(t, svc.OnLeaderElected(1))
	return fsm, svc
}

func command(t *testing.T, op string, payload any) *raft.Log {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	cmdBytes, err := json.Marshal(Command{Op: op, Data: data})
	require.NoError(t, err)
	return &raft.Log{Data: cmdBytes}
}

func TestFSMApplyReplaysCreateNamespace(t *testing.T) {
	fsm, svc := newTestFSM(t)

	ns := &types.Namespace{ID: "ns-test", Name: "replayed"}
	result := fsm.Apply(command(t, "create_namespace", &catalog.CreateNamespacePayload{Namespace: ns}))
	require.Nil(t, result)

	list, err := svc.ListNamespaces("replayed")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestFSMApplyUnknownOpReturnsError(t *testing.T) {
	fsm, _ := newTestFSM(t)

	result := fsm.Apply(command(t, "not_a_real_op", struct{}{}))
	err, ok := result.(error)
	require.True(t, ok)
	require.Error(t, err)
}

func TestFSMSnapshotAndRestoreRoundTrip(t *testing.T) {
	fsm, svc := newTestFSM(t)

	_, err := svc.CreateNamespace("snapshot-test")
	require.NoError(t, err)

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &memSnapshotSink{}
	require.NoError(t, snap.Persist(sink))

	restoreStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = restoreStore.Close() })

	restoreFSM := NewCatalogFSM(nil, restoreStore)
	require.NoError(t, restoreFSM.Restore(sink.reader()))

	var found bool
	err = restoreStore.VisitNamespaces(func(n *types.Namespace) error {
		if n.Name == "snapshot-test" {
			found = true
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, found, "expected restored store to contain the snapshotted namespace")
}
