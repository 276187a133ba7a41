package reconcile

import (
	"errors"
	"testing"

	"github.com/cuemby/catalogd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	instructions []types.ReportedInstruction
	err          error
	lastReport   types.TabletReport
}

func (f *fakeReconciler) ProcessTabletReport(report types.TabletReport) ([]types.ReportedInstruction, error) {
	f.lastReport = report
	return f.instructions, f.err
}

func TestHandleReportReturnsInstructions(t *testing.T) {
	want := []types.ReportedInstruction{{TabletID: "t1", Delete: true}}
	fake := &fakeReconciler{instructions: want}
	h := NewHandler(fake)

	report := types.TabletReport{ServerID: "ts1"}
	got, err := h.HandleReport(report)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "ts1", fake.lastReport.ServerID)
}

func TestHandleReportPropagatesError(t *testing.T) {
	fake := &fakeReconciler{err: errors.New("boom")}
	h := NewHandler(fake)

	_, err := h.HandleReport(types.TabletReport{ServerID: "ts1"})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestHandleReportNoInstructions(t *testing.T) {
	fake := &fakeReconciler{}
	h := NewHandler(fake)

	got, err := h.HandleReport(types.TabletReport{ServerID: "ts1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
