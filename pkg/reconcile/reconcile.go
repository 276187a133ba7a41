// Package reconcile is the transport-facing wrapper around the catalog
// manager's Report Reconciler: it times and logs each tablet-server
// heartbeat, the same way a periodic reconciliation pass would be timed
// and logged, except the work here is event-driven (one call per
// incoming tablet report) rather than ticked, since reconciliation
// happens on heartbeat receipt, not on a timer.
package reconcile

import (
	"github.com/cuemby/catalogd/pkg/log"
	"github.com/cuemby/catalogd/pkg/types"
	"github.com/rs/zerolog"
)

// Reconciler is the Report Reconciler surface this package wraps.
// catalog.Service satisfies it.
type Reconciler interface {
	ProcessTabletReport(report types.TabletReport) ([]types.ReportedInstruction, error)
}

// Handler adapts incoming tablet-server heartbeats to a Reconciler.
type Handler struct {
	reconciler Reconciler
	logger     zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(r Reconciler) *Handler {
	return &Handler{reconciler: r, logger: log.WithComponent("reconcile")}
}

// HandleReport processes one tablet server's heartbeat and returns the
// instructions to hand back in the RPC response.
func (h *Handler) HandleReport(report types.TabletReport) ([]types.ReportedInstruction, error) {
	instructions, err := h.reconciler.ProcessTabletReport(report)
	if err != nil {
		h.logger.Error().Err(err).Str("server_id", report.ServerID).Msg("tablet report reconciliation failed")
		return nil, err
	}
	if len(instructions) > 0 {
		h.logger.Debug().Str("server_id", report.ServerID).Int("instructions", len(instructions)).Msg("tablet report produced instructions")
	}
	return instructions, nil
}
