// Package catalog implements the catalog manager's in-memory core: the
// Entity Registry (ER), the Leader State & Lock (LSL), the Loader (LDR),
// and the Control Operations (CO) request handlers. It is persisted
// through pkg/storage and replicated by pkg/manager's raft wiring.
package catalog

import (
	"fmt"

	"github.com/cuemby/catalogd/pkg/config"
	"github.com/cuemby/catalogd/pkg/log"
	"github.com/cuemby/catalogd/pkg/storage"
	"github.com/cuemby/catalogd/pkg/types"
)

// TSDescriptorsFunc returns a snapshot of the currently live tablet
// servers, as supplied by the (external, excluded-from-spec) tablet
// server fleet manager.
type TSDescriptorsFunc func() []types.TSDescriptor

// Applier submits a Command for replication and returns the result once
// the raft log entry committing it has been applied locally. It is
// implemented by pkg/manager.Manager and injected here to avoid an import
// cycle: catalog builds commands, manager replicates and replays them by
// calling back into catalog's ApplyX methods.
type Applier func(op string, payload any) error

// Service is the catalog manager's core: ER + LSL bound to a Store and an
// Applier. One Service exists per node; its ER and LSL are meaningful only
// on the node that currently believes itself leader.
type Service struct {
	cfg         *config.Config
	store       storage.Store
	apply       Applier
	tsDescriptors TSDescriptorsFunc

	reg *registry
	lsl *lsl
}

// New constructs a Service. isLeaderFn reports whether the owning
// Manager currently believes this node holds raft leadership; apply
// submits a Command through the replicated log; tsDescriptors snapshots
// the live tablet-server fleet for placement and load-balance decisions.
func New(cfg *config.Config, store storage.Store, isLeaderFn func() bool, apply Applier, tsDescriptors TSDescriptorsFunc) *Service {
	return &Service{
		cfg:           cfg,
		store:         store,
		apply:         apply,
		tsDescriptors: tsDescriptors,
		reg:           newRegistry(),
		lsl:           newLSL(isLeaderFn),
	}
}

// Start moves the LSL out of CONSTRUCTED so that TryAdmit can be reached
// (it still requires leadership and a completed Loader run to actually
// admit an operation).
func (s *Service) Start() {
	s.lsl.setState(stateStarting)
	s.lsl.setState(stateRunning)
}

// Shutdown moves the LSL to CLOSING; public entry points begin refusing
// with ServiceUnavailable.
func (s *Service) Shutdown() {
	s.lsl.setState(stateClosing)
}

// OnLeaderLost records that this node is no longer (or not yet) leader so
// that a later TryAdmit reports IllegalState instead of serving against a
// stale ready-term.
func (s *Service) OnLeaderLost(term uint64) {
	s.lsl.NotifyTermObserved(term)
	log.WithComponent("catalog").Info().Uint64("term", term).Msg("leadership lost or not yet held")
}

// OnLeaderElected runs the Loader for the given term: clears the ER,
// replays the PMS, and ensures the bootstrap defaults exist. It is the
// single entry point the Manager calls from its raft leader-observation
// callback.
func (s *Service) OnLeaderElected(term uint64) error {
	finish := s.lsl.BeginLoad(term)
	logger := log.WithComponent("loader").With().Uint64("term", term).Logger()
	logger.Info().Msg("loader starting")

	s.reg.clear()

	ok := false
	defer func() { finish(ok) }()

	if err := s.load(); err != nil {
		logger.Error().Err(err).Msg("loader failed")
		return fmt.Errorf("loader: %w", err)
	}

	if err := s.ensureBootstrapDefaults(); err != nil {
		logger.Error().Err(err).Msg("loader failed ensuring bootstrap defaults")
		return fmt.Errorf("loader bootstrap: %w", err)
	}

	ok = true
	logger.Info().Msg("loader finished, leader ready")
	return nil
}
