// Package assign drives the catalog manager's Background Loop: a ticking
// goroutine that periodically invokes the Assignment Engine so that
// PREPARING and timed-out CREATING tablets make progress even absent new
// client traffic.
package assign

import (
	"sync"
	"time"

	"github.com/cuemby/catalogd/pkg/log"
	"github.com/rs/zerolog"
)

// Ticker is the Assignment Engine surface the Background Loop drives.
// catalog.Service satisfies it.
type Ticker interface {
	Tick() error
}

// Loop periodically calls Ticker.Tick. A Kick lets callers (e.g. a
// CreateTable handler) request an immediate extra pass instead of
// waiting out the full interval, mirroring the
// catalog_manager_bg_task_wait_ms condition-variable wakeup.
type Loop struct {
	ticker   Ticker
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	kickCh  chan struct{}
	running bool
}

// NewLoop constructs a Background Loop that calls ticker.Tick every
// interval.
func NewLoop(ticker Ticker, interval time.Duration) *Loop {
	return &Loop{
		ticker:   ticker,
		interval: interval,
		logger:   log.WithComponent("assign"),
		stopCh:   make(chan struct{}),
		kickCh:   make(chan struct{}, 1),
	}
}

// Start begins the loop goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()
	go l.run()
}

// Stop halts the loop goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()
	close(l.stopCh)
}

// Kick requests an extra tick at the next opportunity without waiting
// for the full interval to elapse.
func (l *Loop) Kick() {
	select {
	case l.kickCh <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	interval := l.interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info().Dur("interval", interval).Msg("background assignment loop started")

	for {
		select {
		case <-ticker.C:
			l.tick()
		case <-l.kickCh:
			l.tick()
		case <-l.stopCh:
			l.logger.Info().Msg("background assignment loop stopped")
			return
		}
	}
}

func (l *Loop) tick() {
	if err := l.ticker.Tick(); err != nil {
		l.logger.Error().Err(err).Msg("assignment tick failed")
	}
}
