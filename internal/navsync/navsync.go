// Package navsync mirrors the left page's navigations onto the right page.
// It is deliberately separate from the interaction sync engine: a replayed
// click can itself navigate the right page, and the engine arms a short
// suppression window around every click replay so this mirror does not
// apply the same navigation twice.
package navsync

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

const defaultNavigateTimeout = 10 * time.Second

// Source is the left page: it reports top-frame navigations.
type Source interface {
	OnNavigated(fn func(url string)) (remove func())
}

// Target is the right page: it can be driven to a URL.
type Target interface {
	Navigate(ctx context.Context, url string) error
	Closed() bool
}

// SyncState is the sync engine's view of whether mirroring should happen
// right now. Both checks come from the same Manager instance.
type SyncState interface {
	IsEnabled() bool
	IsNavSyncSuppressed() bool
}

// Config configures a Mirror.
type Config struct {
	Source          Source
	Target          Target
	State           SyncState
	Logger          *log.Logger
	NavigateTimeout time.Duration
}

// Mirror repeats left navigations on the right page, best effort.
type Mirror struct {
	source  Source
	target  Target
	state   SyncState
	logger  *log.Logger
	timeout time.Duration

	mu      sync.Mutex
	started bool
	remove  func()
}

// NewMirror creates a Mirror; Start attaches it.
func NewMirror(cfg Config) *Mirror {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = defaultNavigateTimeout
	}
	return &Mirror{
		source:  cfg.Source,
		target:  cfg.Target,
		state:   cfg.State,
		logger:  logger,
		timeout: cfg.NavigateTimeout,
	}
}

// Start subscribes to the left page's navigations. No-op when the source is
// absent or the mirror is already running.
func (m *Mirror) Start() {
	if m.source == nil {
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	remove := m.source.OnNavigated(m.handleNavigation)

	m.mu.Lock()
	m.remove = remove
	m.mu.Unlock()
}

// Stop unsubscribes. Idempotent.
func (m *Mirror) Stop() {
	m.mu.Lock()
	remove := m.remove
	m.remove = nil
	m.started = false
	m.mu.Unlock()
	if remove != nil {
		remove()
	}
}

// handleNavigation applies one left navigation to the right page unless
// sync is off or a click replay just navigated it already.
func (m *Mirror) handleNavigation(url string) {
	if m.state != nil {
		if !m.state.IsEnabled() {
			return
		}
		if m.state.IsNavSyncSuppressed() {
			m.logger.Printf("navsync: dropping %s, click replay already navigated", url)
			return
		}
	}
	if m.target == nil || m.target.Closed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.target.Navigate(ctx, url); err != nil {
		m.logger.Printf("navsync: navigate to %s failed: %v", url, err)
	}
}
