package livetrack

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"fleetconsole.org/livemap/internal/logging"
)

var (
	ErrViewExists   = errors.New("view already mounted")
	ErrShuttingDown = errors.New("tracker is shutting down")
)

// Manager owns the set of mounted views. Every view runs its own poll loop
// over the shared Poller configuration.
type Manager struct {
	poller *Poller
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	views        map[string]*View
	closed       bool
	shutdownOnce sync.Once
}

func NewManager(poller *Poller, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		poller: poller,
		logger: logging.Component(logger, "livetrack"),
		ctx:    ctx,
		cancel: cancel,
		views:  make(map[string]*View),
	}
}

// Mount creates a view with an empty route table and starts its poll loop.
func (m *Manager) Mount(id string, listener Listener) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShuttingDown
	}
	if _, exists := m.views[id]; exists {
		return nil, ErrViewExists
	}

	view := newView(id, listener)
	view.handle = m.poller.Start(m.ctx, view.publish)
	m.views[id] = view

	logging.LogOperation(m.logger, "view_mounted",
		slog.String("view_id", id),
		slog.Int("views", len(m.views)))
	return view, nil
}

// Unmount stops the view's loop and discards its state. Once Unmount returns
// the view's listener is never called again.
func (m *Manager) Unmount(id string) bool {
	m.mu.Lock()
	view, ok := m.views[id]
	delete(m.views, id)
	remaining := len(m.views)
	m.mu.Unlock()

	if !ok {
		return false
	}
	view.handle.Cancel()
	view.routes.clear()

	logging.LogOperation(m.logger, "view_unmounted",
		slog.String("view_id", id),
		slog.Int("views", remaining))
	return true
}

func (m *Manager) View(id string) (*View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view, ok := m.views[id]
	return view, ok
}

// Views lists mounted views ordered by id.
func (m *Manager) Views() []*View {
	m.mu.RLock()
	out := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		out = append(out, v)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Shutdown unmounts every view. It is idempotent.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		ids := make([]string, 0, len(m.views))
		for id := range m.views {
			ids = append(ids, id)
		}
		m.mu.Unlock()

		for _, id := range ids {
			m.Unmount(id)
		}
		m.cancel()
		logging.LogOperation(m.logger, "livetrack_shutdown")
	})
}
