package library

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"skytune/internal/remote"
	"skytune/internal/shared"
)

// SnapshotStore is the persistence boundary the host provides. Accounts are
// keyed opaquely; a missing snapshot surfaces as [shared.ErrNotFound].
type SnapshotStore interface {
	Load(account string) ([]byte, error)
	Save(account string, blob []byte) error
}

// Manager owns the Library lifecycle for one process: it builds a Library
// when credentials arrive, tears it down when they change, restores the
// persisted snapshot on construction, and drives the periodic refresh.
type Manager struct {
	mu       sync.Mutex
	config   *shared.Config
	store    SnapshotStore
	dial     func() remote.Client
	logger   *log.Logger
	library  *Library
	username string
	password string
}

// NewManager creates a Manager. dial constructs a fresh remote client per
// credential set; store may be nil when snapshots are not kept.
func NewManager(config *shared.Config, store SnapshotStore, dial func() remote.Client, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if config == nil {
		config = shared.DefaultConfig()
	}
	return &Manager{
		config: config,
		store:  store,
		dial:   dial,
		logger: shared.WithLogger(logger, "component", "manager"),
	}
}

// SetCredentials installs the account the Manager serves. Unchanged
// credentials are a no-op; changed ones log out the old session, discard the
// old Library, and build a new one seeded from the persisted snapshot. Any
// in-flight refresh of the old Library fails naturally against the discarded
// instance.
func (m *Manager) SetCredentials(username, password string) error {
	if username == "" || password == "" {
		return shared.ErrMissingCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.library != nil && username == m.username && password == m.password {
		return nil
	}

	if m.library != nil {
		m.logger.Info("credentials changed, discarding library", "username", m.username)
		if err := m.library.Close(); err != nil {
			m.logger.Warn("logout of previous session failed", "err", err)
		}
	}

	config := *m.config
	config.Credentials.Username = username
	config.Credentials.Password = password

	account := shared.Hash(username)
	var persist PersistFunc
	if m.store != nil {
		persist = func(blob []byte) error {
			return m.store.Save(account, blob)
		}
	}

	lib := NewLibrary(m.dial(), &config, persist, m.logger)

	if m.store != nil {
		blob, err := m.store.Load(account)
		switch {
		case err == nil:
			if err := lib.Restore(blob); err != nil {
				if errors.Is(err, shared.ErrSchemaMismatch) {
					m.logger.Warn("discarding stale snapshot", "err", err)
				} else {
					m.logger.Warn("snapshot restore failed, starting empty", "err", err)
				}
			}
		case errors.Is(err, shared.ErrNotFound):
			m.logger.Debug("no snapshot for account, starting empty")
		default:
			m.logger.Warn("snapshot load failed, starting empty", "err", err)
		}
	}

	m.library = lib
	m.username = username
	m.password = password
	return nil
}

// ClearCredentials logs out and discards the Library.
func (m *Manager) ClearCredentials() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.library == nil {
		return nil
	}
	err := m.library.Close()
	m.library = nil
	m.username = ""
	m.password = ""
	return err
}

// Library returns the current Library, or an error when no credentials have
// been set.
func (m *Manager) Library() (*Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.library == nil {
		return nil, shared.ErrMissingCredentials
	}
	return m.library, nil
}

// RefreshNow runs one refresh cycle, blocking until it completes.
func (m *Manager) RefreshNow(ctx context.Context) error {
	lib, err := m.Library()
	if err != nil {
		return err
	}
	return lib.Refresh(ctx)
}

// Run drives the periodic refresh until ctx is cancelled. The first cycle
// starts immediately; later ticks fire on the configured interval and are
// skipped while a cycle is still running.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.config.RefreshInterval()
	m.logger.Info("starting refresh scheduler", "interval", interval)

	tick := func() {
		lib, err := m.Library()
		if err != nil {
			m.logger.Debug("no library yet, skipping refresh tick")
			return
		}
		if err := lib.TryRefresh(ctx); err != nil {
			m.logger.Error("scheduled refresh failed", "err", err)
		}
	}

	tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick()
		}
	}
}
