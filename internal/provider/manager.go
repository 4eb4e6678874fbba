package provider

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/model"
)

// Factory constructs a backend variant for an account. It is injected
// so the manager does not depend on the concrete variant packages.
type Factory func(account model.Account) (Provider, error)

// Manager owns the lifecycle of the active provider. Switching
// accounts disconnects the previous variant, constructs and connects
// the replacement, and notifies listeners. Consumers hold a reference
// obtained from the manager instead of a package-level singleton.
type Manager struct {
	newProvider Factory
	log         *logrus.Logger

	mu        sync.Mutex
	current   Provider
	account   *model.Account
	listeners []func(Provider, model.Account)
}

// NewManager creates a Manager that builds variants with the given
// factory.
func NewManager(factory Factory, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		newProvider: factory,
		log:         log,
	}
}

// OnSwitch registers a listener invoked after every successful account
// switch.
func (m *Manager) OnSwitch(fn func(Provider, model.Account)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Use switches the active account. The previous provider, if any, is
// disconnected first; its teardown error is logged, not surfaced,
// because the switch must proceed regardless.
func (m *Manager) Use(ctx context.Context, account model.Account) (Provider, error) {
	m.mu.Lock()
	previous := m.current
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Disconnect(ctx); err != nil {
			m.log.WithError(err).Warn("disconnecting previous provider")
		}
	}

	p, err := m.newProvider(account)
	if err != nil {
		return nil, err
	}

	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.current = p
	m.account = &account
	listeners := make([]func(Provider, model.Account), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(p, account)
	}

	m.log.WithFields(logrus.Fields{
		"account":  account.ID,
		"provider": account.Provider,
	}).Info("switched account")

	return p, nil
}

// Current returns the active provider, or nil when no account has been
// selected yet.
func (m *Manager) Current() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Account returns the active account, or nil.
func (m *Manager) Account() *model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		return nil
	}
	acc := *m.account
	return &acc
}

// Close disconnects the active provider, if any.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.account = nil
	m.mu.Unlock()

	if current == nil {
		return nil
	}
	return current.Disconnect(ctx)
}
