// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package mailbox keeps the resident mailboxes of a server and owns the
// admission schedulers they submit work to.
package mailbox

import (
	"fmt"
	"sync"

	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/internal/errorschain"
	"github.com/Zimbra/zm-mailbox-sub090/internal/metric"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/mailboxlock"
	"github.com/Zimbra/zm-mailbox-sub090/operation"
	"github.com/Zimbra/zm-mailbox-sub090/scheduler"
)

// Mailbox is a resident mailbox.
type Mailbox struct {
	id        int
	lock      *mailboxlock.Lock
	scheduler *scheduler.Scheduler
}

// ID returns the mailbox id.
func (m *Mailbox) ID() int {
	return m.id
}

// Lock returns the mailbox lock.
func (m *Mailbox) Lock() *mailboxlock.Lock {
	return m.lock
}

// Scheduler returns the scheduler of the mailbox shard.
func (m *Mailbox) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// Manager owns the scheduler registry and the resident mailbox set.
type Manager struct {
	logger        log.Logger
	config        *config.Config
	meterProvider otelmetric.MeterProvider
	promote       func(mailboxID int) bool
	executorOpts  []operation.Option

	tunables   *atomic.Pointer[config.Tunables]
	registry   *scheduler.Registry
	catalog    *config.Catalog
	executor   *operation.Executor
	lockMetric *metric.LockMetric

	mu        sync.Mutex
	mailboxes map[int]*Mailbox
	closed    bool
}

// NewManager builds the shard registry from tunables and the optional
// operation configuration.
func NewManager(tunables config.Tunables, opts ...Option) *Manager {
	m := &Manager{
		logger:    log.DefaultLogger,
		tunables:  atomic.NewPointer(&tunables),
		mailboxes: make(map[int]*Mailbox),
	}
	for _, opt := range opts {
		opt.Apply(m)
	}

	m.catalog = config.NewCatalog(m.config, m.logger)
	params := scheduler.ParamsFromTunables(tunables).Apply(m.config)
	m.registry = scheduler.NewRegistry(tunables.Shards, params,
		scheduler.WithLogger(m.logger),
		scheduler.WithMeterProvider(m.meterProvider))

	executorOpts := append([]operation.Option{operation.WithLogger(m.logger)}, m.executorOpts...)
	m.executor = operation.NewExecutor(m.registry, m.catalog, executorOpts...)

	provider := metric.New(metric.WithMeterProvider(m.meterProvider))
	lockMetric, err := metric.NewLockMetric(provider.Meter())
	if err != nil {
		m.logger.Warnf("mailbox lock metrics disabled: %v", err)
	}
	m.lockMetric = lockMetric
	return m
}

// Get returns the resident mailbox id, making it resident when needed. After
// Close it returns errors.ErrSchedulerClosed.
func (m *Manager) Get(id int) (*Mailbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("%w: mailbox %d", errors.ErrSchedulerClosed, id)
	}
	if mbox, ok := m.mailboxes[id]; ok {
		return mbox, nil
	}

	tunables := m.tunables.Load()
	opts := []mailboxlock.Option{
		mailboxlock.WithLogger(m.logger),
		mailboxlock.WithMaxWaiters(tunables.LockMaxWaiters),
		mailboxlock.WithTimeout(tunables.LockTimeout),
	}
	if m.lockMetric != nil {
		opts = append(opts, mailboxlock.WithMetric(m.lockMetric))
	}
	if m.promote != nil {
		opts = append(opts, mailboxlock.WithPromotion(func() bool { return m.promote(id) }))
	}

	mbox := &Mailbox{
		id:        id,
		lock:      mailboxlock.New(id, opts...),
		scheduler: m.registry.For(id),
	}
	m.mailboxes[id] = mbox
	return mbox, nil
}

// Evict drops a resident mailbox and retires its lock, so a reference kept
// from an earlier Get fails with errors.ErrMailboxEvicted instead of locking
// apart from the next resident instance. It returns errors.ErrMailboxBusy
// while the mailbox lock is held or waited on. Evicting a mailbox that is not
// resident is a no-op.
func (m *Manager) Evict(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mbox, ok := m.mailboxes[id]
	if !ok {
		return nil
	}
	if !mbox.lock.Retire() {
		return fmt.Errorf("%w: mailbox %d", errors.ErrMailboxBusy, id)
	}
	delete(m.mailboxes, id)
	return nil
}

// Resident returns the number of resident mailboxes.
func (m *Manager) Resident() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mailboxes)
}

// Scheduler returns the scheduler owning mailbox id.
func (m *Manager) Scheduler(id int) *scheduler.Scheduler {
	return m.registry.For(id)
}

// Registry returns the shard registry.
func (m *Manager) Registry() *scheduler.Registry {
	return m.registry
}

// Catalog returns the operation catalog.
func (m *Manager) Catalog() *config.Catalog {
	return m.catalog
}

// Executor returns the operation executor bound to the registry.
func (m *Manager) Executor() *operation.Executor {
	return m.executor
}

// Tunables returns the tunables in effect.
func (m *Manager) Tunables() config.Tunables {
	return *m.tunables.Load()
}

// NewSession creates a client session sized by the session.history tunable.
func (m *Manager) NewSession() *operation.Session {
	return operation.NewSession(m.tunables.Load().SessionHistory)
}

// ApplyTunables installs new tunables. Scheduler parameters change at once;
// lock settings apply to mailboxes made resident afterwards. The shard count
// is fixed at construction.
func (m *Manager) ApplyTunables(tunables config.Tunables) error {
	params := scheduler.ParamsFromTunables(tunables).Apply(m.catalog.Config())
	if err := m.registry.UpdateParams(params); err != nil {
		return err
	}
	if tunables.Shards != m.registry.Shards() {
		m.logger.Warnf("shard count change to %d ignored until restart", tunables.Shards)
		tunables.Shards = m.registry.Shards()
	}
	m.tunables.Store(&tunables)
	return nil
}

// ApplyConfig installs a reloaded operation configuration.
func (m *Manager) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	params := scheduler.ParamsFromTunables(*m.tunables.Load()).Apply(cfg)
	if err := m.registry.UpdateParams(params); err != nil {
		return err
	}
	m.catalog.Update(cfg)
	return nil
}

// Watch applies every configuration published by watcher.
func (m *Manager) Watch(watcher *config.Watcher) {
	watcher.Subscribe(func(cfg *config.Config) {
		if err := m.ApplyConfig(cfg); err != nil {
			m.logger.Warnf("reloaded operation config rejected: %v", err)
		}
	})
}

// Close closes every scheduler. Queued work fails with
// errors.ErrSchedulerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mailboxes = make(map[int]*Mailbox)
	m.mu.Unlock()

	return errorschain.New().
		AddStep("close schedulers", m.registry.Close).
		AddStep("flush logger", m.logger.Flush).
		Error()
}
