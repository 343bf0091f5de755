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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/fsnotify/fsnotify"

	"github.com/Zimbra/zm-mailbox-sub090/log"
)

const (
	defaultDebounce     = 100 * time.Millisecond
	defaultMaxRetries   = 5
	defaultInitialDelay = 50 * time.Millisecond
	defaultMaxDelay     = time.Second
)

// WatcherOption configures a Watcher.
type WatcherOption interface {
	// Apply sets the Option value of a Watcher.
	Apply(w *Watcher)
}

var _ WatcherOption = WatcherOptionFunc(nil)

// WatcherOptionFunc implements the WatcherOption interface.
type WatcherOptionFunc func(w *Watcher)

// Apply applies the Watcher's option
func (f WatcherOptionFunc) Apply(w *Watcher) {
	f(w)
}

// WithWatcherLogger sets the watcher logger
func WithWatcherLogger(logger log.Logger) WatcherOption {
	return WatcherOptionFunc(func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	})
}

// WithDebounce sets how long the watcher waits for writes to settle
func WithDebounce(d time.Duration) WatcherOption {
	return WatcherOptionFunc(func(w *Watcher) {
		w.debounce = d
	})
}

// WithRetry sets the reparse retry policy used while a file is being written
func WithRetry(maxRetries int, initialDelay, maxDelay time.Duration) WatcherOption {
	return WatcherOptionFunc(func(w *Watcher) {
		w.maxRetries = maxRetries
		w.initialDelay = initialDelay
		w.maxDelay = maxDelay
	})
}

// Watcher reloads an operation configuration file when it changes and
// publishes every successfully parsed Config to its subscribers.
type Watcher struct {
	path         string
	logger       log.Logger
	debounce     time.Duration
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	subs    []func(*Config)
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	started bool
}

// NewWatcher watches the directory holding path. Directories survive the
// rename-over-write pattern used by editors and config management.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:         filepath.Clean(path),
		logger:       log.DefaultLogger,
		debounce:     defaultDebounce,
		maxRetries:   defaultMaxRetries,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt.Apply(w)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	w.watcher = watcher
	return w, nil
}

// Subscribe registers fn to receive every reloaded Config. Subscribers are
// called in registration order from the watcher goroutine.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	w.subs = append(w.subs, fn)
	w.mu.Unlock()
}

// Start begins watching.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.watchLoop()
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.doneCh
		}
	})
	return err
}

// Reload parses the file now and publishes the result.
func (w *Watcher) Reload(ctx context.Context) (*Config, error) {
	var cfg *Config
	retrier := retry.NewRetrier(w.maxRetries, w.initialDelay, w.maxDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		var err error
		cfg, err = LoadFile(w.path, w.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reload %s: %w", w.path, err)
	}

	w.mu.Lock()
	subs := make([]func(*Config), len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
	return cfg, nil
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	target := filepath.Base(w.path)
	// armed by the first relevant event
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if _, err := w.Reload(ctx); err != nil {
				w.logger.Warnf("operation config not reloaded, keeping previous: %v", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("operation config watcher error: %v", err)
		}
	}
}
