// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package semantic

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchroute/internal/routing"
)

// RouteSource serves the server-default semantic routes and hot-reloads them
// when the backing file changes. A source without a file serves the built-in
// defaults and never reloads.
type RouteSource struct {
	path    string
	mu      sync.RWMutex
	routes  []routing.SemanticRoute
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRouteSource loads path once and starts watching it. An empty path yields
// a static source serving DefaultRoutes.
func NewRouteSource(path string) (*RouteSource, error) {
	s := &RouteSource{path: path, done: make(chan struct{})}
	if path == "" {
		s.routes = DefaultRoutes()
		return s, nil
	}

	routes, err := LoadRoutesFile(path)
	if err != nil {
		return nil, err
	}
	s.routes = routes

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch routes file: %w", err)
	}
	// Watch the directory, not the file: editors and config tooling replace
	// files by rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch routes dir: %w", err)
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

// Routes returns the current route set. The returned slice must not be
// mutated by callers.
func (s *RouteSource) Routes() []routing.SemanticRoute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes
}

// Close stops the watcher goroutine.
func (s *RouteSource) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *RouteSource) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Small debounce; writes often arrive as bursts.
			time.Sleep(100 * time.Millisecond)
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("Routes watcher error")
		case <-s.done:
			return
		}
	}
}

// reload swaps in the new routes, keeping the old set when the file is
// momentarily missing or invalid.
func (s *RouteSource) reload() {
	routes, err := LoadRoutesFile(s.path)
	if err != nil {
		log.WithError(err).Error("Failed to reload routes file, keeping previous routes")
		return
	}
	s.mu.Lock()
	s.routes = routes
	s.mu.Unlock()
	log.WithField("routes", len(routes)).Info("Semantic routes reloaded")
}
