// Package state holds the application state shared by the collector loop,
// the TUI and the HTTP server behind one mutex.
package state

import (
	"context"
	"sync"

	"github.com/Dicklesworthstone/sysmoni/internal/collector"
	"github.com/Dicklesworthstone/sysmoni/internal/config"
	"github.com/Dicklesworthstone/sysmoni/internal/host"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

// Store is safe for concurrent use. The lock is never held across I/O;
// snapshots are built outside and swapped in by Publish.
type Store struct {
	mu         sync.Mutex
	snap       model.Snapshot
	published  bool
	paused     bool
	showSystem bool
	filter     string
	sortBy     host.SortKey
	ascending  bool
	selected   int32
	subs       map[chan model.Snapshot]struct{}
}

// New seeds the user-controlled fields from cfg.
func New(cfg config.Config) *Store {
	return &Store{
		snap:       model.Zero(),
		showSystem: cfg.ShowSystem,
		filter:     cfg.Filter,
		sortBy:     host.ParseSortKey(cfg.Sort),
		ascending:  cfg.Ascending,
		subs:       make(map[chan model.Snapshot]struct{}),
	}
}

// Params returns the inputs for the next collection cycle.
func (s *Store) Params() collector.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collector.Params{
		ShowSystem:  s.showSystem,
		Filter:      s.filter,
		SortBy:      s.sortBy,
		Ascending:   s.ascending,
		SelectedPID: s.selected,
	}
}

func (s *Store) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// TogglePause flips the pause flag and returns the new value.
func (s *Store) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	return s.paused
}

func (s *Store) SetFilter(f string) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (s *Store) SetSort(key host.SortKey, ascending bool) {
	s.mu.Lock()
	s.sortBy, s.ascending = key, ascending
	s.mu.Unlock()
}

// CycleSort moves to the next sort key, keeping the order.
func (s *Store) CycleSort() host.SortKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortBy = s.sortBy.Next()
	return s.sortBy
}

// ReverseSort flips ascending and descending.
func (s *Store) ReverseSort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ascending = !s.ascending
	return s.ascending
}

func (s *Store) ToggleSystem() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showSystem = !s.showSystem
	return s.showSystem
}

// Select sets the pid whose detail record is collected; 0 clears it.
func (s *Store) Select(pid int32) {
	s.mu.Lock()
	s.selected = pid
	s.mu.Unlock()
}

// Snapshot returns the last published snapshot.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Previous returns the last published GlobalUsage, nil before the first cycle.
func (s *Store) Previous() *model.GlobalUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.published {
		return nil
	}
	g := s.snap.Global
	return &g
}

// Publish swaps in a new snapshot and offers it to subscribers. A subscriber
// that has not consumed the previous snapshot misses this one.
func (s *Store) Publish(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.published = true
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe returns a channel receiving published snapshots until ctx is
// done, after which the channel is closed.
func (s *Store) Subscribe(ctx context.Context) <-chan model.Snapshot {
	ch := make(chan model.Snapshot, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}
