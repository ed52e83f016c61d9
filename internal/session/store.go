// Package session keeps each browser session's current dataset in memory.
// A dataset lives until the next ingestion event in the same session or until
// the session idles out.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/fpa/internal/model"
)

// Source labels how the current dataset arrived.
type Source string

const (
	SourceUpload Source = "upload"
	SourceSample Source = "sample"
)

// State is a snapshot of one session.
type State struct {
	Raw        *model.Table
	Analysis   *model.Analysis
	Source     Source
	FileName   string
	LoadedAt   time.Time
	// Generation identifies the dataset; every ingestion event gets a new one.
	Generation uint64
	Insights   string
	InsightsAt time.Time
	Flash      string
}

// HasData reports whether the session holds a dataset.
func (s State) HasData() bool { return s.Raw != nil }

type entry struct {
	state    State
	lastSeen time.Time
}

// Store is a mutex-guarded map of sessions.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	gen      uint64
}

// NewStore returns a Store evicting sessions idle longer than ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Store{ttl: ttl, now: time.Now, sessions: make(map[string]*entry)}
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id looks like an id from NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns a copy of the session state. Unknown ids yield an empty state.
func (s *Store) Get(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok {
		return State{}
	}
	e.lastSeen = s.now()
	return e.state
}

// Load replaces the session dataset. Analysis, insights and flash from the
// previous dataset are discarded.
func (s *Store) Load(id string, raw model.Table, a *model.Analysis, src Source, fileName string) {
	s.update(id, func(st *State) {
		s.gen++
		*st = State{
			Raw:        &raw,
			Analysis:   a,
			Source:     src,
			FileName:   fileName,
			LoadedAt:   s.now(),
			Generation: s.gen,
		}
	})
}

// Fail discards the session dataset and records a message for the next page
// render. Used when an ingestion event is rejected.
func (s *Store) Fail(id, msg string) {
	s.update(id, func(st *State) {
		s.gen++
		*st = State{Flash: msg, Generation: s.gen}
	})
}

// SetInsights stores the AI analysis text for the dataset of generation gen.
// It reports false, storing nothing, when the session has moved on to another
// dataset since gen was read.
func (s *Store) SetInsights(id string, gen uint64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok || e.state.Raw == nil || e.state.Generation != gen {
		return false
	}
	e.state.Insights = text
	e.state.InsightsAt = s.now()
	e.lastSeen = s.now()
	return true
}

// SetFlash records a one-shot message without touching the dataset.
func (s *Store) SetFlash(id, msg string) {
	s.update(id, func(st *State) { st.Flash = msg })
}

// TakeFlash returns and clears the pending message.
func (s *Store) TakeFlash(id string) string {
	var msg string
	s.update(id, func(st *State) {
		msg = st.Flash
		st.Flash = ""
	})
	return msg
}

// Clear drops the session.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

func (s *Store) update(id string, fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	fn(&e.state)
	e.lastSeen = s.now()
}

func (s *Store) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
