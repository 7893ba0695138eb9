// Package session provides a concurrent, TTL-evicting store for live
// chat sessions. Entries are memory-resident and lost on restart.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/khayyamnoor/simplechatbotapi/pkg/chat"
)

// Info is the metadata view of a store entry.
type Info struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AgeMinutes   float64   `json:"age_minutes"`
}

type entry struct {
	payload      *chat.Session
	createdAt    time.Time
	lastAccessed time.Time
}

// Config holds store tuning knobs.
type Config struct {
	// IdleTimeout is how long an entry may go unread before it becomes
	// eligible for eviction. Default 30 minutes.
	IdleTimeout time.Duration
	// SweepInterval is how often the background sweep runs.
	// Default 5 minutes.
	SweepInterval time.Duration
}

// DefaultConfig returns the standard timeouts.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// Store maps session IDs to live chat sessions and evicts idle entries
// on a timer. Store is safe for concurrent use: a Get racing the sweep
// either refreshes the entry, sparing it from that pass, or misses it
// entirely. It never observes a half-evicted entry.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*entry

	cronMu  sync.Mutex
	cron    *cron.Cron
	onEvict func(sessionID string)
}

// NewStore creates a store with the given configuration. Zero config
// fields fall back to DefaultConfig values. The sweep does not run
// until StartSweeper is called.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*entry),
	}
}

// Create inserts a new entry. Returns false if the ID already exists;
// the existing entry is left untouched.
func (s *Store) Create(sessionID string, payload *chat.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; exists {
		return false
	}
	now := time.Now().UTC()
	s.sessions[sessionID] = &entry{
		payload:      payload,
		createdAt:    now,
		lastAccessed: now,
	}
	s.logger.Info("session created", "session_id", sessionID)
	return true
}

// Get returns the payload for the ID and refreshes its last-accessed
// time, postponing eviction.
func (s *Store) Get(sessionID string) (*chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	e.lastAccessed = time.Now().UTC()
	return e.payload, true
}

// Update replaces the payload for an existing ID, touching its
// last-accessed time. Returns false if the ID is absent.
func (s *Store) Update(sessionID string, payload *chat.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	e.payload = payload
	e.lastAccessed = time.Now().UTC()
	return true
}

// Delete removes the entry. Returns false if the ID is absent.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	s.logger.Info("session deleted", "session_id", sessionID)
	return true
}

// Count returns the number of live entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// GetInfo returns metadata for the entry without refreshing its
// last-accessed time.
func (s *Store) GetInfo(sessionID string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return Info{}, false
	}
	return Info{
		SessionID:    sessionID,
		CreatedAt:    e.createdAt,
		LastAccessed: e.lastAccessed,
		AgeMinutes:   time.Since(e.createdAt).Minutes(),
	}, true
}

// SetEvictHook registers a callback invoked, outside the store lock,
// for each evicted session. Used by the gateway to update metrics.
func (s *Store) SetEvictHook(fn func(sessionID string)) {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	s.onEvict = fn
}

// StartSweeper schedules the eviction sweep on the configured interval.
// Calling it twice is an error.
func (s *Store) StartSweeper() error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.SweepInterval)
	if _, err := c.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("session sweeper started",
		"interval", s.cfg.SweepInterval, "idle_timeout", s.cfg.IdleTimeout)
	return nil
}

// StopSweeper halts the schedule and waits for any in-flight sweep to
// finish before returning, so no sweep outlives the owning service.
// Safe to call when the sweeper was never started.
func (s *Store) StopSweeper() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("session sweeper stopped")
}

// Sweep deletes every entry whose idle duration exceeds the configured
// timeout. Exported so tests and operators can force a pass.
func (s *Store) Sweep() {
	now := time.Now().UTC()

	s.mu.Lock()
	var expired []string
	for id, e := range s.sessions {
		if now.Sub(e.lastAccessed) > s.cfg.IdleTimeout {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
		s.logger.Info("evicted expired session", "session_id", id)
	}
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	s.logger.Info("sweep complete", "evicted", len(expired))

	s.cronMu.Lock()
	hook := s.onEvict
	s.cronMu.Unlock()
	if hook != nil {
		for _, id := range expired {
			hook(id)
		}
	}
}
