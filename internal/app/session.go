package app

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/draip/internal/domain"
)

// Phase is the coarse trip lifecycle state.
type Phase string

// PhasePlanning and related constants define trip phases.
const (
	PhasePlanning Phase = "planning"
	PhaseActive   Phase = "active"
	PhaseDone     Phase = "done"
)

// IDGenerator returns unique identifiers for decision log entries.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// defaultSatisfactionSeed is the first satisfaction point after a build.
const defaultSatisfactionSeed = 75

// defaultRadiusM is the place search radius when none is configured.
const defaultRadiusM = 3000

// EngineConfig tunes planning and evaluation.
type EngineConfig struct {
	TopK           int
	Monitor        MonitorConfig
	AdvisorTimeout time.Duration
}

// SessionConfig holds the per-trip settings.
type SessionConfig struct {
	Location Location
	Profile  domain.UserProfile
	RadiusM  int
	Engine   EngineConfig
}

// SessionOption configures optional session collaborators.
type SessionOption func(*Session)

// WithAdvisor enables language-model suggestions with deterministic fallback.
func WithAdvisor(advisor PlanAdvisor) SessionOption {
	return func(s *Session) {
		s.advisor = advisor
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator sets the decision log id source.
func WithIDGenerator(idGen IDGenerator) SessionOption {
	return func(s *Session) {
		if idGen != nil {
			s.idGen = idGen
		}
	}
}

// WithClock sets the time source.
func WithClock(clock Clock) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Session owns all mutable state for one trip. Methods are safe for concurrent
// use; itinerary changes are computed on copies and swapped in under the lock.
type Session struct {
	weatherProvider WeatherProvider
	placeSearcher   PlaceSearcher
	advisor         PlanAdvisor
	logger          Logger
	idGen           IDGenerator
	clock           Clock
	cfg             SessionConfig

	mu          sync.Mutex
	phase       Phase
	profile     domain.UserProfile
	state       domain.UserState
	itinerary   domain.Itinerary
	disruption  *domain.Disruption
	batch       []domain.Disruption
	flagged     map[string]domain.ActivityStatus
	planRev     uint64
	log         domain.DecisionLog
	metrics     domain.RLMetrics
	weather     *domain.Weather
	weatherErr  string
	candidates  []domain.Candidate
	placesErr   string
	explanation *Explanation
	entrySeq    int

	evaluating atomic.Bool
	replanning atomic.Bool
	pending    sync.WaitGroup

	changes chan Change
	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	subSeq  int
}

// NewSession constructs a trip session in the planning phase.
func NewSession(weather WeatherProvider, places PlaceSearcher, cfg SessionConfig, opts ...SessionOption) *Session {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = defaultRadiusM
	}
	if cfg.Engine.TopK <= 0 {
		cfg.Engine.TopK = defaultTopK
	}
	if cfg.Engine.AdvisorTimeout <= 0 {
		cfg.Engine.AdvisorTimeout = 20 * time.Second
	}
	cfg.Engine.Monitor = cfg.Engine.Monitor.withDefaults()
	if cfg.Profile.BudgetPerDay <= 0 {
		cfg.Profile = domain.DefaultProfile()
	}

	s := &Session{
		weatherProvider: weather,
		placeSearcher:   places,
		logger:          charmLog.New(io.Discard),
		idGen:           func() string { return "" },
		clock:           time.Now,
		cfg:             cfg,
		phase:           PhasePlanning,
		profile:         cfg.Profile.Clone(),
		state:           domain.DefaultUserState(),
		flagged:         map[string]domain.ActivityStatus{},
		changes:         make(chan Change, 32),
		subs:            map[int]chan Snapshot{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Config returns the session settings.
func (s *Session) Config() SessionConfig {
	cfg := s.cfg
	cfg.Profile = cfg.Profile.Clone()
	return cfg
}

// Wait blocks until background replans started by RequestReplan finish.
func (s *Session) Wait() {
	s.pending.Wait()
}

// appendLogLocked records one decision log entry. Callers hold s.mu.
func (s *Session) appendLogLocked(kind domain.LogType, title, message string, decorate ...func(domain.DecisionLogEntry) domain.DecisionLogEntry) domain.DecisionLogEntry {
	s.entrySeq++
	id := s.idGen()
	if id == "" {
		id = "entry-" + strconv.Itoa(s.entrySeq)
	}
	entry, err := domain.NewDecisionLogEntry(id, kind, title, message, s.clock())
	if err != nil {
		s.logger.Error("decision log entry rejected", "title", title, "err", err)
		return domain.DecisionLogEntry{}
	}
	for _, fn := range decorate {
		entry = fn(entry)
	}
	s.log.Append(entry)
	return entry
}

func withDetail(detail string) func(domain.DecisionLogEntry) domain.DecisionLogEntry {
	return func(e domain.DecisionLogEntry) domain.DecisionLogEntry {
		return e.WithDetail(detail)
	}
}

func withRules(rules ...string) func(domain.DecisionLogEntry) domain.DecisionLogEntry {
	return func(e domain.DecisionLogEntry) domain.DecisionLogEntry {
		return e.WithRules(rules...)
	}
}

// touchLocked records a change to the plan or its active disruption. Callers
// hold s.mu.
func (s *Session) touchLocked() {
	s.planRev++
}

// clearDisruptionLocked drops the active disruption batch and its flags
// without restoring flagged statuses. Callers hold s.mu.
func (s *Session) clearDisruptionLocked() {
	s.disruption = nil
	s.batch = nil
	s.flagged = map[string]domain.ActivityStatus{}
}

// settlePhaseLocked derives the phase from the itinerary and reports whether
// it changed. Callers hold s.mu.
func (s *Session) settlePhaseLocked() bool {
	next := PhaseActive
	switch {
	case s.itinerary.Empty():
		next = PhasePlanning
	case allDone(s.itinerary.Activities):
		next = PhaseDone
	}
	if next == s.phase {
		return false
	}
	s.phase = next
	return true
}

func allDone(activities []domain.Activity) bool {
	for _, a := range activities {
		if a.Status != domain.StatusDone {
			return false
		}
	}
	return true
}

// promoteNextLocked marks the first upcoming activity active when nothing is.
func (s *Session) promoteNextLocked() {
	if _, ok := s.itinerary.Active(); ok {
		return
	}
	for idx, a := range s.itinerary.Activities {
		if a.Status == domain.StatusUpcoming {
			s.itinerary.Activities[idx].Status = domain.StatusActive
			return
		}
	}
}

func (s *Session) requirePhase(want Phase) error {
	if s.phase != want {
		return fmt.Errorf("phase %s: %w", s.phase, ErrTripNotActive)
	}
	return nil
}
