package app

import "github.com/hylla/draip/internal/domain"

// ChangeKind classifies session change notifications.
type ChangeKind string

// ChangeBuilt and related constants name session changes.
const (
	ChangeBuilt      ChangeKind = "built"
	ChangeStructural ChangeKind = "structural"
	ChangePhase      ChangeKind = "phase"
	ChangeReset      ChangeKind = "reset"
)

// Change is one itinerary or phase transition.
type Change struct {
	Kind    ChangeKind
	Phase   Phase
	Version int
}

// Snapshot is a read-only deep copy of the session state.
type Snapshot struct {
	Phase          Phase                     `json:"phase"`
	Location       Location                  `json:"location"`
	Profile        domain.UserProfile        `json:"profile"`
	State          domain.UserState          `json:"state"`
	Itinerary      domain.Itinerary          `json:"itinerary"`
	Disruption     *domain.Disruption        `json:"disruption,omitempty"`
	Weather        *domain.Weather           `json:"weather,omitempty"`
	WeatherError   string                    `json:"weather_error,omitempty"`
	PlacesError    string                    `json:"places_error,omitempty"`
	CandidateCount int                       `json:"candidate_count"`
	Log            []domain.DecisionLogEntry `json:"log"`
	Metrics        domain.RLMetrics          `json:"metrics"`
	Explanation    *Explanation              `json:"explanation,omitempty"`
	Evaluating     bool                      `json:"evaluating"`
	Replanning     bool                      `json:"replanning"`
}

// Snapshot returns a deep copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:          s.phase,
		Location:       s.cfg.Location,
		Profile:        s.profile.Clone(),
		State:          s.state,
		Itinerary:      s.itinerary.Clone(),
		WeatherError:   s.weatherErr,
		PlacesError:    s.placesErr,
		CandidateCount: len(s.candidates),
		Log:            s.log.Entries(),
		Metrics:        s.metrics.Clone(),
		Evaluating:     s.evaluating.Load(),
		Replanning:     s.replanning.Load(),
	}
	if s.disruption != nil {
		d := s.disruption.Clone()
		snap.Disruption = &d
	}
	if s.weather != nil {
		w := s.weather.Clone()
		snap.Weather = &w
	}
	if s.explanation != nil {
		e := s.explanation.Clone()
		snap.Explanation = &e
	}
	return snap
}

// Candidates returns a copy of the current place pool.
func (s *Session) Candidates() []domain.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Candidate(nil), s.candidates...)
}

// Changes exposes itinerary and phase transitions for a single consumer, the
// scheduler. Notifications are dropped when the buffer is full.
func (s *Session) Changes() <-chan Change {
	return s.changes
}

// Subscribe returns a channel that receives the latest snapshot after every
// state change, and a function that ends the subscription.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.subsMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once bool
	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
}

// publishLocked emits change (when non-empty) and fans the current snapshot
// out to subscribers. Callers hold s.mu.
func (s *Session) publishLocked(changes ...Change) {
	for _, change := range changes {
		change.Phase = s.phase
		change.Version = s.itinerary.Version
		select {
		case s.changes <- change:
		default:
			s.logger.Warn("change notification dropped", "kind", change.Kind)
		}
	}
	snap := s.snapshotLocked()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
