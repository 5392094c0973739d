package domain

import (
	"strings"
	"time"
)

// maxDecisionLogEntries bounds the decision log.
const maxDecisionLogEntries = 50

// LogType classifies decision log entries.
type LogType string

const (
	LogSystem  LogType = "system"
	LogAI      LogType = "ai"
	LogUser    LogType = "user"
	LogWarning LogType = "warning"
	LogReplan  LogType = "replan"
	LogError   LogType = "error"
)

// DecisionLogEntry is one immutable record of an engine transition.
type DecisionLogEntry struct {
	ID        string    `json:"id"`
	Type      LogType   `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Rules     []string  `json:"rules,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDecisionLogEntry builds one entry; the title defaults to the type.
func NewDecisionLogEntry(id string, kind LogType, title, message string, now time.Time) (DecisionLogEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DecisionLogEntry{}, ErrInvalidID
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.ToUpper(string(kind))
	}
	return DecisionLogEntry{
		ID:        id,
		Type:      kind,
		Title:     title,
		Message:   strings.TrimSpace(message),
		Timestamp: now.UTC(),
	}, nil
}

// WithDetail returns e with detail text.
func (e DecisionLogEntry) WithDetail(detail string) DecisionLogEntry {
	e.Detail = strings.TrimSpace(detail)
	return e
}

// WithRules returns e tagged with rules.
func (e DecisionLogEntry) WithRules(rules ...string) DecisionLogEntry {
	e.Rules = append([]string(nil), rules...)
	return e
}

// DecisionLog keeps the most recent entries in chronological order.
type DecisionLog struct {
	entries []DecisionLogEntry
}

// Append adds an entry, evicting the oldest beyond the bound.
func (l *DecisionLog) Append(entry DecisionLogEntry) {
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - maxDecisionLogEntries; over > 0 {
		l.entries = append([]DecisionLogEntry(nil), l.entries[over:]...)
	}
}

// Entries returns a copy of the log, oldest first.
func (l DecisionLog) Entries() []DecisionLogEntry {
	out := make([]DecisionLogEntry, 0, len(l.entries))
	for _, e := range l.entries {
		e.Rules = append([]string(nil), e.Rules...)
		out = append(out, e)
	}
	return out
}

// Len returns the number of retained entries.
func (l DecisionLog) Len() int {
	return len(l.entries)
}
