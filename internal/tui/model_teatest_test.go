package tui

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/exp/teatest/v2"

	"github.com/hylla/draip/internal/adapters/fixture"
	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/app"
)

func newFixtureSession(t *testing.T) *app.Session {
	t.Helper()
	src := fixture.Default()
	loc, err := src.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return app.NewSession(src, src, app.SessionConfig{Location: loc}, app.WithClock(func() time.Time { return now }))
}

func TestModelWithTeatestBuildsPlan(t *testing.T) {
	session := newFixtureSession(t)
	updates, unsubscribe := session.Subscribe()
	t.Cleanup(unsubscribe)

	m := NewModel(common.NewSessionAdapter(session), WithUpdates(updates))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "press b to build")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'b', Text: "b"})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "plan v1")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestModelWithTeatestHelpOverlay(t *testing.T) {
	session := newFixtureSession(t)
	m := NewModel(common.NewSessionAdapter(session))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 40))
	t.Cleanup(func() {
		_ = tm.Quit()
	})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Itinerary")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: '?', Text: "?"})
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "dismiss disruption")
	}, teatest.WithDuration(2*time.Second), teatest.WithCheckInterval(10*time.Millisecond))

	tm.Send(tea.KeyPressMsg{Code: 'q', Text: "q"})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}
