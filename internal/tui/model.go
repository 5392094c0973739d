package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

// Service is the trip surface the dashboard drives.
type Service interface {
	Snapshot(context.Context) (app.Snapshot, error)
	BuildItinerary(context.Context) (domain.Itinerary, error)
	RunAnalysis(context.Context) (common.AnalysisResult, error)
	SendFeedback(context.Context, common.FeedbackRequest) (app.FeedbackResult, error)
	ConfirmActivity(context.Context, string) (domain.Activity, error)
	DeleteActivity(context.Context, string) error
	CompleteActivity(context.Context, string) (domain.Activity, error)
	DismissDisruption(context.Context) error
	RefreshWeather(context.Context) (domain.Weather, error)
}

const (
	defaultActionTimeout     = 30 * time.Second
	defaultLogTail           = 6
	defaultFeedbackIntensity = 0.5
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Model is the live itinerary dashboard.
type Model struct {
	svc           Service
	updates       <-chan app.Snapshot
	copyText      func(string) error
	actionTimeout time.Duration
	logTail       int

	snap   app.Snapshot
	loaded bool
	err    error
	status string

	width  int
	height int
	ready  bool

	cursor          int
	pendingDeleteID string
	showExplanation bool

	help     help.Model
	keys     keyMap
	markdown *markdownRenderer
}

// snapshotMsg carries one explicit snapshot load.
type snapshotMsg struct {
	snap app.Snapshot
	err  error
}

// updateMsg carries one snapshot pushed by the session subscription.
type updateMsg struct {
	snap app.Snapshot
}

type updatesClosedMsg struct{}

// actionMsg reports the outcome of one command.
type actionMsg struct {
	status string
	err    error
	reload bool
}

func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:             svc,
		copyText:        clipboard.WriteAll,
		actionTimeout:   defaultActionTimeout,
		logTail:         defaultLogTail,
		status:          "loading...",
		help:            h,
		keys:            newKeyMap(),
		markdown:        &markdownRenderer{},
		showExplanation: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.updates != nil {
		return tea.Batch(m.loadSnapshot, waitForUpdate(m.updates))
	}
	return m.loadSnapshot
}

func (m Model) loadSnapshot() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.actionTimeout)
	defer cancel()
	snap, err := m.svc.Snapshot(ctx)
	return snapshotMsg{snap: snap, err: err}
}

func waitForUpdate(updates <-chan app.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg{snap: snap}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.applySnapshot(msg.snap)
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case updateMsg:
		m.err = nil
		m.applySnapshot(msg.snap)
		return m, waitForUpdate(m.updates)

	case updatesClosedMsg:
		m.updates = nil
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		} else if msg.status != "" {
			m.status = msg.status
		}
		if msg.reload {
			return m, m.loadSnapshot
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.pendingDeleteID != "" {
			return m.handleConfirmKey(msg)
		}
		return m.handleNormalKey(msg)

	default:
		return m, nil
	}
}

func (m *Model) applySnapshot(snap app.Snapshot) {
	selected := ""
	if a, ok := m.selectedActivity(); ok {
		selected = a.ID
	}
	m.snap = snap
	m.loaded = true
	if idx, ok := snap.Itinerary.IndexOf(selected); ok && selected != "" {
		m.cursor = idx
	}
	m.cursor = clamp(m.cursor, 0, len(snap.Itinerary.Activities)-1)
}

func (m Model) selectedActivity() (domain.Activity, bool) {
	acts := m.snap.Itinerary.Activities
	if m.cursor < 0 || m.cursor >= len(acts) {
		return domain.Activity{}, false
	}
	return acts[m.cursor], true
}

func (m Model) handleConfirmKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.confirmYes):
		id := m.pendingDeleteID
		m.pendingDeleteID = ""
		svc := m.svc
		return m.runAction("deleting...", func(ctx context.Context) (string, error) {
			if err := svc.DeleteActivity(ctx, id); err != nil {
				return "", err
			}
			return "deleted " + id, nil
		})
	case key.Matches(msg, m.keys.confirmCancel), key.Matches(msg, m.keys.quit):
		m.pendingDeleteID = ""
		m.status = "delete canceled"
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) handleNormalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	svc := m.svc
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case msg.String() == "esc":
		m.help.ShowAll = false
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadSnapshot
	case key.Matches(msg, m.keys.moveUp):
		m.cursor = clamp(m.cursor-1, 0, len(m.snap.Itinerary.Activities)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.cursor = clamp(m.cursor+1, 0, len(m.snap.Itinerary.Activities)-1)
		return m, nil
	case key.Matches(msg, m.keys.explain):
		m.showExplanation = !m.showExplanation
		return m, nil

	case key.Matches(msg, m.keys.build):
		return m.runAction("building...", func(ctx context.Context) (string, error) {
			it, err := svc.BuildItinerary(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("built %d activities (v%d)", len(it.Activities), it.Version), nil
		})
	case key.Matches(msg, m.keys.analyze):
		return m.runAction("analyzing...", func(ctx context.Context) (string, error) {
			result, err := svc.RunAnalysis(ctx)
			if err != nil {
				return "", err
			}
			if len(result.Disruptions) == 0 {
				return "no disruptions", nil
			}
			return fmt.Sprintf("%d disruption(s), replanning", len(result.Disruptions)), nil
		})
	case key.Matches(msg, m.keys.complete):
		return m.runAction("completing...", func(ctx context.Context) (string, error) {
			done, err := svc.CompleteActivity(ctx, "")
			if err != nil {
				return "", err
			}
			return "completed " + done.Name, nil
		})
	case key.Matches(msg, m.keys.dismiss):
		return m.runAction("dismissing...", func(ctx context.Context) (string, error) {
			if err := svc.DismissDisruption(ctx); err != nil {
				return "", err
			}
			return "disruption dismissed", nil
		})
	case key.Matches(msg, m.keys.weather):
		return m.runAction("refreshing weather...", func(ctx context.Context) (string, error) {
			w, err := svc.RefreshWeather(ctx)
			if err != nil {
				return "", err
			}
			return "weather: " + weatherLabel(w), nil
		})
	case key.Matches(msg, m.keys.yank):
		text := planText(m.snap)
		write := m.copyText
		return m, func() tea.Msg {
			if err := write(text); err != nil {
				return actionMsg{err: fmt.Errorf("copy plan: %w", err)}
			}
			return actionMsg{status: "plan copied"}
		}
	}

	selected, hasSelection := m.selectedActivity()
	switch {
	case key.Matches(msg, m.keys.confirm):
		if !hasSelection {
			m.status = "no activity selected"
			return m, nil
		}
		return m.runAction("confirming...", func(ctx context.Context) (string, error) {
			a, err := svc.ConfirmActivity(ctx, selected.ID)
			if err != nil {
				return "", err
			}
			return "confirmed " + a.Name, nil
		})
	case key.Matches(msg, m.keys.deleteItem):
		if !hasSelection {
			m.status = "no activity selected"
			return m, nil
		}
		m.pendingDeleteID = selected.ID
		m.status = fmt.Sprintf("delete %s? y/n", selected.Name)
		return m, nil
	}

	if signal, ok := m.keys.feedbackSignal(msg.String()); ok {
		return m.runAction("sending feedback...", func(ctx context.Context) (string, error) {
			result, err := svc.SendFeedback(ctx, common.FeedbackRequest{Signal: signal, Intensity: defaultFeedbackIntensity})
			if err != nil {
				return "", err
			}
			if result.ReplanRequested {
				return "feedback " + signal + ", replanning", nil
			}
			return "feedback " + signal, nil
		})
	}
	return m, nil
}

// runAction runs fn off the update loop and reloads the snapshot afterwards.
func (m Model) runAction(pending string, fn func(context.Context) (string, error)) (tea.Model, tea.Cmd) {
	m.status = pending
	timeout := m.actionTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		status, err := fn(ctx)
		return actionMsg{status: status, err: err, reload: true}
	}
}

func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the full dashboard as one string.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready || !m.loaded {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	warn := lipgloss.Color("203")

	sections := []string{m.renderHeader(accent, muted)}
	if banner := m.renderDisruption(warn); banner != "" {
		sections = append(sections, banner)
	}

	width := max(40, m.width)
	leftWidth := width * 3 / 5
	rightWidth := width - leftWidth - 1
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTimeline(accent, muted, warn, leftWidth),
		" ",
		m.renderSidePanel(accent, muted, rightWidth),
	)
	sections = append(sections, body)
	if m.showExplanation {
		if expl := m.renderExplanation(accent, width); expl != "" {
			sections = append(sections, expl)
		}
	}

	content := strings.Join(sections, "\n")
	statusLine := lipgloss.NewStyle().Foreground(dim).Render(m.status)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	footer := statusLine + "\n" + helpLine
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(footer)))
	}
	return content + "\n" + footer
}

func (m Model) renderHeader(accent, muted color.Color) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Render("draip")
	it := m.snap.Itinerary
	name := it.Theme
	if name == "" {
		name = m.snap.Location.City
	}
	parts := []string{title, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(name)}

	meta := []string{string(m.snap.Phase)}
	if it.Version > 0 {
		meta = append(meta, fmt.Sprintf("plan v%d", it.Version))
	}
	switch {
	case m.snap.Weather != nil:
		meta = append(meta, weatherLabel(*m.snap.Weather))
	case m.snap.WeatherError != "":
		meta = append(meta, "weather unavailable")
	}
	if m.snap.Replanning {
		meta = append(meta, "replanning…")
	} else if m.snap.Evaluating {
		meta = append(meta, "evaluating…")
	}
	parts = append(parts, lipgloss.NewStyle().Foreground(muted).Render(strings.Join(meta, " · ")))
	return strings.Join(parts, "  ")
}

func (m Model) renderDisruption(warn color.Color) string {
	d := m.snap.Disruption
	if d == nil {
		return ""
	}
	text := fmt.Sprintf("⚠ %s  severity %d · %s\n%s\npress a to replan now or z to dismiss", d.Type, d.Severity, d.Urgency, d.Description)
	return lipgloss.NewStyle().
		Foreground(warn).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(warn).
		Padding(0, 1).
		Render(text)
}

func (m Model) renderTimeline(accent, muted, warn color.Color, width int) string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Itinerary")
	acts := m.snap.Itinerary.Activities
	lines := []string{heading}
	if len(acts) == 0 {
		hint := "no itinerary yet · press b to build"
		if m.snap.Phase == app.PhaseDone {
			hint = "day complete · press b to plan again"
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render(hint))
	}
	selected := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	active := lipgloss.NewStyle().Foreground(accent).Bold(true)
	done := lipgloss.NewStyle().Foreground(muted)
	disrupted := lipgloss.NewStyle().Foreground(warn)
	for i, a := range acts {
		cursor := "  "
		if i == m.cursor {
			cursor = "› "
		}
		line := fmt.Sprintf("%s%s %s–%s  %s  %s $%.0f", cursor, statusGlyph(a.Status), a.StartTime, a.EndTime, a.Name, a.Category, a.CostUSD)
		switch {
		case i == m.cursor:
			line = selected.Render(line)
		case a.Status == domain.StatusActive:
			line = active.Render(line)
		case a.Status == domain.StatusDone:
			line = done.Render(line)
		case a.Status == domain.StatusDisrupted:
			line = disrupted.Render(line)
		}
		lines = append(lines, line)
		if i == m.cursor && a.ReasonChosen != "" {
			lines = append(lines, done.Render("    "+a.ReasonChosen))
		}
	}
	if note := m.snap.Itinerary.PlannerNote; note != "" {
		lines = append(lines, "", done.Render(note))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderSidePanel(accent, muted color.Color, width int) string {
	section := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hint := lipgloss.NewStyle().Foreground(muted)
	st := m.snap.State
	barWidth := max(6, min(20, width-18))
	lines := []string{
		section.Render("Traveler"),
		meter("fatigue", st.Fatigue, barWidth),
		meter("stress", st.Stress, barWidth),
		meter("motivation", st.Motivation, barWidth),
		fmt.Sprintf("%-11s $%.0f of $%.0f", "spent", st.BudgetSpent, m.snap.Profile.BudgetPerDay),
		"",
		section.Render("Learning"),
		fmt.Sprintf("%-11s %.2f", "reward", m.snap.Metrics.CumulativeReward),
		fmt.Sprintf("%-11s %d", "replans", m.snap.Metrics.ReplanCount),
	}
	if m.snap.Metrics.LastReplanLatencyMS > 0 {
		lines = append(lines, fmt.Sprintf("%-11s %dms", "latency", m.snap.Metrics.LastReplanLatencyMS))
	}
	if spark := sparkline(m.snap.Metrics.SatisfactionHistory); spark != "" {
		lines = append(lines, fmt.Sprintf("%-11s %s", "satisfied", spark))
	}

	lines = append(lines, "", section.Render("Decisions"))
	entries := m.snap.Log
	if len(entries) > m.logTail {
		entries = entries[len(entries)-m.logTail:]
	}
	if len(entries) == 0 {
		lines = append(lines, hint.Render("nothing yet"))
	}
	for _, e := range entries {
		lines = append(lines, hint.Render(e.Timestamp.Format("15:04")+" "+string(e.Type))+" "+truncate(e.Title+": "+e.Message, max(10, width-14)))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderExplanation(accent color.Color, width int) string {
	e := m.snap.Explanation
	if e == nil {
		return ""
	}
	rendered := m.markdown.render(explanationMarkdown(*e), width-4)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Width(max(0, width-2)).
		Render(rendered)
}

func explanationMarkdown(e app.Explanation) string {
	var b strings.Builder
	b.WriteString("### Why the plan changed\n\n")
	b.WriteString(e.Summary + "\n\n")
	if len(e.Removed) > 0 {
		b.WriteString("**Removed:** " + strings.Join(e.Removed, ", ") + "\n\n")
	}
	if len(e.Added) > 0 {
		b.WriteString("**Added:** " + strings.Join(e.Added, ", ") + "\n\n")
	}
	for _, rule := range e.RulesApplied {
		b.WriteString("- " + rule + "\n")
	}
	fmt.Fprintf(&b, "\nsatisfaction %+.0f · reward %.2f\n", e.SatisfactionDelta, e.RewardScore)
	if e.Detail != "" {
		b.WriteString("\n" + e.Detail + "\n")
	}
	return b.String()
}

// planText formats the itinerary for the clipboard.
func planText(snap app.Snapshot) string {
	it := snap.Itinerary
	if len(it.Activities) == 0 {
		return ""
	}
	var b strings.Builder
	title := it.Theme
	if title == "" {
		title = snap.Location.City
	}
	fmt.Fprintf(&b, "%s (v%d)\n", title, it.Version)
	for _, a := range it.Activities {
		fmt.Fprintf(&b, "%s-%s %s [%s] $%.0f\n", a.StartTime, a.EndTime, a.Name, a.Status, a.CostUSD)
	}
	fmt.Fprintf(&b, "total $%.0f, walking %.1f km\n", it.TotalCostUSD(), it.WalkingKm())
	return b.String()
}

func weatherLabel(w domain.Weather) string {
	return fmt.Sprintf("%s %.0f°C", w.Condition, w.Temperature)
}

func statusGlyph(status domain.ActivityStatus) string {
	switch status {
	case domain.StatusPending:
		return "○"
	case domain.StatusUpcoming:
		return "◦"
	case domain.StatusActive:
		return "▶"
	case domain.StatusDone:
		return "✓"
	case domain.StatusDisrupted:
		return "!"
	default:
		return "?"
	}
}

// meter renders a 0-100 value as a labeled bar.
func meter(label string, value float64, width int) string {
	filled := int(value/100*float64(width) + 0.5)
	filled = clamp(filled, 0, width)
	return fmt.Sprintf("%-11s %s%s %3.0f", label, strings.Repeat("█", filled), strings.Repeat("░", width-filled), value)
}

// sparkline renders 0-100 points as block characters.
func sparkline(points []float64) string {
	if len(points) == 0 {
		return ""
	}
	out := make([]rune, 0, len(points))
	top := len(sparkBlocks) - 1
	for _, p := range points {
		idx := int(p / 100 * float64(top))
		out = append(out, sparkBlocks[clamp(idx, 0, top)])
	}
	return string(out)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines truncates or pads content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}
