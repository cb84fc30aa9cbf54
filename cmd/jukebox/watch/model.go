package watchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// Doer sends one request. *client.Client and *client.Redialer implement it.
type Doer interface {
	Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

type (
	tickMsg  time.Time
	stateMsg struct {
		items map[string]any
		err   error
	}
	actionMsg struct {
		kind protocol.Kind
		err  error
	}
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	labelStyle = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle  = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

var stateNames = map[int]string{0: "stopped", 1: "playing", 2: "paused"}

// model polls the daemon's state and renders it. The daemon only sends
// items that changed since the last poll, so they are merged into items.
type model struct {
	doer     Doer
	interval time.Duration
	timeout  time.Duration

	items    map[string]any
	err      error
	width    int
	progress progress.Model
}

func newModel(doer Doer, interval time.Duration) model {
	return model{
		doer:     doer,
		interval: interval,
		timeout:  2 * time.Second,
		items:    map[string]any{},
		width:    80,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(50), progress.WithoutPercentage()),
	}
}

func (m model) Init() tea.Cmd {
	return m.fetch
}

func (m model) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	resp, err := m.doer.Do(ctx, &protocol.Request{Kind: protocol.KindState})
	if err != nil {
		return stateMsg{err: err}
	}
	if !resp.IsOK() {
		return stateMsg{err: fmt.Errorf("%s", resp.Reason)}
	}
	return stateMsg{items: resp.Items}
}

func (m model) send(req *protocol.Request) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		resp, err := m.doer.Do(ctx, req)
		if err == nil && !resp.IsOK() {
			err = fmt.Errorf("%s: %s", req.Kind, resp.Reason)
		}
		return actionMsg{kind: req.Kind, err: err}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, min(msg.Width-4, 60))
		return m, nil

	case tea.KeyMsg:
		return m, m.key(msg.String())

	case tickMsg:
		return m, m.fetch

	case stateMsg:
		m.err = msg.err
		if msg.err != nil {
			// The connection is redialed and its first state is a full one.
			m.items = map[string]any{}
		}
		for k, v := range msg.items {
			if v == nil {
				delete(m.items, k)
				continue
			}
			m.items[k] = v
		}
		return m, m.tick()

	case actionMsg:
		m.err = msg.err
		return m, m.fetch
	}
	return m, nil
}

func (m model) key(k string) tea.Cmd {
	delta := func(d int) *int { return &d }
	switch k {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case " ":
		return m.send(&protocol.Request{Kind: protocol.KindToggle})
	case "n":
		return m.send(&protocol.Request{Kind: protocol.KindNext})
	case "p":
		return m.send(&protocol.Request{Kind: protocol.KindPrevious})
	case "s":
		return m.send(&protocol.Request{Kind: protocol.KindStop})
	case "+", "=":
		return m.send(&protocol.Request{Kind: protocol.KindChangeVol, Delta: delta(5)})
	case "-":
		return m.send(&protocol.Request{Kind: protocol.KindChangeVol, Delta: delta(-5)})
	case "right":
		return m.send(&protocol.Request{Kind: protocol.KindSeek, Seconds: delta(10)})
	case "left":
		return m.send(&protocol.Request{Kind: protocol.KindSeek, Seconds: delta(-10)})
	}
	return nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("jukebox"))
	b.WriteString("\n\n")

	state := stateNames[m.int("state")]
	if path, ok := m.items["path"].(string); ok {
		line := fmt.Sprintf("%s  %s", state, path)
		b.WriteString(ansi.Truncate(line, max(m.width, 10), "…"))
	} else {
		b.WriteString(state)
	}
	b.WriteString("\n")

	if _, ok := m.items["duration"]; ok {
		elapsed, duration := m.int("elapsed"), m.int("duration")
		ratio := 0.0
		if duration > 0 {
			ratio = float64(elapsed) / float64(duration)
		}
		fmt.Fprintf(&b, "%s %s / %s\n", m.progress.ViewAs(ratio), clock(elapsed), clock(duration))
	}

	fmt.Fprintf(&b, "%s %d%%  %s %d%%  %s %v  %s %v\n",
		labelStyle.Render("volume"), m.int("volume"),
		labelStyle.Render("speed"), m.int("speed"),
		labelStyle.Render("mode"), m.items["mode"],
		labelStyle.Render("gapless"), m.items["gapless"],
	)

	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("space toggle • n/p next/previous • s stop • +/- volume • ←/→ seek • q quit"))
	return b.String()
}

// int reads a numeric item, whichever way it was decoded.
func (m model) int(key string) int {
	switch v := m.items[key].(type) {
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func clock(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
