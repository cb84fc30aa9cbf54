package watchcmder

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// scripted answers state with the next queued item set and records every
// other request.
type scripted struct {
	states []map[string]any
	sent   []*protocol.Request
	err    error
}

func (s *scripted) Do(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	if req.Kind != protocol.KindState {
		s.sent = append(s.sent, req)
		return protocol.OK(), nil
	}
	resp := protocol.OK()
	if len(s.states) > 0 {
		for k, v := range s.states[0] {
			resp.With(k, v)
		}
		s.states = s.states[1:]
	}
	return resp, nil
}

func step(m model, msg tea.Msg) (model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

var _ = Describe("Watch Model", func() {
	var doer *scripted

	BeforeEach(func() {
		doer = &scripted{states: []map[string]any{
			{
				"state": json.Number("1"), "volume": json.Number("50"), "speed": json.Number("100"),
				"gapless": false, "mode": "sequential", "id": json.Number("1"), "path": "rock/a.mp3",
				"elapsed": json.Number("30"), "duration": json.Number("120"),
			},
			{"state": json.Number("0"), "id": nil, "path": nil, "elapsed": nil, "duration": nil},
		}}
	})

	It("merges state diffs and renders them", func() {
		m := newModel(doer, time.Second)

		m, cmd := step(m, m.Init()())
		Expect(cmd).NotTo(BeNil())
		view := m.View()
		Expect(view).To(ContainSubstring("playing  rock/a.mp3"))
		Expect(view).To(ContainSubstring("0:30 / 2:00"))
		Expect(view).To(ContainSubstring("sequential"))

		m, _ = step(m, m.fetch())
		view = m.View()
		Expect(view).To(ContainSubstring("stopped"))
		Expect(view).NotTo(ContainSubstring("rock/a.mp3"))
		Expect(view).NotTo(ContainSubstring("2:00"))
		Expect(m.items).To(HaveKeyWithValue("mode", "sequential"))
	})

	It("truncates long paths to the window width", func() {
		doer.states[0]["path"] = "a/very/long/path/that/does/not/fit/on/one/narrow/line.mp3"
		m := newModel(doer, time.Second)
		m, _ = step(m, tea.WindowSizeMsg{Width: 20, Height: 10})
		m, _ = step(m, m.fetch())
		Expect(m.View()).To(ContainSubstring("…"))
	})

	It("sends requests for keys and then refreshes", func() {
		m := newModel(doer, time.Second)

		_, cmd := step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
		Expect(cmd).NotTo(BeNil())
		msg := cmd()
		Expect(msg).To(Equal(actionMsg{kind: protocol.KindChangeVol}))
		Expect(doer.sent).To(HaveLen(1))
		Expect(*doer.sent[0].Delta).To(Equal(5))

		_, cmd = step(m, msg)
		Expect(cmd()).To(BeAssignableToTypeOf(stateMsg{}))
	})

	It("quits on q", func() {
		m := newModel(doer, time.Second)
		_, cmd := step(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		Expect(cmd()).To(Equal(tea.Quit()))
	})

	It("shows transport errors and forgets the merged state", func() {
		m := newModel(doer, time.Second)
		m, _ = step(m, m.fetch())
		Expect(m.items).To(HaveKey("path"))

		doer.err = errors.New("connection refused")
		m, _ = step(m, m.fetch())
		Expect(m.View()).To(ContainSubstring("connection refused"))
		Expect(m.items).To(BeEmpty())
	})
})
