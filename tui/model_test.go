package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-metronome/audio"
	"go-metronome/pattern"
	"go-metronome/sequencer"
)

type stillClock struct{}

func (stillClock) Now() float64 { return 0 }

type nullSink struct{}

func (nullSink) Schedule(audio.Event, func(audio.Handle)) (audio.Handle, error) {
	return nil, audio.ErrUnknownSound
}

func newTestModel(status Status) (Model, *sequencer.Broker) {
	store, err := pattern.NewStore(pattern.DefaultLimits, pattern.Default())
	if err != nil {
		panic(err)
	}
	manager := sequencer.NewManager(store, stillClock{}, nullSink{}, sequencer.DefaultOptions())
	broker := sequencer.NewBroker()
	return NewModel(manager, sequencer.NewWorker(manager, broker), nil, nil, status), broker
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEscape}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestKeysEditPattern(t *testing.T) {
	m, _ := newTestModel(Status{})

	m = press(m, "l", "k", "k", "x")
	if got := m.Manager.Pattern().String(); got != "Xooo Xo.o" {
		t.Errorf("pattern = %q", got)
	}

	m = press(m, "a", "l", "l", "l")
	if m.cursorBeat != 2 {
		t.Errorf("cursor beat = %d, want clamped to 2", m.cursorBeat)
	}
	m = press(m, "[", "[", "[", "[", "[")
	if got := m.Manager.Pattern().String(); got != "Xooo Xo.o X" {
		t.Errorf("pattern = %q", got)
	}
	if m.cursorTick != 0 {
		t.Errorf("cursor tick = %d after shrinking beat", m.cursorTick)
	}
}

func TestKeysTempo(t *testing.T) {
	m, broker := newTestModel(Status{})
	m = press(m, "+", "+", "-", "+")
	if m.Manager.Tempo() != 62 {
		t.Errorf("tempo = %d", m.Manager.Tempo())
	}

	m = press(m, "K")
	msg := <-broker.ToWorker
	if u, ok := msg.(sequencer.UpdateTempoMsg); !ok || u.Tempo != 72 {
		t.Errorf("worker got %#v", msg)
	}
}

func TestSpaceAsksWorkerToPlay(t *testing.T) {
	m, broker := newTestModel(Status{})
	press(m, "space")
	if msg := <-broker.ToWorker; msg != (sequencer.PlayMsg{}) {
		t.Errorf("worker got %#v", msg)
	}
}

func TestViewHeader(t *testing.T) {
	m, _ := newTestModel(Status{NoAudio: true})
	view := m.View()
	for _, want := range []string{"STOP", "60bpm", "NO AUDIO", "Xooo Xooo"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = newTestModel(Status{})
	if strings.Contains(m.View(), "NO AUDIO") {
		t.Error("NO AUDIO shown with a working backend")
	}
}

func TestFlashIgnoredWhenStopped(t *testing.T) {
	m, _ := newTestModel(Status{})
	next, cmd := m.Update(flashOnMsg{pulse: sequencer.Pulse{Beat: 1}})
	if next.(Model).flash || cmd != nil {
		t.Error("flash lit while stopped")
	}
}

func TestFlashOffMatchesID(t *testing.T) {
	m, _ := newTestModel(Status{})
	m.flash, m.flashID = true, 3

	next, _ := m.Update(flashOffMsg{id: 2})
	if !next.(Model).flash {
		t.Error("stale flash-off cleared a newer flash")
	}
	next, _ = m.Update(flashOffMsg{id: 3})
	if next.(Model).flash {
		t.Error("flash stayed lit")
	}
}

func TestWorkerErrorShown(t *testing.T) {
	m, _ := newTestModel(Status{})
	next, _ := m.Update(WorkerMsg{Msg: sequencer.ErrorMsg{Err: audio.ErrNoAudio}})
	m = next.(Model)
	if !strings.Contains(m.View(), audio.ErrNoAudio.Error()) {
		t.Error("error not rendered")
	}
	m = press(m, "esc")
	if m.err != nil {
		t.Error("esc did not clear the error")
	}
}

func TestHelpShowsTickLegend(t *testing.T) {
	m, _ := newTestModel(Status{})
	if strings.Contains(m.View(), "accent - loud click") {
		t.Error("legend shown before ?")
	}
	m = press(m, "?")
	view := m.View()
	for _, want := range []string{"accent - loud click", "normal - soft click", "muted - silent", "Transport"} {
		if !strings.Contains(view, want) {
			t.Errorf("help view missing %q", want)
		}
	}
}
