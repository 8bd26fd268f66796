package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-metronome/audio"
	"go-metronome/midi"
	"go-metronome/pattern"
	"go-metronome/sequencer"
	"go-metronome/theme"
	"go-metronome/widgets"
)

// FlashDuration is how long a beat indicator stays lit
const FlashDuration = 150 * time.Millisecond

// Status is the startup state the header reports
type Status struct {
	NoAudio    bool
	Bank       *audio.Bank // may be nil
	SoundCount int         // sounds expected in Bank
	MIDIOut    string      // click output port, empty when off
}

type Model struct {
	Manager   *sequencer.Manager
	Worker    *sequencer.Worker
	DeviceMgr *midi.DeviceManager // may be nil
	Theme     *theme.Theme
	Status    Status

	cursorBeat int
	cursorTick int

	flash     bool
	flashBeat int
	flashDown bool
	flashID   int

	tapIn    string
	lastTap  int
	err      error
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

type PulseMsg sequencer.Pulse

type WorkerMsg struct{ Msg any }

type DeviceEventMsg midi.DeviceEvent

type flashOnMsg struct {
	pulse sequencer.Pulse
}

type flashOffMsg struct {
	id int
}

func NewModel(manager *sequencer.Manager, worker *sequencer.Worker, deviceMgr *midi.DeviceManager, th *theme.Theme, status Status) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Manager:   manager,
		Worker:    worker,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Status:    status,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForPulses(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		return PulseMsg(<-manager.Pulses)
	}
}

func ListenForWorker(worker *sequencer.Worker) tea.Cmd {
	return func() tea.Msg {
		return WorkerMsg{Msg: <-worker.Events()}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		ListenForUpdates(m.Manager),
		ListenForPulses(m.Manager),
		ListenForWorker(m.Worker),
	}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		m.clampCursor()
		return m, ListenForUpdates(m.Manager)

	case PulseMsg:
		// light the indicator when the tick is heard, not when it was scheduled
		p := sequencer.Pulse(msg)
		delay := time.Duration((p.FireTime - m.Manager.Clock().Now()) * float64(time.Second))
		return m, tea.Batch(
			ListenForPulses(m.Manager),
			tea.Tick(delay, func(time.Time) tea.Msg { return flashOnMsg{pulse: p} }),
		)

	case flashOnMsg:
		if !m.Manager.IsPlaying() {
			return m, nil
		}
		m.flashID++
		m.flash = true
		m.flashBeat = msg.pulse.Beat
		m.flashDown = msg.pulse.Downbeat
		id := m.flashID
		return m, tea.Tick(FlashDuration, func(time.Time) tea.Msg { return flashOffMsg{id: id} })

	case flashOffMsg:
		if msg.id == m.flashID {
			m.flash = false
		}

	case WorkerMsg:
		switch ev := msg.Msg.(type) {
		case sequencer.PlaybackStatus:
			if !ev.Playing {
				m.flash = false
			}
		case sequencer.ErrorMsg:
			m.err = ev.Err
		}
		return m, ListenForWorker(m.Worker)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.tapIn = event.ID
			manager := m.Manager
			go func() {
				for range event.Controller.NoteEvents() {
					manager.RecordTap()
				}
			}()
		case midi.DeviceDisconnected:
			if m.tapIn == event.ID {
				m.tapIn = ""
			}
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case " ", "space", "p":
		if m.Manager.IsPlaying() {
			m.Worker.Stop()
		} else {
			m.Worker.Play(0)
		}

	case "+", "=":
		m.Manager.NudgeTempo(1)
	case "-", "_":
		m.Manager.NudgeTempo(-1)
	case "K":
		m.Worker.UpdateTempo(m.Manager.Tempo() + 10)
	case "J":
		m.Worker.UpdateTempo(m.Manager.Tempo() - 10)

	case "t":
		if bpm, ok := m.Manager.RecordTap(); ok {
			m.lastTap = bpm
		}

	case "h", "left":
		if m.cursorBeat > 0 {
			m.cursorBeat--
		}
	case "l", "right":
		m.cursorBeat++
	case "k", "up":
		m.cursorTick++
	case "j", "down":
		if m.cursorTick > 0 {
			m.cursorTick--
		}

	case "enter", "x":
		m.Manager.CycleTick(m.cursorBeat, m.cursorTick)
	case "a":
		m.Manager.AddBeat()
	case "A", "d":
		m.Manager.RemoveBeat()
	case "]":
		m.Manager.AddTick(m.cursorBeat)
	case "[":
		m.Manager.RemoveTick(m.cursorBeat)

	case "?":
		m.showHelp = !m.showHelp
	case "esc":
		m.err = nil
	}

	m.clampCursor()
	return m, nil
}

// clampCursor keeps the edit cursor inside the current pattern
func (m *Model) clampCursor() {
	p := m.Manager.Pattern()
	if p.Len() == 0 {
		m.cursorBeat, m.cursorTick = 0, 0
		return
	}
	m.cursorBeat = clamp(m.cursorBeat, 0, p.Len()-1)
	m.cursorTick = clamp(m.cursorTick, 0, p.TicksInBeat(m.cursorBeat)-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playing := m.Manager.IsPlaying()
	bpm := m.Manager.Tempo()
	bounds := m.Manager.Bounds()
	p := m.Manager.Pattern()

	playState := "STOP"
	if playing {
		playState = "PLAY"
	}
	header := headerStyle.Render(fmt.Sprintf("go-metronome  %s  %3dbpm  %s",
		playState, bpm, widgets.RenderMeter(bpm, bounds.Min, bounds.Max, 20)))
	if m.Status.NoAudio {
		header += "  " + warnStyle.Render("NO AUDIO")
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.renderFlash(p))
	out.WriteString("\n\n")
	out.WriteString(m.renderPattern(p, playing))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("pattern: " + p.String()))
	out.WriteString("\n")

	if status := m.statusLine(); status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(status))
	}
	if m.err != nil {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render("error: " + m.err.Error()))
	}

	out.WriteString("\n\n")
	if m.showHelp {
		out.WriteString(m.renderLegend())
		out.WriteString("\n\n")
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))
	} else {
		out.WriteString(dimStyle.Render("space:play  +/-:tempo  t:tap  hjkl:move  x:cycle  a/A:beat  ]/[:tick  ?:help  q:quit"))
	}
	return out.String()
}

func (m Model) renderFlash(p pattern.Pattern) string {
	pads := make([]widgets.Pad, p.Len())
	for b := range pads {
		pads[b] = widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleMuted)), Symbol: m.Theme.Symbols.FlashOff}
		if m.flash && m.flashBeat == b {
			role := theme.RoleActive
			if m.flashDown {
				role = theme.RoleSuccess
			}
			pads[b] = widgets.Pad{Color: [3]uint8(m.Theme.RGB(role)), Symbol: m.Theme.Symbols.FlashOn, Bold: true}
		}
	}
	return widgets.RenderPadRow(pads)
}

// renderPattern draws one group of tick pads per beat with the edit cursor
// marked underneath
func (m Model) renderPattern(p pattern.Pattern, playing bool) string {
	sym := m.Theme.Symbols
	playhead := m.Manager.Cursor()

	var row, marks strings.Builder
	for b := 0; b < p.Len(); b++ {
		if b > 0 {
			row.WriteString("   ")
			marks.WriteString("   ")
		}
		n := p.TicksInBeat(b)
		pads := make([]widgets.Pad, n)
		for t := 0; t < n; t++ {
			tick, _ := p.Tick(b, t)
			pad := widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleFG)), Symbol: sym.Normal}
			switch tick {
			case pattern.Accent:
				pad = widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleAccent)), Symbol: sym.Accent, Bold: true}
			case pattern.Muted:
				pad = widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleMuted)), Symbol: sym.Muted}
			}
			if playing && playhead == (sequencer.Position{Beat: b, Tick: t}) {
				pad.Color = [3]uint8(m.Theme.RGB(theme.RoleSuccess))
			}
			pads[t] = pad

			if t > 0 {
				marks.WriteString(" ")
			}
			if b == m.cursorBeat && t == m.cursorTick {
				marks.WriteRune(sym.Cursor)
			} else {
				marks.WriteString(" ")
			}
		}
		row.WriteString(widgets.RenderPadRow(pads))
	}

	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	return row.String() + "\n" + cursorStyle.Render(marks.String())
}

// renderLegend explains the tick symbols
func (m Model) renderLegend() string {
	sym := m.Theme.Symbols
	lines := []string{
		"Ticks",
		widgets.RenderLegendItem(widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleAccent)), Symbol: sym.Accent, Bold: true}, "accent", "loud click"),
		widgets.RenderLegendItem(widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleFG)), Symbol: sym.Normal}, "normal", "soft click"),
		widgets.RenderLegendItem(widgets.Pad{Color: [3]uint8(m.Theme.RGB(theme.RoleMuted)), Symbol: sym.Muted}, "muted", "silent, still counted"),
	}
	return strings.Join(lines, "\n")
}

func (m Model) statusLine() string {
	var parts []string
	if b := m.Status.Bank; b != nil && b.Loaded() < m.Status.SoundCount {
		parts = append(parts, fmt.Sprintf("sounds %d/%d", b.Loaded(), m.Status.SoundCount))
	}
	if m.lastTap > 0 {
		parts = append(parts, fmt.Sprintf("tap %dbpm", m.lastTap))
	}
	if m.Status.MIDIOut != "" {
		parts = append(parts, "midi out: "+m.Status.MIDIOut)
	}
	if m.tapIn != "" {
		parts = append(parts, "tap in: "+m.tapIn)
	}
	return strings.Join(parts, "  ")
}

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space / p", Desc: "play / stop"},
		{Key: "+ / -", Desc: "tempo +1 / -1"},
		{Key: "K / J", Desc: "tempo +10 / -10"},
		{Key: "t", Desc: "tap tempo"},
	}},
	{Title: "Pattern", Keys: []widgets.KeyBinding{
		{Key: "h / l", Desc: "previous / next beat"},
		{Key: "j / k", Desc: "previous / next tick"},
		{Key: "x / enter", Desc: "cycle accent, normal, muted"},
		{Key: "a / A", Desc: "add / remove beat"},
		{Key: "] / [", Desc: "add / remove tick"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "esc", Desc: "clear error"},
		{Key: "q", Desc: "quit"},
	}},
}
