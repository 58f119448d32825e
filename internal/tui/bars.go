// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audiobars/internal/pipeline"
)

// ErrQuit is returned by Render once the user has closed the display.
var ErrQuit = errors.New("display closed")

var barChars = []rune(" ▁▂▃▄▅▆▇█")

var (
	lowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	midStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6C84F"))
	highStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0533D"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7A7A7A"))
)

// Controller is the part of the pipeline the display can adjust.
type Controller interface {
	Bars() int
	SetBars(n int) error
	Stats() pipeline.Stats
}

// BarsOptions configures the terminal display.
type BarsOptions struct {
	Title    string
	Interval time.Duration // Redraw interval.
	MaxBars  int           // Upper bound for the + key.
}

type keyMap struct {
	More key.Binding
	Less key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.More, k.Less, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultKeys = keyMap{
	More: key.NewBinding(key.WithKeys("+", "=", "right"), key.WithHelp("+", "more bars")),
	Less: key.NewBinding(key.WithKeys("-", "_", "left"), key.WithHelp("-", "fewer bars")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// frameBuffer hands the latest frame from the render loop to the UI.
type frameBuffer struct {
	mu   sync.Mutex
	bars []float64
	seq  uint64
}

func (f *frameBuffer) store(bars []float64) {
	f.mu.Lock()
	f.bars = append(f.bars[:0], bars...)
	f.seq++
	f.mu.Unlock()
}

// load copies the frame into dst if it is newer than seen.
func (f *frameBuffer) load(dst []float64, seen uint64) ([]float64, uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq == seen {
		return dst, seen, false
	}
	return append(dst[:0], f.bars...), f.seq, true
}

type tickMsg time.Time

// BarsModel is the Bubble Tea model that draws the bars.
type BarsModel struct {
	frames  *frameBuffer
	ctrl    Controller
	opts    BarsOptions
	keys    keyMap
	help    help.Model
	springs springField
	gain    autoGain
	target  []float64
	heights []float64
	seen    uint64
	status  string
	width   int
	height  int
	ready   bool
}

func newBarsModel(frames *frameBuffer, ctrl Controller, opts BarsOptions) BarsModel {
	fps := 1
	if opts.Interval > 0 {
		fps = max(1, int(time.Second/opts.Interval))
	}
	return BarsModel{
		frames:  frames,
		ctrl:    ctrl,
		opts:    opts,
		keys:    defaultKeys,
		help:    help.New(),
		springs: newSpringField(fps, 6.0, 0.6),
		gain:    newAutoGain(),
	}
}

func (m BarsModel) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the redraw ticker.
func (m BarsModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles input and redraw ticks.
func (m BarsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.More):
			m.adjustBars(1)
		case key.Matches(msg, m.keys.Less):
			m.adjustBars(-1)
		}

	case tickMsg:
		m.advance()
		return m, m.tick()
	}
	return m, nil
}

func (m *BarsModel) adjustBars(delta int) {
	if m.ctrl == nil {
		return
	}
	n := m.ctrl.Bars() + delta
	if n < 1 || (m.opts.MaxBars > 0 && n > m.opts.MaxBars) {
		return
	}
	if err := m.ctrl.SetBars(n); err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

// advance pulls the newest frame and steps the springs one tick.
func (m *BarsModel) advance() {
	var fresh bool
	m.target, m.seen, fresh = m.frames.load(m.target, m.seen)
	if fresh {
		m.gain.update(m.target)
	}

	m.springs.resize(len(m.target))
	if cap(m.heights) < len(m.target) {
		m.heights = make([]float64, len(m.target))
	}
	m.heights = m.heights[:len(m.target)]
	for i, v := range m.target {
		m.heights[i] = min(max(m.springs.step(i, m.gain.scale(v)), 0), 1)
	}
}

// View renders the bars, a header and the key help.
func (m BarsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := titleStyle.Render(m.opts.Title)
	if m.ctrl != nil {
		stats := m.ctrl.Stats()
		header += infoStyle.Render(fmt.Sprintf("  %d bars · analysis %.1f/s · frame %d",
			stats.Bars, stats.AnalysisRate, stats.Published))
	}

	footer := m.help.View(m.keys)
	if m.status != "" {
		footer += "  " + highStyle.Render(m.status)
	}

	rows := max(1, m.height-4)
	return fmt.Sprintf("%s\n\n%s\n%s", header, renderBars(m.heights, rows, m.width), footer)
}

// renderBars draws heights in [0, 1] as vertical bars filling rows lines
// of at most width cells.
func renderBars(heights []float64, rows, width int) string {
	if len(heights) == 0 {
		return dimStyle.Render("waiting for audio...") + strings.Repeat("\n", rows)
	}

	colWidth := max(1, width/len(heights)-1)
	gap := 1
	if width/len(heights) < 2 {
		gap = 0
	}

	var sb strings.Builder
	var line strings.Builder
	for row := range rows {
		line.Reset()
		for b, h := range heights {
			if b > 0 && gap > 0 {
				line.WriteByte(' ')
			}
			fill := h*float64(rows) - float64(rows-1-row)
			ch := ' '
			switch {
			case fill >= 1:
				ch = barChars[len(barChars)-1]
			case fill > 0:
				ch = barChars[int(fill*float64(len(barChars)-1))]
			}
			for range colWidth {
				line.WriteRune(ch)
			}
		}
		sb.WriteString(rowStyle(row, rows).Render(line.String()))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// rowStyle colours the top third red and the middle third yellow.
func rowStyle(row, rows int) lipgloss.Style {
	switch frac := float64(row) / float64(rows); {
	case frac < 1.0/3:
		return highStyle
	case frac < 2.0/3:
		return midStyle
	}
	return lowStyle
}

// BarsSink renders frames in the terminal.
type BarsSink struct {
	frames  *frameBuffer
	opts    BarsOptions
	program *tea.Program
	done    chan struct{}
	err     error

	startOnce sync.Once
	closeOnce sync.Once
}

// NewBarsSink creates a terminal sink. Call Start once the controller
// exists.
func NewBarsSink(opts BarsOptions) *BarsSink {
	if opts.Interval <= 0 {
		opts.Interval = 16 * time.Millisecond
	}
	if opts.Title == "" {
		opts.Title = "audiobars"
	}
	return &BarsSink{
		frames: &frameBuffer{},
		opts:   opts,
		done:   make(chan struct{}),
	}
}

// Start runs the display in the background. Done is closed when it exits.
func (s *BarsSink) Start(ctrl Controller, progOpts ...tea.ProgramOption) {
	s.startOnce.Do(func() {
		select {
		case <-s.done:
			return
		default:
		}
		progOpts = append([]tea.ProgramOption{tea.WithAltScreen()}, progOpts...)
		s.program = tea.NewProgram(newBarsModel(s.frames, ctrl, s.opts), progOpts...)
		go func() {
			defer close(s.done)
			if _, err := s.program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				s.err = err
			}
		}()
	})
}

// Done is closed when the display exits.
func (s *BarsSink) Done() <-chan struct{} { return s.done }

// Render stores the frame for the next redraw.
func (s *BarsSink) Render(bars []float64) error {
	select {
	case <-s.done:
		return ErrQuit
	default:
	}
	s.frames.store(bars)
	return nil
}

// Close stops the display and waits for the terminal to be restored.
func (s *BarsSink) Close() error {
	s.closeOnce.Do(func() {
		if s.program == nil {
			close(s.done)
			return
		}
		s.program.Quit()
		<-s.done
	})
	return s.err
}
