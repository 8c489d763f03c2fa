// ABOUTME: Bubbletea model for the fan TUI
// ABOUTME: Shows load, tone and mode; maps keys to control commands
package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Keyboard steps
const (
	FrequencyStep = 50.0
	VolumeStep    = 0.01
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	runningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	stoppedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	manualStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	helpStyle = lipgloss.NewStyle().Faint(true)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// Config is the static information the UI displays
type Config struct {
	Title        string
	Backend      string
	MinFrequency float64
	MaxFrequency float64
	MinVolume    float64
	MaxVolume    float64
}

// StatusMsg updates TUI state
type StatusMsg struct {
	CPU             float64
	Frequency       float64
	Volume          float64
	TargetFrequency float64
	TargetVolume    float64
	Running         bool
	Manual          bool
	Err             string
}

// Model represents the TUI state
type Model struct {
	config   Config
	controls *Controls

	status StatusMsg

	cpuBar  progress.Model
	freqBar progress.Model
	volBar  progress.Model

	quitting bool

	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel(config Config, controls *Controls) Model {
	bar := func(from, to string) progress.Model {
		return progress.New(
			progress.WithGradient(from, to),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		)
	}

	return Model{
		config:   config,
		controls: controls,
		status: StatusMsg{
			Frequency: config.MinFrequency,
			Volume:    config.MinVolume,
		},
		cpuBar:  bar("#00AA00", "#FF4500"),
		freqBar: bar("#5A56E0", "#EE6FF8"),
		volBar:  bar("#DC143C", "#FFD700"),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = msg
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.controls != nil {
			signal(m.controls.Quit)
		}
		return m, tea.Quit
	case " ":
		if m.controls != nil {
			signal(m.controls.Toggle)
		}
	case "up", "down":
		step := FrequencyStep
		if msg.String() == "down" {
			step = -step
		}
		f := clamp(m.status.Frequency+step, m.config.MinFrequency, m.config.MaxFrequency)
		m.status.Frequency = f
		m.status.TargetFrequency = f
		m.status.Manual = true
		if m.controls != nil {
			sendValue(m.controls.Frequency, f)
		}
	case "right", "left":
		step := VolumeStep
		if msg.String() == "left" {
			step = -step
		}
		v := clamp(m.status.Volume+step, m.config.MinVolume, m.config.MaxVolume)
		// Keep the percent display free of float noise
		v = math.Round(v*1000) / 1000
		m.status.Volume = v
		m.status.TargetVolume = v
		m.status.Manual = true
		if m.controls != nil {
			sendValue(m.controls.Volume, v)
		}
	case "a":
		m.status.Manual = false
		if m.controls != nil {
			signal(m.controls.Auto)
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	title := m.config.Title
	if title == "" {
		title = "Vigour"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(m.renderState())
	b.WriteString("\n\n")
	b.WriteString(m.renderMeters())
	b.WriteString("\n")

	if m.status.Err != "" {
		b.WriteString("\n")
		b.WriteString(stoppedStyle.Render("Error: "))
		b.WriteString(valueStyle.Render(m.status.Err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:start/stop  ↑/↓:frequency  ←/→:volume  a:auto  q:quit"))

	return boxStyle.Render(b.String())
}

// renderState renders running state and mode
func (m Model) renderState() string {
	state := stoppedStyle.Render("stopped")
	if m.status.Running {
		state = runningStyle.Render("running")
	}

	mode := valueStyle.Render("auto")
	if m.status.Manual {
		mode = manualStyle.Render("manual")
	}

	return headerStyle.Render("Stream: ") + state +
		headerStyle.Render("   Mode: ") + mode +
		headerStyle.Render("   Output: ") + valueStyle.Render(m.config.Backend)
}

// renderMeters renders CPU, frequency and volume bars
func (m Model) renderMeters() string {
	freqFraction := fraction(m.status.Frequency, m.config.MinFrequency, m.config.MaxFrequency)
	volFraction := fraction(m.status.Volume, m.config.MinVolume, m.config.MaxVolume)

	rows := []string{
		fmt.Sprintf("%s %s %s",
			headerStyle.Render("CPU       "),
			m.cpuBar.ViewAs(m.status.CPU/100),
			valueStyle.Render(fmt.Sprintf("%5.1f%%", m.status.CPU))),
		fmt.Sprintf("%s %s %s",
			headerStyle.Render("Frequency "),
			m.freqBar.ViewAs(freqFraction),
			valueStyle.Render(fmt.Sprintf("%6.0f Hz (%0.f-%0.f)", m.status.Frequency, m.config.MinFrequency, m.config.MaxFrequency))),
		fmt.Sprintf("%s %s %s",
			headerStyle.Render("Volume    "),
			m.volBar.ViewAs(volFraction),
			valueStyle.Render(fmt.Sprintf("%5.1f%% (%0.f-%0.f%%)", m.status.Volume*100, m.config.MinVolume*100, m.config.MaxVolume*100))),
	}
	return strings.Join(rows, "\n")
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// fraction places v within [lo, hi] as 0..1
func fraction(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}
