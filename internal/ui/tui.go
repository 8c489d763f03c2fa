// ABOUTME: TUI initialization and control
// ABOUTME: Control channels and program construction for the fan UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user commands out of the bubbletea loop. Sends never block;
// a command is dropped when the previous one is still pending.
type Controls struct {
	Toggle    chan struct{}
	Frequency chan float64
	Volume    chan float64
	Auto      chan struct{}
	Quit      chan struct{}
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Toggle:    make(chan struct{}, 1),
		Frequency: make(chan float64, 10),
		Volume:    make(chan float64, 10),
		Auto:      make(chan struct{}, 1),
		Quit:      make(chan struct{}, 1),
	}
}

// NewProgram creates the TUI program. Feed it StatusMsg values with Send.
func NewProgram(config Config, controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(config, controls), tea.WithAltScreen())
}

func signal(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func sendValue(ch chan float64, v float64) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
