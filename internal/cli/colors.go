// ABOUTME: Colour palette for the CLI and TUI
// ABOUTME: Airflow theme shared by help, status and summary output
package cli

import "github.com/charmbracelet/lipgloss"

// Airflow colour palette, cool to hot
var (
	Ice    = lipgloss.Color("#7FDBFF")
	Breeze = lipgloss.Color("#39CCCC")
	Warm   = lipgloss.Color("#FF851B")
	Hot    = lipgloss.Color("#FF4136")

	// Accent colours
	Steel = lipgloss.Color("#8899AA")
)
