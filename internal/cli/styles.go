// ABOUTME: Styled terminal output helpers
// ABOUTME: Banners, errors, key/value lines and render summaries
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Ice)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Steel).
			Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Breeze).
			MarginTop(1)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Breeze)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Hot)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Warm)

	KeyStyle = lipgloss.NewStyle().
			Foreground(Steel)

	ValueStyle = lipgloss.NewStyle().
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Breeze).
			Padding(1, 2)
)

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

// PrintVersion prints version information
func PrintVersion(product, version string) {
	fmt.Fprintln(Out, TitleStyle.Render(product))
	fmt.Fprintf(Out, "%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
}

// PrintError prints an error message to stderr
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(Out, "%s %s\n", WarningStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(Out, "%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintInfo prints a key/value line
func PrintInfo(key, value string) {
	fmt.Fprintf(Out, "%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Fprintln(Out, HeaderStyle.Render(title))
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderSummary renders an offline render report in a box
func RenderSummary(path string, frames, sampleRate int, peak, maxStep float64, took time.Duration) string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render("✓ Render complete"))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"File:     ", path},
		{"Length:   ", FormatDuration(time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second)))},
		{"Frames:   ", fmt.Sprintf("%d @ %d Hz", frames, sampleRate)},
		{"Peak:     ", fmt.Sprintf("%.3f", peak)},
		{"Max step: ", fmt.Sprintf("%.4f", maxStep)},
		{"Took:     ", FormatDuration(took)},
	}
	for i, row := range rows {
		b.WriteString(KeyStyle.Render(row[0]))
		b.WriteString(ValueStyle.Render(row[1]))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}

	return BoxStyle.Render(b.String())
}
