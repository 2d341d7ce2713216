package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette — named constants for all ANSI 256 colors used in the CLI.
// These are the single source of truth; never use inline lipgloss.Color literals.
var (
	// ColorCyan is used for identifiable nouns: target names, file paths.
	ColorCyan = lipgloss.Color("14")

	// ColorYellow is used for warnings and position markers (line:col).
	ColorYellow = lipgloss.Color("220")

	colorRed        = lipgloss.Color("196")
	colorGreenCheck = lipgloss.Color("10")
)

// Semantic styles — map domain concepts to visual presentation.
var (
	// styleNoun styles identifiable nouns (target names, paths).
	styleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// styleDim styles structural chrome (scope prefixes, separators, timestamps).
	styleDim = lipgloss.NewStyle().Faint(true)
)

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(colorGreenCheck).Render("✔")
	return check + " " + msg
}

// FormatNotice renders a yellow arrow with a message for action-required output.
func FormatNotice(msg string) string {
	arrow := lipgloss.NewStyle().Foreground(ColorYellow).Render("▶")
	return arrow + " " + msg
}

// FormatFailed renders a bold red cross with a message.
func FormatFailed(msg string) string {
	cross := lipgloss.NewStyle().Bold(true).Foreground(colorRed).Render("✘")
	return cross + " " + msg
}

// FormatLinked renders a "<verb>: <path> <size>" line, with the size in
// human-readable units and no parentheses.
func FormatLinked(verb, path string, sizeBytes int64) string {
	label := styleDim.Render(verb + ":")
	styledPath := styleNoun.Render(path)
	return fmt.Sprintf("%s %s %s", label, styledPath, styleDim.Render(humanBytes(sizeBytes)))
}

// FormatTargetLine renders a target identifier with a right-aligned,
// color-coded status suffix — e.g. "//libs/widgets:core    compiling".
func FormatTargetLine(target, status string) string {
	const column = 48
	padding := column - len(target)
	if padding < 2 {
		padding = 2
	}
	styledTarget := styleNoun.Render(target)
	return styledTarget + strings.Repeat(" ", padding) + styleDim.Render(status)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
