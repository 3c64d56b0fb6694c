package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of status lines.
type Theme struct {
	Primary lipgloss.Color
	Warn    lipgloss.Color
	Error   lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb86c"),
	Error:   lipgloss.Color("#ff5555"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Label lipgloss.Style
	Value lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style
	Dim   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Value: lipgloss.NewStyle().Underline(true),
		Warn:  lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		Error: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Printer writes styled status lines for humans. Machine readable results
// go through Output instead.
type Printer struct {
	Styles Styles
	Out    io.Writer
	Err    io.Writer
}

// NewPrinter returns a Printer on stdout and stderr using DefaultTheme.
func NewPrinter() *Printer {
	return &Printer{Styles: NewStyles(DefaultTheme), Out: os.Stdout, Err: os.Stderr}
}

// Field prints "label: value", for example the endpoint a server must dial.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.Out, "%s %s\n", p.Styles.Label.Render(label+":"), p.Styles.Value.Render(fmt.Sprint(value)))
}

// Success prints a success message with a checkmark.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.Out, "%s %s\n", p.Styles.Label.Render("✓"), fmt.Sprintf(format, args...))
}

// Info prints a dimmed informational message.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.Out, p.Styles.Dim.Render(fmt.Sprintf(format, args...)))
}

// Warning prints a warning to stderr.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.Styles.Warn.Render("⚠"), fmt.Sprintf(format, args...))
}

// Error prints an error to stderr.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.Styles.Error.Render("Error:"), fmt.Sprintf(format, args...))
}
