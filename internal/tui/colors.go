package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Status glyphs shared by doctor, repair, and sync output
const (
	GlyphPass = "✅"
	GlyphWarn = "⚠️"
	GlyphFail = "❌"
)

// DisableColor forces plain output, e.g. when KURT_NO_COLOR is set or in tests
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func render(color, text string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

// ColorRed colors text red
func ColorRed(text string) string {
	return render("1", text)
}

// ColorGreen colors text green
func ColorGreen(text string) string {
	return render("2", text)
}

// ColorYellow colors text yellow
func ColorYellow(text string) string {
	return render("3", text)
}

// ColorCyan colors text cyan
func ColorCyan(text string) string {
	return render("6", text)
}

// ColorDim renders text in a muted gray
func ColorDim(text string) string {
	return render("8", text)
}

// IsTTY reports whether both stdin and stdout are terminals
func IsTTY() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
