package doctor

import (
	"kurt.dev/kurt/internal/tui"
)

func glyph(s Status) string {
	switch s {
	case StatusPass:
		return tui.GlyphPass
	case StatusWarn:
		return tui.GlyphWarn
	default:
		return tui.GlyphFail
	}
}

func colorFor(s Status) func(string) string {
	switch s {
	case StatusPass:
		return tui.ColorGreen
	case StatusWarn:
		return tui.ColorYellow
	default:
		return tui.ColorRed
	}
}

// Print writes one line per check followed by a summary
func Print(splog *tui.Splog, report *Report) {
	for _, c := range report.Checks {
		splog.Info("  %s %s %s", glyph(c.Status), colorFor(c.Status)(c.Name), c.Message)
	}
	splog.Newline()

	failed, warnings := len(report.Failed()), len(report.Warnings())
	switch {
	case failed > 0:
		splog.Warn("Doctor found %d failing check(s) and %d warning(s).", failed, warnings)
		for _, c := range report.Failed() {
			if c.Fixable {
				splog.Tip("Run 'kurt repair' to fix %s.", c.Name)
				break
			}
		}
	case warnings > 0:
		splog.Info("Doctor found %d warning(s). kurt can run, but see above.", warnings)
	default:
		splog.Info("%s All checks passed.", tui.GlyphPass)
	}
}

// PrintRepair writes what repair did and the final report
func PrintRepair(splog *tui.Splog, report *RepairReport) {
	if len(report.Fixes) == 0 {
		splog.Info("Nothing to repair.")
	}
	for _, f := range report.Fixes {
		if f.Err != nil {
			splog.Error("could not fix %s: %v", f.Check, f.Err)
			continue
		}
		splog.Info("  %s fixed %s", tui.GlyphPass, f.Check)
	}
	for _, c := range report.Unresolved() {
		if !c.Fixable {
			splog.Warn("%s needs your attention: %s", c.Name, c.Message)
		}
	}
	splog.Newline()
	Print(splog, report.After)
}
