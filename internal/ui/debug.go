package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/docfeed/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
const debugPanelChrome = 4

// debugOverlay renders feed and batch counters plus the most recent events.
// Returns "" when ring is nil.
func debugOverlay(ring *otel.Ring, now time.Time, width, height int) string {
	if ring == nil {
		return ""
	}

	counts := ring.Counts()
	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Feed"))
	lines = append(lines, fmt.Sprintf("  Pages:    %d fetched, %d applied, %d failed, %d stale",
		counts[otel.KindPageFetch], counts[otel.KindPageApplied], counts[otel.KindPageError], counts[otel.KindPageStale]))
	lines = append(lines, fmt.Sprintf("  Restarts: %d   Filter changes: %d (%d not saved)",
		counts[otel.KindFeedRestart], counts[otel.KindFilterChange], counts[otel.KindFilterError]))
	lines = append(lines, fmt.Sprintf("  Batches:  %d started, %d done", counts[otel.KindBatchStart], counts[otel.KindBatchDone]))
	lines = append(lines, fmt.Sprintf("  Buffer:   %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range ring.Last(20) {
		line := fmt.Sprintf("  %6s  %-16s", formatAge(now.Sub(e.Time)), string(e.Kind))
		if e.Kind == otel.KindPageFetch || e.Kind == otel.KindPageApplied || e.Kind == otel.KindPageError || e.Kind == otel.KindPageStale {
			line += fmt.Sprintf("  gen:%d page:%d", e.Gen, e.Page)
		}
		if e.Count > 0 {
			line += fmt.Sprintf("  n:%d", e.Count)
		}
		if e.Failed > 0 {
			line += fmt.Sprintf("  failed:%d", e.Failed)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 30)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 80
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}
	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Negative durations from clock skew clamp to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
