package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/feed"
	"github.com/abelbrown/docfeed/internal/jobs"
	"github.com/abelbrown/docfeed/internal/selection"
	"github.com/abelbrown/docfeed/internal/tags"
)

// dateLayout is used for the imported and document dates of a row.
const dateLayout = "2006-01-02"

// RenderFeed renders the feed items with their year separators. cursor is
// a document index (separators excluded). sel may be nil.
func RenderFeed(items []feed.Item, cursor int, sel *selection.Set, tc *tags.Cache, width, height int) string {
	if len(items) == 0 {
		return HelpStyle.Render("No documents. Press 'r' to refresh, 'X' to clear filters.")
	}
	if height < 1 {
		height = 1
	}

	cursorItem := itemIndex(items, cursor)
	offset := scrollOffset(cursorItem, height)

	var b strings.Builder
	for i := offset; i < len(items) && i < offset+height; i++ {
		it := items[i]
		if it.Separator {
			b.WriteString(YearHeader.Render(it.Label))
		} else {
			b.WriteString(renderRow(it.Doc, i == cursorItem, sel, tc, width))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// itemIndex maps a document index to its position in items.
func itemIndex(items []feed.Item, docIndex int) int {
	n := 0
	for i, it := range items {
		if it.Separator {
			continue
		}
		if n == docIndex {
			return i
		}
		n++
	}
	return -1
}

// scrollOffset returns the first visible item so that the cursor row is
// the last line on screen once the list scrolls.
func scrollOffset(cursorItem, height int) int {
	if cursorItem < height {
		return 0
	}
	return cursorItem - height + 1
}

// renderRow renders one document row.
func renderRow(doc catalog.Document, focused bool, sel *selection.Set, tc *tags.Cache, width int) string {
	var mark string
	if sel != nil && sel.Active() {
		if sel.Contains(doc.ID) {
			mark = SelectedMark.Render("[x]") + " "
		} else {
			mark = UnselectedMark.Render("[ ]") + " "
		}
	}

	chips := renderChips(doc.Tags, tc)
	dates := DateText.Render(formatDates(doc))

	titleWidth := width - lipgloss.Width(mark) - lipgloss.Width(chips) - lipgloss.Width(dates) - 4
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := truncateRunes(displayTitle(doc), titleWidth)

	style := NormalRow
	if focused {
		style = CursorRow
	}
	return fmt.Sprintf("%s%s %s%s", mark, style.Render(title), chips, dates)
}

// displayTitle falls back to the file name for untitled documents.
func displayTitle(doc catalog.Document) string {
	if t := strings.TrimSpace(doc.Title); t != "" {
		return t
	}
	if doc.OriginalFilename != "" {
		return doc.OriginalFilename
	}
	return fmt.Sprintf("document %d", doc.ID)
}

func formatDates(doc catalog.Document) string {
	docDate := "?"
	if d, ok := doc.DocumentDate(); ok {
		docDate = d.Format(dateLayout)
	}
	return fmt.Sprintf("imported %s · dated %s", doc.Imported().Format(dateLayout), docDate)
}

// renderChips renders tag chips in the tag's own color.
func renderChips(ids []catalog.TagID, tc *tags.Cache) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(tagChip(tc.Resolve(id)))
	}
	return b.String()
}

func tagChip(t catalog.Tag) string {
	style := TagChip
	if t.Color != "" {
		style = style.Background(lipgloss.Color(t.Color))
	}
	return style.Render(t.Name)
}

// truncateRunes shortens s to max runes, ending in "...".
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}

// RenderFilterBar renders the active query and tag filters. focus is the
// index of the filter under the filter cursor.
func RenderFilterBar(filters []catalog.TagID, focus int, query string, order feed.Order, tc *tags.Cache, width int) string {
	var b strings.Builder
	b.WriteString(StatusBarText.Render("order:" + order.String() + " "))
	if query != "" {
		b.WriteString(StatusBarKey.Render("/") + query + " ")
	}
	if len(filters) == 0 {
		b.WriteString(StatusBarText.Render("no tag filters"))
	}
	for i, id := range filters {
		style := FilterChip
		if i == focus {
			style = FilterChipFocused
		}
		b.WriteString(style.Render(tc.Resolve(id).Name))
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

// RenderAlert renders the job status line, or "" when nothing is shown.
func RenderAlert(n jobs.Notice, width int) string {
	if !n.Visible {
		return ""
	}
	if n.Busy {
		text := n.Text
		if n.Progress > 0 {
			text = fmt.Sprintf("%s (%d%%)", text, n.Progress)
		}
		return AlertBar.Width(width).Render(text)
	}
	return AlertBarDone.Width(width).Render(n.Text)
}

// StatusInfo is what the status bar reports.
type StatusInfo struct {
	Cursor    int
	Total     int
	Loading   string // spinner frame while a page is loading
	Exhausted bool
	Selected  int
	Selecting bool
	Text      string
}

// RenderStatusBar renders the bottom status bar with key hints and position.
func RenderStatusBar(s StatusInfo, hints string, width int) string {
	var left string
	switch {
	case s.Text != "":
		left = " " + s.Text + " "
	case s.Loading != "":
		left = fmt.Sprintf(" %s Loading... %d/%d ", s.Loading, s.Cursor+1, s.Total)
	default:
		left = fmt.Sprintf(" %d/%d ", min(s.Cursor+1, s.Total), s.Total)
		if s.Exhausted {
			left += "(end) "
		}
	}
	if s.Selecting {
		left += SelectedMark.Render(fmt.Sprintf("[%d selected] ", s.Selected))
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(hints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}
