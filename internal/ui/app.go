package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/docfeed/internal/batch"
	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/feed"
	"github.com/abelbrown/docfeed/internal/jobs"
	"github.com/abelbrown/docfeed/internal/otel"
	"github.com/abelbrown/docfeed/internal/selection"
	"github.com/abelbrown/docfeed/internal/tags"
)

// DefaultPrefetchThreshold is how close to the last row the cursor must be
// before the next page is requested.
const DefaultPrefetchThreshold = 3

// maxPickerRows caps the tag picker list.
const maxPickerRows = 6

type mode int

const (
	modeBrowse mode = iota
	modeQuery
	modePicker
	modeConfirmDelete
)

// pickPurpose is what a tag chosen in the picker is used for.
type pickPurpose int

const (
	pickFilter pickPurpose = iota
	pickAddTag
	pickRemoveTag
)

// Options tunes the App.
type Options struct {
	PrefetchThreshold int
	Journal           *otel.Journal // may be nil
	Ring              *otel.Ring    // backs the debug overlay; may be nil
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT call the server. It triggers Commands and
// receives their results as messages.
type App struct {
	cmds    Commands
	ctrl    *feed.Controller
	sel     *selection.Set
	tc      *tags.Cache
	tracker *jobs.Tracker
	journal *otel.Journal
	ring    *otel.Ring

	prefetch    int
	cursor      int // document index
	filterFocus int
	width       int
	height      int
	ready       bool

	mode    mode
	purpose pickPurpose
	input   textinput.Model
	matches []catalog.Tag
	pick    int
	pending []catalog.DocID // targets awaiting delete confirmation

	batchRunning bool
	shrinking    bool       // the running batch removes documents from the listing
	queued       *batchCall // shrinking batch held back until the page in flight lands
	showHelp     bool
	showDebug    bool
	spinner      spinner.Model
	help         help.Model
	status       string
	err          error
}

// NewApp creates an App over ctrl. The feed is started by Init.
func NewApp(ctrl *feed.Controller, cmds Commands, opts Options) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StatusBarKey

	ti := textinput.New()
	ti.CharLimit = 200

	prefetch := opts.PrefetchThreshold
	if prefetch <= 0 {
		prefetch = DefaultPrefetchThreshold
	}

	return App{
		cmds:     cmds,
		ctrl:     ctrl,
		sel:      selection.New(),
		tc:       tags.New(nil),
		tracker:  &jobs.Tracker{},
		journal:  opts.Journal,
		ring:     opts.Ring,
		prefetch: prefetch,
		input:    ti,
		spinner:  s,
		help:     help.New(),
	}
}

// Init starts the feed at page 0 and loads the tag list.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.restart(), a.spinner.Tick}
	if a.cmds.LoadTags != nil {
		cmds = append(cmds, a.cmds.LoadTags())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.ready = true
		return a, a.maybeNext()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case PageLoaded:
		return a.handlePageLoaded(msg)

	case BatchDone:
		return a.handleBatchDone(msg)

	case JobStatusMsg:
		before := a.tracker.Last()
		n := a.tracker.Observe(msg.Status)
		if n.Busy && !before.Busy {
			a.journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindJobBusy, Count: msg.Status.Pending(), Msg: msg.Status.Current})
		}
		if n.Text == jobs.FinishedText && before.Busy {
			a.journal.Info(otel.KindJobFinished, "")
		}
		return a, nil

	case TagsLoaded:
		if msg.Tags != nil {
			a.tc = tags.New(msg.Tags)
		}
		if msg.Err != nil {
			if msg.Cached {
				a.status = "Tags loaded from local snapshot"
			} else {
				a.err = fmt.Errorf("could not load tags: %w", msg.Err)
			}
		}
		return a, nil
	}

	return a, nil
}

func (a App) handlePageLoaded(msg PageLoaded) (tea.Model, tea.Cmd) {
	t := msg.Fetch.Ticket
	res := a.ctrl.Resolve(msg.Fetch, msg.Page, msg.Err)
	if !res.Applied {
		a.journal.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPageStale, Ticket: t.ID, Gen: t.Gen, Page: t.Page})
		return a, a.flushQueued()
	}
	if res.Err != nil {
		a.err = fmt.Errorf("could not load page %d (move down to retry): %w", t.Page+1, res.Err)
		a.journal.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindPageError, Ticket: t.ID, Gen: t.Gen, Page: t.Page, Err: otel.ErrString(res.Err)})
		return a, a.flushQueued()
	}

	a.err = nil
	a.journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindPageApplied, Ticket: t.ID, Gen: t.Gen, Page: t.Page, Count: len(msg.Page.Docs)})
	if a.ctrl.Exhausted() {
		a.journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFeedEnd, Gen: t.Gen, Count: len(a.ctrl.Documents())})
	}
	a.clampCursor()
	if cmd := a.flushQueued(); cmd != nil {
		return a, cmd
	}
	return a, a.maybeNext()
}

func (a App) handleBatchDone(msg BatchDone) (tea.Model, tea.Cmd) {
	a.batchRunning = false
	a.shrinking = false
	r := msg.Report
	m := r.Mutation

	for _, id := range r.Succeeded() {
		switch m.Kind {
		case batch.Delete:
			a.ctrl.RemoveDocument(id)
		case batch.AddTag:
			a.ctrl.ApplyTagChange(id, m.Tag, true)
		case batch.RemoveTag:
			a.ctrl.ApplyTagChange(id, m.Tag, false)
		}
	}
	if m.Kind == batch.Reprocess && len(r.Succeeded()) > 0 && a.cmds.KickJobs != nil {
		a.cmds.KickJobs()
	}

	failed := r.Failed()
	if a.sel.Active() {
		a.sel.Retain(failed)
		a.sel.Prune(a.ctrl.DocumentIDs())
	}
	a.clampCursor()

	a.journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindBatchDone, Msg: m.Kind.String(), Count: len(r.Outcomes), Failed: len(failed)})
	a.status = fmt.Sprintf("%s: %d done, %d failed", m.Kind, len(r.Succeeded()), len(failed))
	if err := r.Err(); err != nil {
		a.err = err
	}

	// Deletions shorten the list; keep it filled.
	return a, a.maybeNext()
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case modeQuery:
		return a.handleQueryKey(msg)
	case modePicker:
		return a.handlePickerKey(msg)
	case modeConfirmDelete:
		return a.handleConfirmKey(msg)
	}

	// Clear any existing error on key press
	a.err = nil
	a.status = ""

	if a.showDebug {
		if key.Matches(msg, keys.Debug) || key.Matches(msg, keys.Escape) {
			a.showDebug = false
		}
		if key.Matches(msg, keys.Quit) {
			return a, tea.Quit
		}
		return a, nil
	}

	docs := a.ctrl.Documents()

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Down):
		if a.cursor < len(docs)-1 {
			a.cursor++
		}
		return a, a.maybeNext()

	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, keys.Top):
		a.cursor = 0
		return a, nil

	case key.Matches(msg, keys.Bottom):
		if len(docs) > 0 {
			a.cursor = len(docs) - 1
		}
		return a, a.maybeNext()

	case key.Matches(msg, keys.Refresh):
		a.tracker.Dismiss()
		return a, a.restart()

	case key.Matches(msg, keys.Query):
		return a.openInput(modeQuery, "/ ", a.ctrl.Query())

	case key.Matches(msg, keys.Order):
		f := a.ctrl.SetOrder(a.ctrl.Order().Toggle())
		return a, a.afterRestart(f)

	case key.Matches(msg, keys.AddFilter):
		a.purpose = pickFilter
		return a.openInput(modePicker, "filter tag: ", "")

	case key.Matches(msg, keys.RemoveFilter):
		filters := a.ctrl.Filters()
		if a.filterFocus < 0 || a.filterFocus >= len(filters) {
			return a, nil
		}
		f, restarted, err := a.ctrl.RemoveFilter(filters[a.filterFocus])
		return a, a.afterFilterChange(f, restarted, err)

	case key.Matches(msg, keys.ClearFilters):
		f, restarted, err := a.ctrl.ClearFilters()
		return a, a.afterFilterChange(f, restarted, err)

	case key.Matches(msg, keys.PrevFilter):
		if a.filterFocus > 0 {
			a.filterFocus--
		}
		return a, nil

	case key.Matches(msg, keys.NextFilter):
		if a.filterFocus < len(a.ctrl.Filters())-1 {
			a.filterFocus++
		}
		return a, nil

	case key.Matches(msg, keys.Select):
		if a.sel.Active() {
			a.sel.Exit()
		} else {
			a.sel.Enter()
		}
		return a, nil

	case key.Matches(msg, keys.Toggle):
		if a.sel.Active() && a.cursor < len(docs) {
			a.sel.Toggle(docs[a.cursor].ID)
		}
		return a, nil

	case key.Matches(msg, keys.SelectAll):
		a.sel.SelectAll(a.ctrl.DocumentIDs())
		return a, nil

	case key.Matches(msg, keys.Escape):
		if a.sel.Active() {
			a.sel.Exit()
		}
		a.showHelp = false
		return a, nil

	case key.Matches(msg, keys.Delete):
		targets := a.targets()
		if len(targets) == 0 {
			return a, nil
		}
		a.pending = targets
		a.mode = modeConfirmDelete
		return a, nil

	case key.Matches(msg, keys.Reprocess):
		return a, a.dispatch(batch.Mutation{Kind: batch.Reprocess}, a.targets())

	case key.Matches(msg, keys.ReprocessOCR):
		return a, a.dispatch(batch.Mutation{Kind: batch.Reprocess, ForceOCR: true}, a.targets())

	case key.Matches(msg, keys.AddTag):
		if len(a.targets()) == 0 {
			return a, nil
		}
		a.purpose = pickAddTag
		return a.openInput(modePicker, "add tag: ", "")

	case key.Matches(msg, keys.RemoveTag):
		if len(a.targets()) == 0 {
			return a, nil
		}
		a.purpose = pickRemoveTag
		return a.openInput(modePicker, "remove tag: ", "")

	case key.Matches(msg, keys.Debug):
		a.showDebug = a.ring != nil
		return a, nil

	case key.Matches(msg, keys.Help):
		a.showHelp = !a.showHelp
		return a, nil
	}

	return a, nil
}

func (a App) openInput(m mode, prompt, value string) (tea.Model, tea.Cmd) {
	a.mode = m
	a.input.Prompt = prompt
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.pick = 0
	a.refreshMatches()
	return a, tea.Batch(a.input.Focus(), textinput.Blink)
}

func (a *App) closeInput() {
	a.mode = modeBrowse
	a.input.Blur()
	a.input.SetValue("")
	a.matches = nil
}

func (a App) handleQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.closeInput()
		return a, nil
	case tea.KeyEnter:
		q := strings.TrimSpace(a.input.Value())
		a.closeInput()
		if q == a.ctrl.Query() {
			return a, nil
		}
		return a, a.afterRestart(a.ctrl.SetQuery(q))
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a App) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.closeInput()
		return a, nil
	case tea.KeyUp, tea.KeyCtrlP:
		if a.pick > 0 {
			a.pick--
		}
		return a, nil
	case tea.KeyDown, tea.KeyCtrlN, tea.KeyTab:
		if a.pick < len(a.matches)-1 {
			a.pick++
		}
		return a, nil
	case tea.KeyEnter:
		if a.pick >= len(a.matches) {
			return a, nil
		}
		tag := a.matches[a.pick]
		purpose := a.purpose
		a.closeInput()
		return a, a.applyPick(purpose, tag)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.refreshMatches()
	return a, cmd
}

func (a *App) refreshMatches() {
	if a.mode != modePicker {
		a.matches = nil
		return
	}
	a.matches = a.tc.Match(a.input.Value())
	if a.purpose == pickFilter {
		// Hide tags that are already active filters.
		out := a.matches[:0:0]
		for _, t := range a.matches {
			active := false
			for _, f := range a.ctrl.Filters() {
				active = active || f == t.ID
			}
			if !active {
				out = append(out, t)
			}
		}
		a.matches = out
	}
	if a.pick >= len(a.matches) {
		a.pick = 0
	}
}

func (a *App) applyPick(purpose pickPurpose, tag catalog.Tag) tea.Cmd {
	switch purpose {
	case pickFilter:
		f, restarted, err := a.ctrl.AddFilter(tag.ID)
		return a.afterFilterChange(f, restarted, err)
	case pickAddTag:
		return a.dispatch(batch.Mutation{Kind: batch.AddTag, Tag: tag.ID}, a.targets())
	case pickRemoveTag:
		return a.dispatch(batch.Mutation{Kind: batch.RemoveTag, Tag: tag.ID}, a.targets())
	}
	return nil
}

func (a App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	targets := a.pending
	a.pending = nil
	a.mode = modeBrowse
	if msg.String() == "y" || msg.String() == "Y" {
		return a, a.dispatch(batch.Mutation{Kind: batch.Delete}, targets)
	}
	a.status = "Delete cancelled"
	return a, nil
}

// targets returns the selection, or the document under the cursor when
// nothing is selected.
func (a *App) targets() []catalog.DocID {
	if a.sel.Active() && a.sel.Len() > 0 {
		return a.sel.IDs()
	}
	docs := a.ctrl.Documents()
	if a.cursor < len(docs) {
		return []catalog.DocID{docs[a.cursor].ID}
	}
	return nil
}

type batchCall struct {
	m   batch.Mutation
	ids []catalog.DocID
}

// shrinks reports whether m takes documents out of the server's listing,
// which moves the offsets of every later page.
func (a *App) shrinks(m batch.Mutation) bool {
	switch m.Kind {
	case batch.Delete:
		return true
	case batch.RemoveTag:
		return slices.Contains(a.ctrl.Filters(), m.Tag)
	}
	return false
}

// dispatch starts a batch. Page fetches and shrinking batches never overlap:
// a shrinking batch waits for the page in flight, and no page is requested
// until it has settled.
func (a *App) dispatch(m batch.Mutation, ids []catalog.DocID) tea.Cmd {
	if len(ids) == 0 || a.cmds.ApplyBatch == nil {
		return nil
	}
	if a.batchRunning || a.queued != nil {
		a.status = "A batch is still running"
		return nil
	}
	if a.shrinks(m) && a.ctrl.Loading() {
		a.queued = &batchCall{m, ids}
		a.status = fmt.Sprintf("%s: waiting for page to load...", m.Kind)
		return nil
	}
	a.batchRunning = true
	a.shrinking = a.shrinks(m)
	a.status = fmt.Sprintf("%s: %d documents...", m.Kind, len(ids))
	a.journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindBatchStart, Msg: m.Kind.String(), Count: len(ids)})
	return a.cmds.ApplyBatch(m, ids)
}

// flushQueued dispatches a held batch once no page is in flight.
func (a *App) flushQueued() tea.Cmd {
	if a.queued == nil || a.ctrl.Loading() {
		return nil
	}
	q := a.queued
	a.queued = nil
	return a.dispatch(q.m, q.ids)
}

// restart starts the feed over from page 0.
func (a *App) restart() tea.Cmd {
	return a.afterRestart(a.ctrl.Start())
}

// afterRestart resets view state for a fresh feed session and issues f.
func (a *App) afterRestart(f feed.Fetch) tea.Cmd {
	a.cursor = 0
	a.sel.Prune(nil)
	if n := len(a.ctrl.Filters()); a.filterFocus >= n {
		a.filterFocus = max(n-1, 0)
	}
	a.journal.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFeedRestart, Gen: f.Ticket.Gen, Msg: f.Request.Values().Encode()})
	return a.fetch(f)
}

func (a *App) afterFilterChange(f feed.Fetch, restarted bool, err error) tea.Cmd {
	if err != nil {
		a.err = fmt.Errorf("filter change not saved: %w", err)
		a.journal.Warn(otel.KindFilterError, err)
	}
	if !restarted {
		return nil
	}
	a.journal.Info(otel.KindFilterChange, feed.JoinTags(a.ctrl.Filters()))
	return a.afterRestart(f)
}

func (a *App) fetch(f feed.Fetch) tea.Cmd {
	if a.cmds.FetchPage == nil {
		return nil
	}
	a.journal.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPageFetch, Ticket: f.Ticket.ID, Gen: f.Ticket.Gen, Page: f.Ticket.Page})
	return a.cmds.FetchPage(f)
}

// maybeNext is the viewport-proximity trigger: it asks for the next page
// when the cursor is near the last row or the list does not fill the screen.
func (a *App) maybeNext() tea.Cmd {
	if a.shrinking || a.queued != nil {
		return nil
	}
	n := len(a.ctrl.DocumentIDs())
	near := n-1-a.cursor < a.prefetch
	short := a.ready && n < a.contentHeight()
	if !near && !short {
		return nil
	}
	f, ok := a.ctrl.Next()
	if !ok {
		return nil
	}
	return a.fetch(f)
}

func (a *App) clampCursor() {
	n := len(a.ctrl.DocumentIDs())
	if a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

// contentHeight is the number of lines left for the feed.
func (a *App) contentHeight() int {
	h := a.height - 2 // filter bar + status bar
	if a.tracker.Last().Visible {
		h--
	}
	if a.err != nil {
		h--
	}
	switch a.mode {
	case modeQuery, modeConfirmDelete:
		h--
	case modePicker:
		h -= 1 + min(len(a.matches), maxPickerRows)
	}
	if a.showHelp {
		h -= 6
	}
	return max(h, 1)
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug {
		return debugOverlay(a.ring, time.Now(), a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	var parts []string
	parts = append(parts, RenderFilterBar(a.ctrl.Filters(), a.filterFocus, a.ctrl.Query(), a.ctrl.Order(), a.tc, a.width))
	if alert := RenderAlert(a.tracker.Last(), a.width); alert != "" {
		parts = append(parts, alert)
	}

	parts = append(parts, strings.TrimRight(RenderFeed(a.ctrl.Items(), a.cursor, a.sel, a.tc, a.width, a.contentHeight()), "\n"))

	switch a.mode {
	case modeQuery:
		parts = append(parts, InputBar.Width(a.width).Render(a.input.View()))
	case modePicker:
		parts = append(parts, InputBar.Width(a.width).Render(a.input.View()))
		for i, t := range a.matches {
			if i >= maxPickerRows {
				break
			}
			style := PickerItem
			if i == a.pick {
				style = PickerItemActive
			}
			parts = append(parts, style.Render(t.Name))
		}
	case modeConfirmDelete:
		parts = append(parts, ErrorStyle.Width(a.width).Render(fmt.Sprintf("Delete %d documents? (y/N)", len(a.pending))))
	}

	if a.err != nil {
		parts = append(parts, ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()))
	}

	if a.showHelp {
		parts = append(parts, a.help.FullHelpView(keys.FullHelp()))
	}

	info := StatusInfo{
		Cursor:    a.cursor,
		Total:     len(a.ctrl.DocumentIDs()),
		Exhausted: a.ctrl.Exhausted(),
		Selecting: a.sel.Active(),
		Selected:  a.sel.Len(),
		Text:      a.status,
	}
	if a.ctrl.Loading() || a.batchRunning {
		info.Loading = a.spinner.View()
	}
	parts = append(parts, RenderStatusBar(info, a.help.ShortHelpView(keys.ShortHelp()), a.width))

	return strings.Join(parts, "\n")
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Selection returns the selection set (for testing).
func (a App) Selection() *selection.Set {
	return a.sel
}

// Status returns the transient status line text (for testing).
func (a App) Status() string {
	return a.status
}

// Err returns the error shown in the error bar (for testing).
func (a App) Err() error {
	return a.err
}

// Notice returns the job alert currently shown.
func (a App) Notice() jobs.Notice {
	return a.tracker.Last()
}
