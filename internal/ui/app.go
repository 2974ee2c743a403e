// Package ui is the interactive duplicate browser built on Bubble Tea.
package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/engine"
	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/ops"
	"github.com/sadopc/godupe/internal/ui/components"
	"github.com/sadopc/godupe/internal/ui/style"
)

// AppState represents the application state.
type AppState int

const (
	StateScanning AppState = iota
	StateBrowsing
	StateConfirmDelete
	StateHelp
	StateExporting
)

const (
	defaultExportPath = "godupe-export.json"
	progressInterval  = 50 * time.Millisecond
	tickInterval      = 60 * time.Millisecond
)

// ScanDoneMsg is sent when a search completes. A nil Report with a nil Err
// means the search was cancelled.
type ScanDoneMsg struct {
	Report *model.Report
	Err    error
}

// DeleteDoneMsg is sent when deletion completes.
type DeleteDoneMsg struct {
	Deleted []string
	Err     error
}

// ExportDoneMsg is sent when export completes.
type ExportDoneMsg struct {
	Path string
	Err  error
}

type tickMsg time.Time

// Config describes what the App searches and how.
type Config struct {
	Root       string
	Options    engine.Options
	Remote     string // user@host when Options.Source is an SFTP source
	ImportPath string
	ExportPath string
	Version    string
	Sort       model.SortConfig
	Timeout    time.Duration // bounds each search; zero means no limit
}

// App is the root Bubble Tea model.
type App struct {
	cfg Config

	state  AppState
	width  int
	height int

	report     *model.Report
	sortConfig model.SortConfig
	rows       []components.Row

	cursor int
	offset int

	marked  map[string]bool
	pending []components.ConfirmItem

	imported bool
	readOnly bool

	scanProgress   engine.Progress
	progressMu     sync.Mutex
	latestProgress engine.Progress
	scanCancel     context.CancelFunc
	scanCancelMu   sync.Mutex

	theme   style.Theme
	keys    KeyMap
	layout  style.Layout
	help    help.Model
	bar     progress.Model
	spinner spinner.Model

	statusMsg string
	fatalErr  error
}

// NewApp creates an App that searches cfg.Root.
func NewApp(cfg Config) *App {
	theme := style.DefaultTheme()
	a := &App{
		cfg:        cfg,
		state:      StateScanning,
		sortConfig: cfg.Sort,
		marked:     make(map[string]bool),
		imported:   cfg.ImportPath != "",
		readOnly:   cfg.ImportPath != "" || cfg.Remote != "",
		theme:      theme,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		bar:        components.NewProgressBar(theme),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Secondary)),
		),
	}
	return a
}

// NewAppFromImport creates an App that shows a previously exported report.
func NewAppFromImport(importPath string, cfg Config) *App {
	cfg.ImportPath = importPath
	return NewApp(cfg)
}

func (a *App) setScanCancel(cancel context.CancelFunc) {
	a.scanCancelMu.Lock()
	a.scanCancel = cancel
	a.scanCancelMu.Unlock()
}

func (a *App) callScanCancel() {
	a.scanCancelMu.Lock()
	if a.scanCancel != nil {
		a.scanCancel()
	}
	a.scanCancelMu.Unlock()
}

func (a *App) Init() tea.Cmd {
	if a.imported {
		return a.importCmd()
	}
	return tea.Batch(a.scanCmd(), a.tickCmd(), a.spinner.Tick)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout = style.NewLayout(msg.Width, msg.Height)
		a.help.Width = msg.Width
		return a, nil

	case ScanDoneMsg:
		if msg.Err != nil {
			a.fatalErr = msg.Err
			return a, tea.Quit
		}
		if msg.Report == nil {
			return a, tea.Quit
		}
		a.fatalErr = nil
		a.setReport(msg.Report)
		return a, tea.ClearScreen

	case tickMsg:
		if a.state == StateScanning {
			a.progressMu.Lock()
			a.scanProgress = a.latestProgress
			a.progressMu.Unlock()
			return a, a.tickCmd()
		}
		return a, nil

	case spinner.TickMsg:
		if a.state == StateScanning {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case DeleteDoneMsg:
		for _, p := range msg.Deleted {
			a.report.RemovePath(p)
			delete(a.marked, p)
		}
		a.pending = nil
		a.state = StateBrowsing
		a.refreshRows()
		if msg.Err != nil {
			a.statusMsg = fmt.Sprintf("Delete: %d done, error: %v", len(msg.Deleted), msg.Err)
		} else if len(msg.Deleted) > 0 {
			a.statusMsg = fmt.Sprintf("Deleted %d file(s)", len(msg.Deleted))
		}
		return a, tea.ClearScreen

	case ExportDoneMsg:
		a.state = StateBrowsing
		if msg.Err != nil {
			a.statusMsg = fmt.Sprintf("Export failed: %v", msg.Err)
		} else {
			a.statusMsg = fmt.Sprintf("Exported to %s", msg.Path)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.ForceQuit) {
		a.callScanCancel()
		return a, tea.Quit
	}

	switch a.state {
	case StateScanning:
		if key.Matches(msg, a.keys.Quit) {
			a.callScanCancel()
			return a, tea.Quit
		}
		return a, nil

	case StateHelp:
		if key.Matches(msg, a.keys.Help) || key.Matches(msg, a.keys.Close) {
			a.state = StateBrowsing
			return a, tea.ClearScreen
		}
		return a, nil

	case StateConfirmDelete:
		if key.Matches(msg, a.keys.ConfirmYes) {
			return a, a.executeDelete()
		}
		if key.Matches(msg, a.keys.ConfirmNo) {
			a.pending = nil
			a.state = StateBrowsing
			return a, tea.ClearScreen
		}
		return a, nil

	case StateBrowsing:
		return a.handleBrowsingKey(msg)
	}

	return a, nil
}

func (a *App) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.state = StateHelp
		return a, tea.ClearScreen

	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)
	case key.Matches(msg, a.keys.PageUp):
		a.moveCursor(-a.layout.ContentHeight())
	case key.Matches(msg, a.keys.PageDown):
		a.moveCursor(a.layout.ContentHeight())
	case key.Matches(msg, a.keys.Top):
		a.cursor = 0
	case key.Matches(msg, a.keys.Bottom):
		a.moveCursor(len(a.rows))
	case key.Matches(msg, a.keys.PrevGroup):
		a.jumpGroup(-1)
	case key.Matches(msg, a.keys.NextGroup):
		a.jumpGroup(1)

	case key.Matches(msg, a.keys.SortWasted):
		a.toggleSort(model.SortByWasted)
	case key.Matches(msg, a.keys.SortSize):
		a.toggleSort(model.SortBySize)
	case key.Matches(msg, a.keys.SortCount):
		a.toggleSort(model.SortByCount)
	case key.Matches(msg, a.keys.SortPath):
		a.toggleSort(model.SortByPath)

	case key.Matches(msg, a.keys.Mark):
		a.toggleMark()
	case key.Matches(msg, a.keys.MarkDupes):
		a.markAllButFirst()
	case key.Matches(msg, a.keys.ClearMarks):
		a.clearMarks()

	case key.Matches(msg, a.keys.Delete):
		cmd := a.prepareDelete()
		if a.state == StateConfirmDelete {
			return a, tea.Batch(cmd, tea.ClearScreen)
		}
		return a, cmd

	case key.Matches(msg, a.keys.Export):
		return a, a.exportCmd()

	case key.Matches(msg, a.keys.Rescan):
		if a.imported {
			a.statusMsg = "Rescan is not available for imported reports"
			return a, nil
		}
		a.clearMarks()
		a.cursor = 0
		a.offset = 0
		a.scanProgress = engine.Progress{}
		a.state = StateScanning
		return a, tea.Batch(tea.ClearScreen, a.scanCmd(), a.tickCmd(), a.spinner.Tick)
	}

	return a, nil
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	switch a.state {
	case StateScanning:
		target := a.cfg.Root
		if a.cfg.Remote != "" {
			target = a.cfg.Remote + ":" + target
		}
		return components.ScanView{
			Theme:    a.theme,
			Progress: a.scanProgress,
			Bar:      a.bar,
			Spinner:  a.spinner.View(),
			Target:   target,
		}.Render(a.width, a.height)

	case StateHelp:
		h := a.help
		h.ShowAll = true
		return components.RenderHelp(a.theme, h.View(a.visibleKeys()), a.width, a.height)

	case StateConfirmDelete:
		return components.RenderConfirmDialog(a.theme, a.pending, a.width, a.height)

	case StateBrowsing, StateExporting:
		return a.renderBrowsing()
	}

	return ""
}

func (a *App) renderBrowsing() string {
	header := components.RenderHeader(a.theme, a.report, a.width)
	info := components.RenderInfo(a.theme, a.report, a.imported, a.width)
	sortBar := components.RenderSortBar(a.theme, a.sortConfig, a.width)

	gl := &components.GroupList{
		Theme:       a.theme,
		Layout:      a.layout,
		Groups:      a.groups(),
		Rows:        a.rows,
		Cursor:      a.cursor,
		Offset:      a.offset,
		Marked:      a.marked,
		TotalWasted: a.report.WastedBytes(),
	}
	gl.EnsureVisible()
	a.offset = gl.Offset
	content := gl.Render()

	markedCount, markedSize := a.markedTotals()
	statusBar := components.RenderStatusBar(a.theme, components.StatusInfo{
		Group:       a.currentGroup() + 1,
		GroupCount:  len(a.groups()),
		MarkedCount: markedCount,
		MarkedSize:  markedSize,
		ReadOnly:    a.readOnly,
		ErrorMsg:    a.statusMsg,
		Hints:       a.help.ShortHelpView(a.visibleKeys().ShortHelp()),
	}, a.width)

	return header + "\n" + info + "\n" + sortBar + "\n" + content + "\n" + statusBar
}

func (a *App) visibleKeys() KeyMap {
	if a.readOnly {
		return a.keys.readOnly()
	}
	return a.keys
}

func (a *App) groups() []model.DuplicateGroup {
	if a.report == nil {
		return nil
	}
	return a.report.Groups
}

func (a *App) setReport(r *model.Report) {
	model.SortPaths(r.Groups)
	a.report = r
	a.clearMarks()
	a.cursor = 0
	a.offset = 0
	a.state = StateBrowsing
	a.refreshRows()
}

func (a *App) refreshRows() {
	model.SortGroups(a.groups(), a.sortConfig)
	a.rows = components.BuildRows(a.groups())
	a.moveCursor(0)
}

func (a *App) moveCursor(delta int) {
	a.cursor += delta
	if a.cursor >= len(a.rows) {
		a.cursor = len(a.rows) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// currentGroup returns the index of the group under the cursor, or -1.
func (a *App) currentGroup() int {
	if a.cursor >= len(a.rows) {
		return -1
	}
	return a.rows[a.cursor].Group
}

// jumpGroup moves the cursor to the title of the previous or next group.
func (a *App) jumpGroup(dir int) {
	g := a.currentGroup()
	if g < 0 {
		return
	}
	if dir < 0 && !a.rows[a.cursor].IsTitle() {
		dir = 0
	}
	target := g + dir
	if target < 0 || target >= len(a.groups()) {
		return
	}
	for i, r := range a.rows {
		if r.Group == target && r.IsTitle() {
			a.cursor = i
			return
		}
	}
}

func (a *App) toggleSort(field model.SortField) {
	if a.sortConfig.Field == field {
		if a.sortConfig.Order == model.SortDesc {
			a.sortConfig.Order = model.SortAsc
		} else {
			a.sortConfig.Order = model.SortDesc
		}
	} else {
		a.sortConfig.Field = field
		a.sortConfig.Order = model.SortDesc
		if field == model.SortByPath {
			a.sortConfig.Order = model.SortAsc
		}
	}
	a.refreshRows()
}

// toggleMark flips the file under the cursor. On a title row it marks every
// copy but the first, or clears the group if anything in it is marked.
func (a *App) toggleMark() {
	if a.cursor >= len(a.rows) {
		return
	}
	row := a.rows[a.cursor]
	g := a.groups()[row.Group]

	if row.IsTitle() {
		had := false
		for _, p := range g.Paths {
			if a.marked[p] {
				had = true
				delete(a.marked, p)
			}
		}
		if !had {
			for _, p := range g.Paths[1:] {
				a.marked[p] = true
			}
		}
		return
	}

	p := g.Paths[row.Member]
	if a.marked[p] {
		delete(a.marked, p)
	} else {
		a.marked[p] = true
	}
	a.moveCursor(1)
}

func (a *App) markAllButFirst() {
	n := 0
	for _, g := range a.groups() {
		for _, p := range g.Paths[1:] {
			if !a.marked[p] {
				a.marked[p] = true
				n++
			}
		}
	}
	a.statusMsg = fmt.Sprintf("Marked %d file(s)", n)
}

func (a *App) clearMarks() {
	a.marked = make(map[string]bool)
}

func (a *App) markedTotals() (int, uint64) {
	var (
		n    int
		size uint64
	)
	for _, g := range a.groups() {
		for _, p := range g.Paths {
			if a.marked[p] {
				n++
				size += g.Size
			}
		}
	}
	return n, size
}

// scanCmd runs the search in a background goroutine. Progress reaches the
// UI through a.latestProgress, copied on every tick.
func (a *App) scanCmd() tea.Cmd {
	cfg := a.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		a.setScanCancel(cancel)
		if cfg.Timeout > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, cfg.Timeout)
			defer stop()
		}

		tracker := engine.NewTracker()
		opts := cfg.Options
		tracker.Attach(&opts)

		progressCh := make(chan engine.Progress, 10)
		reportCtx, stopReport := context.WithCancel(ctx)
		go func() {
			tracker.Report(reportCtx, progressCh, progressInterval)
			close(progressCh)
		}()
		go func() {
			for p := range progressCh {
				a.progressMu.Lock()
				a.latestProgress = p
				a.progressMu.Unlock()
			}
		}()

		report, err := engine.Run(ctx, cfg.Root, opts)
		tracker.Finish()
		stopReport()
		if report != nil {
			report.Remote = cfg.Remote
		}
		return ScanDoneMsg{Report: report, Err: err}
	}
}

func (a *App) importCmd() tea.Cmd {
	path := a.cfg.ImportPath
	return func() tea.Msg {
		report, err := ops.ImportJSON(path)
		return ScanDoneMsg{Report: report, Err: err}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) prepareDelete() tea.Cmd {
	if a.readOnly {
		a.statusMsg = "Delete is disabled for imported and remote reports"
		return nil
	}

	selected := make(map[string]bool, len(a.marked))
	for p := range a.marked {
		selected[p] = true
	}
	if len(selected) == 0 && a.cursor < len(a.rows) {
		if row := a.rows[a.cursor]; !row.IsTitle() {
			selected[a.groups()[row.Group].Paths[row.Member]] = true
		}
	}
	if len(selected) == 0 {
		return nil
	}

	var items []components.ConfirmItem
	for i, g := range a.groups() {
		n := 0
		for _, p := range g.Paths {
			if selected[p] {
				n++
				items = append(items, components.ConfirmItem{Path: p, Size: g.Size})
			}
		}
		if n == len(g.Paths) {
			a.statusMsg = fmt.Sprintf("Refusing to delete every copy in group %d; unmark one", i+1)
			return nil
		}
		if n > 0 {
			if err := ops.CheckSurvivors(g.Paths, selected); err != nil {
				a.statusMsg = fmt.Sprintf("Refusing to delete group %d: the unmarked copies are symlinks to marked files", i+1)
				return nil
			}
		}
	}
	if len(items) == 0 {
		return nil
	}

	a.pending = items
	a.state = StateConfirmDelete
	return nil
}

func (a *App) executeDelete() tea.Cmd {
	paths := make([]string, len(a.pending))
	for i, item := range a.pending {
		paths[i] = item.Path
	}
	rootPath := a.report.Root

	return func() tea.Msg {
		deleted, err := ops.DeleteAll(paths, rootPath)
		return DeleteDoneMsg{Deleted: deleted, Err: err}
	}
}

// FatalError returns a fatal search or import error, if any.
func (a *App) FatalError() error { return a.fatalErr }

// Report returns the report being browsed, or nil.
func (a *App) Report() *model.Report { return a.report }

func (a *App) exportCmd() tea.Cmd {
	if a.report == nil {
		return nil
	}

	exportPath := a.cfg.ExportPath
	if exportPath == "" {
		exportPath = defaultExportPath
	}

	a.state = StateExporting
	report := a.report
	version := a.cfg.Version
	return func() tea.Msg {
		err := ops.ExportJSON(report, exportPath, version)
		return ExportDoneMsg{Path: exportPath, Err: err}
	}
}
