package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	TransferView
	DecisionView
	ResultView
)

// TransferFunc starts an orchestrated run. The TUI supplies decider and progress.
type TransferFunc func(ctx context.Context, req tasks.Request, decider tasks.Decider, progress chan<- tasks.ProgressUpdate) (*tasks.Summary, error)

// Options configures [NewModel].
type Options struct {
	Source   services.Service
	Target   services.Service
	Selected []string // Playlist ids toggled when the list first loads
	Transfer TransferFunc
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	runCtx context.Context
	cancel context.CancelFunc
	opts   Options
	view   ViewState
	width  int
	height int

	playlistList list.Model
	loaded       bool
	selected     []models.Playlist

	decider  *Decider
	updates  chan tasks.ProgressUpdate
	done     chan transferComplete
	current  int
	stage    tasks.Stage
	failed   bool
	step     int
	steps    int
	message  string
	pending  *decisionRequest
	summary  *tasks.Summary
	err      error
	quitting bool

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	return &Model{
		ctx:     ctx,
		opts:    opts,
		view:    PlaylistListView,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init fetches the source playlists and starts the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.playlistList.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			return m.handleTransferKeys(msg)
		case DecisionView:
			return m.handleDecisionKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.setPlaylists(data.playlists)
		return m, nil

	case MsgProgressUpdate:
		m.applyProgress(msg.data.(tasks.ProgressUpdate))
		return m, m.listen()

	case MsgDecisionRequested:
		req := msg.data.(decisionRequest)
		m.pending = &req
		m.view = DecisionView
		return m, m.listen()

	case MsgTransferComplete:
		data := msg.data.(transferComplete)
		m.drain()
		m.summary = data.summary
		m.err = data.err
		m.pending = nil
		m.view = ResultView
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PlaylistListView {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case DecisionView:
		return m.renderDecision()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) setPlaylists(playlists []models.Playlist) {
	preselected := make(map[string]bool, len(m.opts.Selected))
	for _, id := range m.opts.Selected {
		preselected[id] = true
	}

	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl, selected: preselected[pl.ID]}
	}
	m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.playlistList.Title = fmt.Sprintf("%s playlists → %s", m.opts.Source.Name(), m.opts.Target.Name())
	m.playlistList.SetShowHelp(false)
	m.playlistList.SetSize(max(m.width-4, 0), max(m.height-6, 0))
	m.loaded = true
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		if it, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			it.selected = !it.selected
			return m, m.playlistList.SetItem(m.playlistList.Index(), it)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.selected = selectedPlaylists(m.playlistList.Items())
		if len(m.selected) == 0 {
			if it, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				m.selected = []models.Playlist{it.playlist}
			}
		}
		if len(m.selected) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		return m, m.startTransfer()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PlaylistListView
	}
	return m, nil
}

func (m *Model) handleTransferKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		m.quitting = true
		if m.cancel != nil {
			m.cancel()
		}
	}
	return m, nil
}

func (m *Model) handleDecisionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var dec tasks.Decision
	switch {
	case key.Matches(msg, m.keys.retry):
		dec = tasks.Retry
		m.resetStages()
	case key.Matches(msg, m.keys.skip):
		dec = tasks.Skip
	case key.Matches(msg, m.keys.quit):
		dec = tasks.Abort
	default:
		return m, nil
	}

	m.pending = nil
	m.view = TransferView
	decider, ctx := m.decider, m.runCtx
	return m, func() tea.Msg {
		decider.reply(ctx, dec)
		return nil
	}
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.summary = nil
		m.err = nil
		m.current = 0
		m.resetStages()
		m.opts.Selected = nil
		m.loaded = false
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PlaylistListView || !m.loaded {
		return m, nil
	}
	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

// applyProgress folds one update into the per-stage status of the current playlist.
func (m *Model) applyProgress(u tasks.ProgressUpdate) {
	if _, ok := u.Data.(*tasks.Job); ok && u.Stage == tasks.LoadingSourceTracks {
		m.current = u.Step
		m.resetStages()
	}

	switch u.Stage {
	case tasks.Error:
		m.failed = true
	default:
		m.stage = u.Stage
		m.failed = false
	}
	m.step, m.steps = u.Step, u.Total
	m.message = u.Message
}

func (m *Model) resetStages() {
	m.stage = tasks.LoadingSourceTracks
	m.failed = false
	m.step, m.steps = 0, 0
	m.message = ""
}

// drain applies updates still buffered when the run finished.
func (m *Model) drain() {
	for m.updates != nil {
		select {
		case u := <-m.updates:
			m.applyProgress(u)
		default:
			return
		}
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	source, ctx := m.opts.Source, m.ctx
	return func() tea.Msg {
		playlists, err := source.ListPlaylists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) startTransfer() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.runCtx, m.cancel = ctx, cancel
	m.decider = NewDecider()
	m.updates = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan transferComplete, 1)
	m.current = 1
	m.resetStages()

	req := tasks.Request{Source: m.opts.Source.ID(), Target: m.opts.Target.ID()}
	for _, pl := range m.selected {
		req.PlaylistIDs = append(req.PlaylistIDs, pl.ID)
	}

	transfer, decider, updates, done := m.opts.Transfer, m.decider, m.updates, m.done
	go func() {
		summary, err := transfer(ctx, req, decider, updates)
		done <- transferComplete{summary, err}
	}()

	return m.listen()
}

// listen waits for the next progress update, decision request or the end of the run.
func (m *Model) listen() tea.Cmd {
	updates, requests, done := m.updates, m.decider.requests, m.done
	return func() tea.Msg {
		select {
		case u := <-updates:
			return progressUpdateMsg(u)
		case req := <-requests:
			return decisionRequestedMsg(req)
		case res := <-done:
			return transferCompleteMsg(res.summary, res.err)
		}
	}
}

func (m *Model) currentName() string {
	if m.current < 1 || m.current > len(m.selected) {
		return ""
	}
	return m.selected[m.current-1].Name
}

func (m *Model) renderPlaylistList() string {
	if !m.loaded {
		return fmt.Sprintf("%s Loading %s playlists...", m.spinner.View(), m.opts.Source.Name())
	}
	helpKeys := []key.Binding{m.keys.toggle, m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Transfer %d playlist(s) from %s to %s?",
		len(m.selected), m.opts.Source.Name(), m.opts.Target.Name())))
	b.WriteString("\n")
	for _, pl := range m.selected {
		fmt.Fprintf(&b, "  • %s\n", pl.Name)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no}))
	return b.String()
}

func (m *Model) renderStages(b *strings.Builder) {
	for _, s := range tasks.Stages {
		fmt.Fprintf(b, "  %s %s\n", styles.stageMark(s, m.stage, m.failed, m.spinner.View()), s.Title())
	}
}

func (m *Model) renderTransfer() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Transferring playlist %d/%d: %s", m.current, len(m.selected), m.currentName())))
	b.WriteString("\n")
	m.renderStages(&b)
	b.WriteString("\n")
	if m.steps > 0 && m.stage != tasks.Done {
		b.WriteString(m.bar.ViewAs(float64(m.step) / float64(m.steps)))
		b.WriteString("\n")
	}
	b.WriteString(m.message)
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderDecision() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Transfer of %q stopped", m.pending.playlist)))
	b.WriteString("\n")
	m.renderStages(&b)
	b.WriteString("\n")
	b.WriteString(styles.err.Render(fmt.Sprintf("%s failed: %v", m.pending.stage.Title(), m.pending.err)))
	fmt.Fprintf(&b, "\nAttempts: %d\n\n", m.pending.attempts)
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.retry, m.keys.skip, m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder
	switch {
	case m.summary != nil && m.summary.Aborted:
		b.WriteString(styles.warn.Render("Transfer aborted"))
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Transfer failed: %v", m.err)))
	default:
		b.WriteString(styles.ok.Render("✓ Transfer complete"))
	}
	b.WriteString("\n\n")

	if m.summary != nil {
		for _, job := range m.summary.Jobs {
			name := job.Playlist.Name
			if name == "" {
				name = job.Playlist.ID
			}
			switch {
			case job.Stage == tasks.Done:
				fmt.Fprintf(&b, "  %s %s: %s\n", styles.jobMark(job), name, job.Summary())
			case job.Skipped:
				fmt.Fprintf(&b, "  %s %s: skipped (%v)\n", styles.jobMark(job), name, job.LastError)
			default:
				fmt.Fprintf(&b, "  %s %s: %v\n", styles.jobMark(job), name, job.LastError)
			}
			for _, tr := range job.Unmatched {
				fmt.Fprintf(&b, "      not found: %s\n", tr)
			}
		}
		fmt.Fprintf(&b, "\n%d of %d playlists transferred\n\n", m.summary.Completed(), len(m.selected))
	}

	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	return b.String()
}
