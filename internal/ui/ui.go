package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playlog/internal/formatter"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TopView ViewState = iota
	DailyView
	RunView
	ResultView
)

// History is the read side shown in the list views.
type History interface {
	TopTracks(ctx context.Context, n int) ([]repositories.TrackPlayCount, error)
	PlaysPerDay(ctx context.Context) ([]repositories.DailyPlays, error)
}

// Pipeline runs the ETL, reporting progress on the channel.
type Pipeline interface {
	Run(ctx context.Context, opts tasks.RunOptions, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

// Options configures a [Model].
type Options struct {
	TopN int              // tracks listed in [TopView]
	Run  tasks.RunOptions // options for runs started with r
	// Notice is shown instead of starting a run when Pipeline is nil.
	Notice string
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	history  History
	pipeline Pipeline
	opts     Options

	width     int
	height    int
	topList   list.Model
	dailyList list.Model
	spinner   spinner.Model

	progressChan <-chan tasks.ProgressUpdate
	done         <-chan runCompleteMsg
	cancel       context.CancelFunc
	progress     tasks.ProgressUpdate
	result       *tasks.RunResult
	runErr       error
	quitting     bool

	notice string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model. pipeline may be nil, in which case runs are disabled.
func NewModel(ctx context.Context, history History, pipeline Pipeline, opts Options) *Model {
	if opts.TopN <= 0 {
		opts.TopN = repositories.DefaultTopN
	}

	return &Model{
		ctx:       ctx,
		view:      TopView,
		history:   history,
		pipeline:  pipeline,
		opts:      opts,
		topList:   newList("Top tracks"),
		dailyList: newList("Plays per day"),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// ViewState returns the active view.
func (m *Model) ViewState() ViewState { return m.view }

// Err returns the error that stopped the TUI, if any.
func (m *Model) Err() error { return m.err }

// Result returns the outcome of the last run.
func (m *Model) Result() (*tasks.RunResult, error) { return m.result, m.runErr }

// Init loads the history shown in the list views.
func (m *Model) Init() tea.Cmd {
	return m.loadHistory()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.topList.SetSize(msg.Width-4, msg.Height-6)
		m.dailyList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case historyLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		return m, tea.Batch(
			m.topList.SetItems(trackItems(msg.top)),
			m.dailyList.SetItems(dayItems(msg.daily)),
		)

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.result = msg.result
		m.runErr = msg.err
		m.progressChan = nil
		m.done = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if m.quitting {
			return m, tea.Quit
		}
		m.view = ResultView
		return m, m.loadHistory()

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateLists(msg)
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		if m.view == RunView && m.cancel != nil {
			// wait for the pipeline to stop before quitting
			m.quitting = true
			m.cancel()
			return m, nil
		}
		return m, tea.Quit
	}

	switch m.view {
	case TopView, DailyView:
		switch {
		case key.Matches(msg, m.keys.tab):
			if m.view == TopView {
				m.view = DailyView
			} else {
				m.view = TopView
			}
			return m, nil
		case key.Matches(msg, m.keys.run):
			if m.pipeline == nil {
				m.notice = m.opts.Notice
				return m, nil
			}
			m.notice = ""
			m.view = RunView
			return m, tea.Batch(m.startRun(), m.spinner.Tick)
		}
	case ResultView:
		if key.Matches(msg, m.keys.back) {
			m.view = TopView
			return m, nil
		}
		return m, nil
	case RunView:
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TopView:
		m.topList, cmd = m.topList.Update(msg)
	case DailyView:
		m.dailyList, cmd = m.dailyList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		top, err := m.history.TopTracks(m.ctx, m.opts.TopN)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		daily, err := m.history.PlaysPerDay(m.ctx)
		return historyLoadedMsg{top: top, daily: daily, err: err}
	}
}

func (m *Model) startRun() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan runCompleteMsg, 1)

	m.cancel = cancel
	m.progressChan = progress
	m.done = done
	m.progress = tasks.ProgressUpdate{}

	go func() {
		result, err := m.pipeline.Run(ctx, m.opts.Run, progress)
		close(progress)
		done <- runCompleteMsg{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return formatter.Styles.Err(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case TopView:
		return m.renderList(m.topList)
	case DailyView:
		return m.renderList(m.dailyList)
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderList(l list.Model) string {
	view := fmt.Sprintf("%s\n\n%s", l.View(), m.help.ShortHelpView(m.keys.ShortHelp()))
	if m.notice != "" {
		view += "\n" + formatter.Styles.Warn(m.notice)
	}
	return view
}

func (m *Model) renderRun() string {
	title := formatter.Styles.Title("Running pipeline")

	status := "Starting..."
	if m.progress.Total > 0 {
		status = fmt.Sprintf("[%d/%d] %s", m.progress.Step, m.progress.Total, m.progress.Message)
	}
	if m.quitting {
		status = "Stopping..."
	}

	return fmt.Sprintf("%s\n\n%s %s", title, m.spinner.View(), status)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.runErr != nil {
		return fmt.Sprintf("%s\n\n%s",
			formatter.Styles.Err(fmt.Sprintf("Run failed: %v", m.runErr)), helpView)
	}
	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", formatter.Styles.Err("No result available"), helpView)
	}

	title := formatter.Styles.OK("✓ Run complete")
	info := fmt.Sprintf(
		"\nFetched: %d\nPlays:   %d\nTracks:  %d\nArtists: %d",
		m.result.Fetched, m.result.Plays, m.result.Tracks, m.result.Artists,
	)
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
