package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/scheduler"
	"github.com/nhle/phoenix-warmup/internal/service"
	"github.com/nhle/phoenix-warmup/internal/theme"
	"github.com/nhle/phoenix-warmup/internal/ui"
	"github.com/nhle/phoenix-warmup/internal/ui/command"
	"github.com/nhle/phoenix-warmup/internal/ui/confirm"
	"github.com/nhle/phoenix-warmup/internal/ui/dashboard"
	"github.com/nhle/phoenix-warmup/internal/ui/detail"
	helpview "github.com/nhle/phoenix-warmup/internal/ui/help"
	"github.com/nhle/phoenix-warmup/internal/ui/inboxform"
	"github.com/nhle/phoenix-warmup/internal/ui/recipients"
	"github.com/nhle/phoenix-warmup/internal/ui/settings"
	"github.com/nhle/phoenix-warmup/internal/ui/stageform"
)

const defaultRefresh = 5 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewDetail
	ViewAddInbox
	ViewStage
	ViewConfirm
	ViewRecipients
	ViewSettings
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model. It routes input to the active view
// and turns user actions into service calls.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	svc          *service.Service
	keys         *keys.KeyMap
	dashboard    dashboard.Model
	detail       detail.Model
	inboxForm    inboxform.Model
	stageForm    stageform.Model
	confirm      confirm.Model
	recipients   recipients.Model
	settings     settings.Model
	helpView     helpview.Model
	commandView  command.Model
	refresh      time.Duration
	notice       string
	noticeErr    bool
	quitting     bool
	ready        bool
}

// New creates the root model for svc.
func New(svc *service.Service) Model {
	k := keys.DefaultKeyMap()
	refresh := defaultRefresh
	if sec := svc.Config.Display.RefreshSec; sec > 0 {
		refresh = time.Duration(sec) * time.Second
	}

	return Model{
		currentView: ViewDashboard,
		svc:         svc,
		keys:        k,
		dashboard:   dashboard.New(k, svc.Config.Display.FeedSize, 80, 24),
		detail:      detail.New(k, 80, 24),
		inboxForm:   inboxform.New(svc.AddInbox, 80, 24),
		stageForm:   stageform.New(80),
		confirm:     confirm.New(80),
		recipients:  recipients.New(svc, k, 80, 24),
		settings:    settings.New(svc.SaveWarmup, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		refresh:     refresh,
	}
}

// Init starts the event bridge and the refresh timer, and loads the
// first snapshot.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadSnapshot(m.svc),
		waitForEvent(m.svc),
		tick(m.refresh),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.dashboard.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.inboxForm.SetSize(w, h)
		m.stageForm.SetSize(w, h)
		m.confirm.SetSize(w, h)
		m.recipients.SetSize(w, h)
		m.settings.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// huh forms size themselves from the window message
		return m.updateActiveView(msg)

	case eventMsg:
		m.dashboard.PushEvents(msg...)
		return m, tea.Batch(waitForEvent(m.svc), loadSnapshot(m.svc))

	case snapshotMsg:
		if msg.err != nil {
			m.setNotice("", msg.err)
			return m, nil
		}
		m.dashboard.SetSnapshot(msg.snap)
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tick(m.refresh), loadSnapshot(m.svc)}
		if m.currentView == ViewDetail && m.detail.Email() != "" {
			cmds = append(cmds, m.loadDetail(m.detail.Email()))
		}
		return m, tea.Batch(cmds...)

	case opResultMsg:
		m.setNotice(msg.notice, msg.err)
		cmds := []tea.Cmd{loadSnapshot(m.svc)}
		if m.currentView == ViewDetail && m.detail.Email() != "" {
			cmds = append(cmds, m.loadDetail(m.detail.Email()))
		}
		return m, tea.Batch(cmds...)

	case dashboard.SelectedInboxMsg:
		m.switchTo(ViewDetail)
		m.detail.SetLoading(true)
		return m, m.loadDetail(msg.Email)

	case detail.LoadedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case detail.BackMsg:
		m.currentView = ViewDashboard
		return m, nil

	case detail.ActionMsg:
		return m, m.inboxAction(msg.Action, msg.Email)

	case inboxform.SavedMsg:
		m.currentView = ViewDashboard
		m.setNotice("Added "+msg.Email, nil)
		return m, loadSnapshot(m.svc)

	case inboxform.CancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case stageform.ChosenMsg:
		m.currentView = m.previousView
		return m, m.setStage(msg.Email, msg.Stage)

	case stageform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case confirm.ResultMsg:
		m.currentView = m.previousView
		return m, m.confirmed(msg)

	case recipients.CloseMsg:
		m.currentView = ViewDashboard
		return m, loadSnapshot(m.svc)

	case recipients.ChangedMsg:
		return m, loadSnapshot(m.svc)

	case settings.SavedMsg:
		m.currentView = ViewDashboard
		m.setNotice("Settings saved", nil)
		return m, nil

	case settings.CancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleKey processes global and dashboard keys. It reports false when
// the key belongs to the active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if !m.acceptsGlobalKeys() {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.switchTo(ViewHelp)
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		if m.currentView == ViewCommand {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.switchTo(ViewCommand)
		return m, m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Back) && (m.currentView == ViewHelp || m.currentView == ViewCommand):
		m.currentView = m.previousView
		return m, nil, true
	}

	if m.currentView != ViewDashboard {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Toggle):
		return m, m.toggleScheduler(), true
	case key.Matches(msg, m.keys.SendNow):
		return m, m.runJob(scheduler.JobWarmup), true
	case key.Matches(msg, m.keys.ReplyNow):
		return m, m.runJob(scheduler.JobReply), true
	case key.Matches(msg, m.keys.Refresh):
		return m, loadSnapshot(m.svc), true
	case key.Matches(msg, m.keys.Add):
		return m, m.openAddInbox(), true
	case key.Matches(msg, m.keys.Recipients):
		return m, m.openRecipients(), true
	case key.Matches(msg, m.keys.Settings):
		return m, m.openSettings(), true
	}

	in, ok := m.dashboard.Selected()
	if !ok {
		return m, nil, false
	}
	for _, a := range []struct {
		binding key.Binding
		action  string
	}{
		{m.keys.Pause, detail.ActionPause},
		{m.keys.Stage, detail.ActionStage},
		{m.keys.Reset, detail.ActionReset},
		{m.keys.Test, detail.ActionTest},
		{m.keys.Delete, detail.ActionDelete},
	} {
		if key.Matches(msg, a.binding) {
			return m, m.inboxAction(a.action, in.Email), true
		}
	}
	return m, nil, false
}

// acceptsGlobalKeys is false while a form has keyboard focus.
func (m Model) acceptsGlobalKeys() bool {
	switch m.currentView {
	case ViewDashboard, ViewDetail, ViewHelp, ViewCommand:
		return true
	}
	return false
}

func (m *Model) switchTo(v ViewState) {
	if m.currentView != v {
		m.previousView = m.currentView
	}
	m.currentView = v
}

func (m Model) quit() (tea.Model, tea.Cmd, bool) {
	if m.quitting {
		return m, nil, true
	}
	m.quitting = true
	m.setNotice("Stopping scheduler...", nil)
	return m, m.shutdown(), true
}

func (m *Model) setNotice(notice string, err error) {
	m.noticeErr = err != nil
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = notice
}

func (m *Model) openAddInbox() tea.Cmd {
	m.switchTo(ViewAddInbox)
	return m.inboxForm.Start(m.svc.Settings.Warmup())
}

func (m *Model) openRecipients() tea.Cmd {
	m.switchTo(ViewRecipients)
	return m.recipients.Init()
}

func (m *Model) openSettings() tea.Cmd {
	m.switchTo(ViewSettings)
	return m.settings.Start(m.svc.Settings.Warmup())
}

// inboxAction dispatches an action from the dashboard or the detail view.
func (m *Model) inboxAction(action, email string) tea.Cmd {
	switch action {
	case detail.ActionPause:
		return m.togglePause(email)
	case detail.ActionReset:
		return m.resetCounters(email)
	case detail.ActionTest:
		m.setNotice("Testing "+email+"...", nil)
		return m.testInbox(email)
	case detail.ActionStage:
		stage := 1
		for _, in := range m.dashboard.Snapshot().Inboxes {
			if in.Email == email {
				stage = in.Stage
			}
		}
		m.switchTo(ViewStage)
		return m.stageForm.Start(email, stage)
	case detail.ActionDelete:
		m.switchTo(ViewConfirm)
		return m.confirm.Ask("delete:"+email,
			fmt.Sprintf("Delete inbox %s?", email),
			"Its counters are removed. Activity log rows are kept.")
	}
	return nil
}

func (m *Model) confirmed(res confirm.ResultMsg) tea.Cmd {
	if !res.Confirmed {
		return nil
	}
	verb, arg, _ := strings.Cut(res.ID, ":")
	switch verb {
	case "delete":
		if m.currentView == ViewDetail {
			m.currentView = ViewDashboard
		}
		return m.removeInbox(arg)
	case "reset":
		return m.resetCounters("")
	}
	return nil
}

// executeCommand handles a line from the command palette.
func (m *Model) executeCommand(line string) tea.Cmd {
	verb, arg := command.Parse(line)
	switch verb {
	case "start":
		if m.svc.Running() {
			return nil
		}
		return m.toggleScheduler()
	case "stop":
		if !m.svc.Running() {
			return nil
		}
		return m.toggleScheduler()
	case "send":
		return m.runJob(scheduler.JobWarmup)
	case "reply":
		return m.runJob(scheduler.JobReply)
	case "reset":
		if arg == "" || arg == "all" {
			m.switchTo(ViewConfirm)
			return m.confirm.Ask("reset:all", "Reset today's counters for every inbox?", "")
		}
		return m.resetCounters(arg)
	case "add":
		return m.openAddInbox()
	case "recipients":
		return m.openRecipients()
	case "settings":
		return m.openSettings()
	case "seed":
		return m.seed(arg)
	case "refresh":
		return loadSnapshot(m.svc)
	case "help":
		m.switchTo(ViewHelp)
		return nil
	case "quit", "q":
		if m.quitting {
			return nil
		}
		m.quitting = true
		m.setNotice("Stopping scheduler...", nil)
		return m.shutdown()
	default:
		m.setNotice("", fmt.Errorf("unknown command %q", line))
		return nil
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewAddInbox:
		m.inboxForm, cmd = m.inboxForm.Update(msg)
	case ViewStage:
		m.stageForm, cmd = m.stageForm.Update(msg)
	case ViewConfirm:
		m.confirm, cmd = m.confirm.Update(msg)
	case ViewRecipients:
		m.recipients, cmd = m.recipients.Update(msg)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Phoenix Warm-up", m.schedulerStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.renderNotice())
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDashboard:
		return m.dashboard.View()
	case ViewDetail:
		return m.detail.View()
	case ViewAddInbox:
		return m.inboxForm.View()
	case ViewStage:
		return m.stageForm.View()
	case ViewConfirm:
		return m.confirm.View()
	case ViewRecipients:
		return m.recipients.View()
	case ViewSettings:
		return m.settings.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) schedulerStatus() string {
	snap := m.dashboard.Snapshot()
	status := theme.RunningBadge(m.svc.Running())
	if m.svc.Running() {
		status += fmt.Sprintf(" send %s  reply %s", snap.NextSend, snap.NextReply)
	}
	return status
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return theme.ErrorTextStyle.Render(m.notice)
	}
	return m.notice
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | p pause/resume | e stage | r reset | t test | d delete"
	case ViewAddInbox, ViewStage, ViewConfirm, ViewSettings:
		return "enter submit | esc cancel"
	case ViewRecipients:
		return "n add | s seed | x deactivate | d delete | esc back"
	default:
		return "s start/stop | a add | p pause | e stage | d delete | enter detail | R recipients | c settings | ? help | q quit"
	}
}
