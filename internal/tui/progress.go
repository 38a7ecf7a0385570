package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// maxRecent bounds the resolved-question log shown under the counters.
const maxRecent = 6

// ProgressState tracks the live state of one run.
type ProgressState struct {
	RunID    string
	Round    int
	MaxDepth int
	Pending  int
	Dropped  int
	Resolved map[models.Source]int
	Stats    models.Stats
	Recent   []ResolvedLine
	Finished bool
}

// ResolvedLine is one entry of the resolved-question log.
type ResolvedLine struct {
	Question string
	Source   models.Source
}

// ProgressEventMsg carries one engine event into the program.
type ProgressEventMsg struct {
	Event models.Event
}

// ProgressDoneMsg is sent when the run returns.
type ProgressDoneMsg struct {
	Err error
}

// ProgressApp is the bubbletea model behind `ask --progress`.
type ProgressApp struct {
	state    ProgressState
	spinner  spinner.Model
	done     bool
	err      error
	quitting bool
	width    int

	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	valueStyle  lipgloss.Style
	roundStyle  lipgloss.Style
	kbStyle     lipgloss.Style
	webStyle    lipgloss.Style
	noneStyle   lipgloss.Style
	dimStyle    lipgloss.Style
	errorStyle  lipgloss.Style
	doneStyle   lipgloss.Style
}

// NewProgressApp creates a progress model for a run bounded by maxDepth.
func NewProgressApp(maxDepth int) *ProgressApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &ProgressApp{
		state: ProgressState{
			MaxDepth: maxDepth,
			Resolved: make(map[models.Source]int),
		},
		spinner: sp,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		roundStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		kbStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		webStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		noneStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dimStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		errorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		doneStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
	}
}

// State returns a snapshot of the current progress state.
func (a *ProgressApp) State() ProgressState {
	s := a.state
	s.Resolved = make(map[models.Source]int, len(a.state.Resolved))
	for k, v := range a.state.Resolved {
		s.Resolved[k] = v
	}
	s.Recent = append([]ResolvedLine(nil), a.state.Recent...)
	return s
}

// Done reports whether the run has returned.
func (a *ProgressApp) Done() bool {
	return a.done
}

// Err returns the error the run ended with, if any.
func (a *ProgressApp) Err() error {
	return a.err
}

// Init implements tea.Model.
func (a *ProgressApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *ProgressApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case ProgressEventMsg:
		a.applyEvent(msg.Event)

	case ProgressDoneMsg:
		a.done = true
		a.err = msg.Err
		return a, tea.Quit
	}

	return a, nil
}

func (a *ProgressApp) applyEvent(ev models.Event) {
	if ev.RunID != "" {
		a.state.RunID = ev.RunID
	}
	switch ev.Type {
	case models.EventRoundStarted:
		a.state.Round = ev.Round
		a.state.Pending = ev.Pending
		a.state.Dropped += ev.Dropped
	case models.EventQuestionResolved:
		a.state.Resolved[ev.Source]++
		if a.state.Pending > 0 {
			a.state.Pending--
		}
		a.state.Recent = append(a.state.Recent, ResolvedLine{Question: ev.Question, Source: ev.Source})
		if len(a.state.Recent) > maxRecent {
			a.state.Recent = a.state.Recent[len(a.state.Recent)-maxRecent:]
		}
	case models.EventRoundFinished:
		a.state.Stats = ev.Stats
	case models.EventRunFinished:
		a.state.Stats = ev.Stats
		a.state.Finished = true
	}
}

// View implements tea.Model.
func (a *ProgressApp) View() string {
	if a.quitting && !a.done {
		return "Cancelled.\n"
	}

	var b strings.Builder

	if a.done {
		b.WriteString(a.headerStyle.Render("quarry"))
	} else {
		b.WriteString(a.spinner.View())
		b.WriteString(" ")
		b.WriteString(a.headerStyle.Render("quarry is digging"))
	}
	b.WriteString("\n\n")

	round := fmt.Sprintf("%d/%d", a.state.Round+1, a.state.MaxDepth+1)
	b.WriteString(a.labelStyle.Render("Round:"))
	b.WriteString(a.roundStyle.Render(round))
	b.WriteString("\n")

	b.WriteString(a.labelStyle.Render("Pending:"))
	b.WriteString(a.valueStyle.Render(fmt.Sprintf("%d", a.state.Pending)))
	b.WriteString("  ")
	b.WriteString(a.dimStyle.Render(fmt.Sprintf("(%d duplicates dropped)", a.state.Dropped)))
	b.WriteString("\n")

	b.WriteString(a.labelStyle.Render("Answered:"))
	b.WriteString(fmt.Sprintf("%s kb  %s web  %s none",
		a.kbStyle.Render(fmt.Sprintf("%d", a.state.Resolved[models.SourceKnowledgeBase])),
		a.webStyle.Render(fmt.Sprintf("%d", a.state.Resolved[models.SourceWeb])),
		a.noneStyle.Render(fmt.Sprintf("%d", a.state.Resolved[models.SourceNone]))))
	b.WriteString("\n")

	if len(a.state.Recent) > 0 {
		b.WriteString("\n")
		for _, line := range a.state.Recent {
			b.WriteString("  ")
			b.WriteString(a.sourceStyle(line.Source).Render(fmt.Sprintf("%-14s", line.Source.Label())))
			b.WriteString(" ")
			b.WriteString(a.truncate(line.Question))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	case a.done:
		st := a.state.Stats
		b.WriteString(a.doneStyle.Render(fmt.Sprintf("Done: %d answered, %d generated, %d rounds",
			st.QuestionsAnswered, st.TotalGenerated, st.Rounds)))
	default:
		b.WriteString(a.dimStyle.Render("Press q to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

func (a *ProgressApp) sourceStyle(s models.Source) lipgloss.Style {
	switch s {
	case models.SourceKnowledgeBase:
		return a.kbStyle
	case models.SourceWeb:
		return a.webStyle
	default:
		return a.noneStyle
	}
}

func (a *ProgressApp) truncate(s string) string {
	limit := 60
	if a.width > 24 {
		limit = a.width - 20
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

// Sender is the part of *tea.Program that event forwarding needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ForwardEvents sends every event from events into p until the channel is
// closed.
func ForwardEvents(p Sender, events <-chan models.Event) {
	for ev := range events {
		p.Send(ProgressEventMsg{Event: ev})
	}
}

// NewProgressProgram creates a bubbletea program for the progress view.
// It renders to stderr so stdout stays free for the result.
func NewProgressProgram(maxDepth int, opts ...tea.ProgramOption) (*tea.Program, *ProgressApp) {
	app := NewProgressApp(maxDepth)
	opts = append([]tea.ProgramOption{tea.WithOutput(os.Stderr)}, opts...)
	p := tea.NewProgram(app, opts...)
	return p, app
}
