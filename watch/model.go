// watch/model.go
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type updateMsg Update

type streamEndedMsg struct{ err error }

// Model renders the live progress of one job.
type Model struct {
	jobID   string
	updates <-chan Update
	ended   <-chan error

	bar  progress.Model
	job  *domain.Job
	gone string
	err  error
	done bool
}

func NewModel(jobID string, updates <-chan Update, ended <-chan error) Model {
	return Model{
		jobID:   jobID,
		updates: updates,
		ended:   ended,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m Model) Init() tea.Cmd {
	return m.next()
}

// next waits for the following stream event, or for the stream's final error once it closes.
func (m Model) next() tea.Cmd {
	updates, ended := m.updates, m.ended
	return func() tea.Msg {
		if u, ok := <-updates; ok {
			return updateMsg(u)
		}
		return streamEndedMsg{err: <-ended}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 8
		if width > 60 {
			width = 60
		}
		if width < 10 {
			width = 10
		}
		m.bar.Width = width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case updateMsg:
		if msg.Error != "" {
			m.gone = msg.Error
		} else if msg.Job != nil {
			m.job = msg.Job
		}
		return m, m.next()
	case streamEndedMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("yapper job " + m.jobID))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	case m.gone != "":
		b.WriteString(errorStyle.Render(m.gone))
	case m.job == nil:
		b.WriteString(mutedStyle.Render("waiting for first update..."))
	default:
		b.WriteString(m.jobView())
	}

	if !m.done {
		b.WriteString("\n\n" + mutedStyle.Render("q to quit"))
	}
	return panelStyle.Render(b.String()) + "\n"
}

func (m Model) jobView() string {
	job := m.job
	status := string(job.Status)
	switch job.Status {
	case domain.JobStatusFinished:
		status = okStyle.Render(status)
	case domain.JobStatusError:
		status = errorStyle.Render(status)
	}

	lines := []string{
		fmt.Sprintf("%s  %s", status, mutedStyle.Render(job.CurrentTask)),
		m.bar.ViewAs(float64(job.Progress) / 100),
		mutedStyle.Render(fmt.Sprintf("%d/%d clips ready", len(job.FinishedOutputs), len(job.Highlights))),
	}
	if job.ErrorMessage != "" {
		lines = append(lines, errorStyle.Render(job.ErrorMessage))
	}
	if job.Status == domain.JobStatusFinished {
		for _, out := range job.FinishedOutputs {
			lines = append(lines, "  "+out)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Job returns the last snapshot received, if any.
func (m Model) Job() *domain.Job { return m.job }

// Err reports why the stream ended abnormally.
func (m Model) Err() error {
	if m.err != nil {
		return m.err
	}
	if m.gone != "" {
		return errors.New(m.gone)
	}
	return nil
}

// Run streams jobID from the server at baseURL and renders it until the job ends.
// The final snapshot's status is returned so callers can pick an exit code.
func Run(ctx context.Context, baseURL, jobID string, in io.Reader, out io.Writer) (domain.JobStatus, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan Update)
	ended := make(chan error, 1)
	client := NewClient(baseURL)
	go func() {
		ended <- client.Stream(ctx, jobID, updates)
	}()

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	final, err := tea.NewProgram(NewModel(jobID, updates, ended), opts...).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return "", err
	}

	m, ok := final.(Model)
	if !ok {
		return "", nil
	}
	if err := m.Err(); err != nil {
		return "", err
	}
	if m.Job() == nil {
		return "", nil
	}
	return m.Job().Status, nil
}
