// Package ui renders build progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"rp6502/internal/buildpipeline"
)

// Share of the bar owned by the compile units; link and package split the rest.
const compileShare = 0.8

type progressModel struct {
	title      string
	events     <-chan buildpipeline.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []fileItem
	index      map[string]int
	stage      buildpipeline.Stage
	stageLabel string
	failed     bool
	width      int
	done       bool
}

type fileItem struct {
	path   string
	status buildpipeline.Status
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders build progress
// for files until events is closed.
func NewProgressModel(title string, files []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file, status: buildpipeline.StatusQueued})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(buildpipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.header()))
	b.WriteString("\n\n")

	nameWidth := max(m.width-14, 20)
	for _, item := range m.items {
		label := fmt.Sprintf("%10s", fileLabel(item.status))
		fmt.Fprintf(&b, "  %s %s\n", styleStatus(item.status).Render(label), truncate(item.path, nameWidth))
	}

	b.WriteString("\n")
	if m.done && !m.failed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

// header is "<spinner> title (stage)" while running and "done: title" or
// "failed: title (stage failed)" once events is closed.
func (m *progressModel) header() string {
	h := m.title
	if m.stageLabel != "" {
		h += " (" + m.stageLabel + ")"
	}
	switch {
	case m.done && m.failed:
		return "failed: " + h
	case m.done:
		return "done: " + h
	default:
		return m.spinner.View() + " " + h
	}
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	if ev.Status == buildpipeline.StatusError {
		m.failed = true
	}
	if ev.File == "" {
		m.stage = ev.Stage
		m.stageLabel = stageLabel(ev.Stage, ev.Status)
		return m.prog.SetPercent(m.percent())
	}
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	m.items[idx].status = ev.Status
	return m.prog.SetPercent(m.percent())
}

// percent weighs finished compile units, then the link and package stages.
func (m *progressModel) percent() float64 {
	switch m.stage {
	case buildpipeline.StageLink:
		return compileShare
	case buildpipeline.StagePackage:
		return compileShare + (1-compileShare)/2
	}
	if len(m.items) == 0 {
		return 0
	}
	finished := 0
	for _, item := range m.items {
		switch item.status {
		case buildpipeline.StatusDone, buildpipeline.StatusCached, buildpipeline.StatusError:
			finished++
		}
	}
	return compileShare * float64(finished) / float64(len(m.items))
}

func stageLabel(stage buildpipeline.Stage, status buildpipeline.Status) string {
	if status == buildpipeline.StatusError {
		return string(stage) + " failed"
	}
	switch stage {
	case buildpipeline.StageToolchain:
		return "locating cc65"
	case buildpipeline.StageCompile:
		return "compiling"
	case buildpipeline.StageLink:
		return "linking"
	case buildpipeline.StagePackage:
		return "packaging"
	default:
		return ""
	}
}

func fileLabel(status buildpipeline.Status) string {
	if status == buildpipeline.StatusWorking {
		return "compiling"
	}
	return string(status)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	statusStyles = map[buildpipeline.Status]lipgloss.Style{
		buildpipeline.StatusQueued:  lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		buildpipeline.StatusWorking: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		buildpipeline.StatusDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		buildpipeline.StatusCached:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		buildpipeline.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

func styleStatus(status buildpipeline.Status) lipgloss.Style {
	if st, ok := statusStyles[status]; ok {
		return st
	}
	return statusStyles[buildpipeline.StatusQueued]
}

// truncate fits value into width terminal cells, "..." included.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
