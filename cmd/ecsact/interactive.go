package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/ecsact-runtime/app"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type section struct {
	title string
	count string
	lines []string
}

type modelState int

const (
	stateBrowse modelState = iota
	stateNewRegistry
)

// inspectorModel browses a loaded runtime. Every runtime call happens in
// Update, on the program's event loop goroutine.
type inspectorModel struct {
	err      error
	c        *app.Context
	expanded map[int]bool
	result   string
	sections []section
	input    textinput.Model
	selected int
	state    modelState
}

func newInspectorModel(c *app.Context) *inspectorModel {
	m := &inspectorModel{
		c:        c,
		expanded: make(map[int]bool),
		state:    stateBrowse,
	}
	m.refresh()
	return m
}

func (m *inspectorModel) Init() tea.Cmd {
	return nil
}

// refresh rebuilds every section from the runtime.
func (m *inspectorModel) refresh() {
	rt := m.c.Runtime()
	var sections []section

	for _, g := range groups(rt) {
		sections = append(sections, section{
			title: "entry points: " + string(g.group),
			count: fmt.Sprintf("%d/%d", len(g.available), g.total),
			lines: g.available,
		})
	}

	info, err := static(rt)
	if err != nil {
		m.err = err
	}
	comps := section{title: "components", count: fmt.Sprint(len(info.components))}
	for _, c := range info.components {
		comps.lines = append(comps.lines, fmt.Sprintf("%d %s (%d bytes)", c.ID, c.Name, c.Size))
	}
	systems := section{title: "systems", count: fmt.Sprint(len(info.systems))}
	for _, s := range info.systems {
		systems.lines = append(systems.lines, fmt.Sprintf("%d %s [%s]", s.ID, s.Name, capabilities(s.Capabilities)))
	}
	actions := section{title: "actions", count: fmt.Sprint(len(info.actions))}
	for _, a := range info.actions {
		actions.lines = append(actions.lines, fmt.Sprintf("%d %s (%d bytes)", a.ID, a.Name, a.Size))
	}

	regs := registries(rt)
	registrySection := section{title: "registries", count: fmt.Sprint(len(regs))}
	for _, r := range regs {
		registrySection.lines = append(registrySection.lines, fmt.Sprintf("%d %s entities=%d", r.id, r.name, r.entities))
	}

	m.sections = append(sections, comps, systems, actions, registrySection)
	if m.selected >= len(m.sections) {
		m.selected = len(m.sections) - 1
	}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.state == stateNewRegistry {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.state == stateNewRegistry {
		switch key.String() {
		case "enter":
			m.createRegistry(strings.TrimSpace(m.input.Value()))
			m.state = stateBrowse
			return m, nil
		case "esc":
			m.state = stateBrowse
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.sections)-1 {
			m.selected++
		}

	case "enter", " ":
		m.expanded[m.selected] = !m.expanded[m.selected]

	case "r":
		m.err = nil
		m.refresh()
		m.result = "refreshed"

	case "f":
		m.flush()

	case "e":
		m.execute()

	case "n":
		m.input = textinput.New()
		m.input.Placeholder = "registry name"
		m.input.Prompt = "name: "
		m.input.Width = 40
		m.input.Focus()
		m.state = stateNewRegistry
		return m, textinput.Blink
	}

	return m, nil
}

func (m *inspectorModel) flush() {
	if err := m.c.Runtime().Async().FlushEvents(); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.result = "async events flushed, state " + m.c.Runtime().Async().State().String()
	m.refresh()
}

func (m *inspectorModel) execute() {
	rt := m.c.Runtime()
	regs := registries(rt)
	for _, r := range regs {
		if err := rt.Core().ExecuteSystems(r.id); err != nil {
			m.err = err
			return
		}
	}
	m.err = nil
	m.result = fmt.Sprintf("systems executed in %d registries", len(regs))
	m.refresh()
}

func (m *inspectorModel) createRegistry(name string) {
	if name == "" {
		return
	}
	id, err := m.c.Runtime().Core().CreateRegistry(name)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.result = fmt.Sprintf("registry %s created with id %d", name, id)
	m.refresh()
}

func (m *inspectorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Ecsact Runtime"))
	b.WriteString(" ")
	b.WriteString(strings.Join(m.c.Runtime().Libraries(), ", "))
	b.WriteString("\n\n")

	for i, s := range m.sections {
		marker := "+ "
		if m.expanded[i] {
			marker = "- "
		}
		line := marker + nameStyle.Render(s.title) + " " + countStyle.Render(s.count)
		if i == m.selected {
			line = selectedStyle.Render(marker+s.title+" "+s.count)
		}
		b.WriteString(line)
		b.WriteString("\n")
		if m.expanded[i] {
			for _, l := range s.lines {
				b.WriteString("    ")
				b.WriteString(l)
				b.WriteString("\n")
			}
		}
	}
	b.WriteString("\n")

	if m.state == stateNewRegistry {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter create • esc cancel"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	} else if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • enter expand • f flush • e execute • n new registry • r refresh • q quit"))
	return b.String()
}

func runInteractive(c *app.Context) error {
	p := tea.NewProgram(newInspectorModel(c), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
