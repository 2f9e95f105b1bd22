package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wippyai/elfkit/object"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	implicitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserState int

const (
	stateList browserState = iota
	stateFilter
	stateDetail
)

type browserModel struct {
	layout   *object.Layout
	filename string
	visible  []*object.PlacedSection
	filter   textinput.Model
	detail   viewport.Model
	selected int
	width    int
	height   int
	state    browserState
}

func newBrowserModel(filename string, l *object.Layout) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "section name"
	ti.Prompt = "/"
	ti.Width = 40
	m := &browserModel{
		layout:   l,
		filename: filename,
		filter:   ti,
		detail:   viewport.New(80, 20),
		state:    stateList,
	}
	m.applyFilter()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) applyFilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, s := range m.layout.Sections {
		if needle == "" || strings.Contains(strings.ToLower(s.Header().Name), needle) {
			m.visible = append(m.visible, s)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = msg.Width
		m.detail.Height = max(msg.Height-4, 1)
		return m, nil

	case tea.KeyMsg:
		if m.state == stateFilter {
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateList
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "/":
			if m.state == stateList {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "enter":
			if m.state == stateList && len(m.visible) > 0 {
				m.detail.SetContent(m.describe(m.visible[m.selected]))
				m.detail.GotoTop()
				m.state = stateDetail
			}

		case "esc":
			if m.state == stateDetail {
				m.state = stateList
			}
		}
	}

	if m.state == stateDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

// describe renders the placed header of s followed by its decoded contents.
func (m *browserModel) describe(s *object.PlacedSection) string {
	var b strings.Builder
	h := s.Header()
	fmt.Fprintf(&b, "Index:    %d\n", s.Index)
	fmt.Fprintf(&b, "Type:     %s\n", object.SectionTypes.Name(h.Type))
	fmt.Fprintf(&b, "Flags:    %s\n", strings.Join(object.SectionFlags.Names(h.Flags), " "))
	fmt.Fprintf(&b, "Address:  0x%x\n", s.Address)
	fmt.Fprintf(&b, "Offset:   0x%x\n", s.Offset)
	fmt.Fprintf(&b, "Size:     %s (%d)\n", humanize.IBytes(s.Size), s.Size)
	fmt.Fprintf(&b, "Link:     %d\n", s.Link)
	fmt.Fprintf(&b, "Info:     %d\n", s.Info)
	fmt.Fprintf(&b, "Align:    %d\n", s.Align)
	fmt.Fprintf(&b, "EntSize:  %d\n\n", s.EntSize)

	switch sec := s.Section.(type) {
	case *object.SymbolTableSection:
		for i, sym := range sec.Symbols {
			where := sym.Section
			if where == "" {
				where = object.SpecialSections.Name(sym.Index)
			}
			fmt.Fprintf(&b, "%4d %016x %6d %-8s %-7s %-12s %s\n", i+1, sym.Value, sym.Size,
				object.SymTypes.Name(sym.Type), object.SymBinds.Name(sym.Binding), where, sym.Name)
		}
	case *object.VersionDefinitionSection:
		for i, e := range sec.Entries {
			fmt.Fprintf(&b, "%d: rev %d flags 0x%x index %d hash 0x%08x %s\n",
				i, e.Version, e.Flags, e.VersionNdx, e.Hash, strings.Join(e.Names, " "))
		}
	case *object.VersionSymbolSection:
		for i, v := range sec.Versions {
			fmt.Fprintf(&b, "%4d: %d\n", i, v)
		}
	case *object.NoBitsSection:
		b.WriteString("(no file contents)\n")
	default:
		b.WriteString(hex.Dump(s.Content))
	}
	return b.String()
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ELF Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		for i, s := range m.visible {
			line := m.formatSection(s)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • / filter • q quit"))

	case stateDetail:
		s := m.visible[m.selected]
		b.WriteString(nameStyle.Render(s.Header().Name))
		b.WriteString("\n")
		b.WriteString(m.detail.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

func (m *browserModel) formatSection(s *object.PlacedSection) string {
	line := fmt.Sprintf("%3d %-20s %s 0x%08x %8s", s.Index, s.Header().Name,
		typeStyle.Render(fmt.Sprintf("%-16s", object.SectionTypes.Name(s.Header().Type))),
		s.Address, humanize.IBytes(s.Size))
	if s.Implicit {
		line += implicitStyle.Render(" implicit")
	}
	return line
}

func runInteractive(filename string, l *object.Layout) error {
	p := tea.NewProgram(newBrowserModel(filename, l), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
