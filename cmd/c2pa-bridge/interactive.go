package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/c2pa-bridge/provenance"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	validStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserState int

const (
	stateList browserState = iota
	stateDetail
)

// browserModel lists the manifests of a store, active first, and shows the
// selected one in a scrollable view.
type browserModel struct {
	filename string
	store    *provenance.Store
	labels   []string
	selected int
	state    browserState
	detail   viewport.Model
	width    int
	height   int
}

func newBrowserModel(filename string, store *provenance.Store) *browserModel {
	labels := store.Labels()
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return &browserModel{
		filename: filename,
		store:    store,
		labels:   labels,
		detail:   viewport.New(80, 20),
		width:    80,
		height:   24,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = msg.Width
		m.detail.Height = max(msg.Height-4, 1)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.labels)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			if m.state == stateList && len(m.labels) > 0 {
				m.detail.SetContent(m.describe(m.labels[m.selected]))
				m.detail.GotoTop()
				m.state = stateDetail
				return m, nil
			}

		case "esc":
			if m.state == stateDetail {
				m.state = stateList
				return m, nil
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

func (m *browserModel) describe(label string) string {
	mr, ok := m.store.Manifests[label]
	if !ok {
		return errorStyle.Render("manifest " + label + " not found")
	}

	var b strings.Builder
	field := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString(fieldStyle.Render(fmt.Sprintf("%-16s", name)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	field("label", mr.Label)
	field("title", mr.Title)
	field("format", mr.Format)
	field("generator", mr.ClaimGenerator)
	field("instance", mr.InstanceID)
	field("remote", mr.RemoteURL)
	field("signed by", mr.SignatureInfo.CommonName)
	field("issuer", mr.SignatureInfo.Issuer)
	field("algorithm", mr.SignatureInfo.Alg)
	field("time", mr.SignatureInfo.Time)
	field("tsa", mr.SignatureInfo.TimeAuthority)
	if mr.SignatureInfo.OCSPStapled {
		field("ocsp", "stapled")
	}

	if len(mr.Ingredients) > 0 {
		b.WriteString("\n" + labelStyle.Render("Ingredients") + "\n")
		for _, ing := range mr.Ingredients {
			fmt.Fprintf(&b, "  %s %s (%s)\n", ing.Relationship, ing.Title, ing.ActiveManifest)
		}
	}
	if len(mr.Resources) > 0 {
		b.WriteString("\n" + labelStyle.Render("Resources") + "\n")
		for _, id := range mr.Resources {
			b.WriteString("  " + id + "\n")
		}
	}
	if len(mr.Assertions) > 0 {
		b.WriteString("\n" + labelStyle.Render("Assertions") + "\n")
		for _, a := range mr.Assertions {
			b.WriteString("  " + fieldStyle.Render(a.Label) + "\n")
			for _, line := range strings.Split(prettyJSON(a.Data), "\n") {
				b.WriteString("    " + line + "\n")
			}
		}
	}

	var failures []string
	for _, st := range m.store.ValidationStatus {
		if st.URL == "" || strings.Contains(st.URL, label) {
			failures = append(failures, st.Code+": "+st.Explanation)
		}
	}
	b.WriteString("\n")
	if len(failures) == 0 {
		b.WriteString(validStyle.Render("valid"))
	} else {
		for _, f := range failures {
			b.WriteString(errorStyle.Render(f) + "\n")
		}
	}
	return b.String()
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Manifest Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateList:
		if m.store.Valid() {
			b.WriteString(validStyle.Render("store valid"))
		} else {
			b.WriteString(errorStyle.Render(fmt.Sprintf("%d validation failures", len(m.store.ValidationStatus))))
		}
		b.WriteString("\n\n")
		for i, label := range m.labels {
			line := label
			if mr, ok := m.store.Manifests[label]; ok && mr.Title != "" {
				line += "  " + mr.Title
			}
			if label == m.store.ActiveManifest {
				line += "  (active)"
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateDetail:
		b.WriteString(m.detail.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

func runBrowser(filename string, store *provenance.Store) error {
	p := tea.NewProgram(newBrowserModel(filename, store), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
