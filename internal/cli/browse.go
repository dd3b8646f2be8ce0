package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/source"
	"github.com/sbenjam1n/annotate/internal/store"
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"b"},
	Short:   "Browse saved annotations in a TUI",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataFile, _ := cmd.Flags().GetString("data")
		ctx := context.Background()

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()
		st, err := openStore(ctx, backend)
		if err != nil {
			return err
		}

		// the data file is optional; without it only annotations are shown
		var src *source.Source
		if dataFile != "" || cfg.DataFile != "" {
			if src, err = loadSource(dataFile); err != nil {
				return err
			}
		}

		m := newBrowseModel(cfg.Name, st.Export(), src)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

// --- Styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236")).Foreground(lipgloss.Color("15"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// --- View modes ---

type viewMode int

const (
	viewAnnotated viewMode = iota
	viewPending
	viewDetail
)

type browseItem struct {
	id     string
	record *store.Record
}

// --- Model ---

type browseModel struct {
	name         string
	table        *store.Table
	src          *source.Source
	annotated    []browseItem
	pending      []browseItem
	cursor       int
	viewMode     viewMode
	listMode     viewMode
	width        int
	height       int
	searchMode   bool
	searchBuffer string
	detail       browseItem
}

func newBrowseModel(name string, tbl *store.Table, src *source.Source) browseModel {
	m := browseModel{name: name, table: tbl, src: src, width: 80, height: 24}
	seen := make(map[string]bool, len(tbl.Records))
	for i := range tbl.Records {
		rec := &tbl.Records[i]
		seen[rec.ID] = true
		m.annotated = append(m.annotated, browseItem{id: rec.ID, record: rec})
	}
	if src != nil {
		for _, id := range src.IDs() {
			if !seen[id] {
				m.pending = append(m.pending, browseItem{id: id})
			}
		}
	}
	return m
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) items() []browseItem {
	if m.listMode == viewPending {
		return m.pending
	}
	return m.annotated
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKey(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "j", "down":
			if m.viewMode != viewDetail && m.cursor < len(m.items())-1 {
				m.cursor++
			}
		case "k", "up":
			if m.viewMode != viewDetail && m.cursor > 0 {
				m.cursor--
			}
		case "g":
			m.cursor = 0
		case "G":
			if n := len(m.items()); n > 0 {
				m.cursor = n - 1
			}

		case "enter", "l", "right":
			items := m.items()
			if m.viewMode != viewDetail && m.cursor < len(items) {
				m.detail = items[m.cursor]
				m.viewMode = viewDetail
			}
		case "esc", "h", "left":
			if m.viewMode == viewDetail {
				m.viewMode = m.listMode
			}

		case "1":
			m.viewMode, m.listMode = viewAnnotated, viewAnnotated
			m.cursor = 0
		case "2":
			m.viewMode, m.listMode = viewPending, viewPending
			m.cursor = 0

		case "/":
			m.searchMode = true
			m.searchBuffer = ""
		}
	}
	return m, nil
}

func (m browseModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		if m.searchBuffer != "" {
			for i, item := range m.items() {
				if strings.Contains(strings.ToLower(item.id), strings.ToLower(m.searchBuffer)) {
					m.cursor = i
					break
				}
			}
		}
	case "esc":
		m.searchMode = false
		m.searchBuffer = ""
	case "backspace":
		if len(m.searchBuffer) > 0 {
			m.searchBuffer = m.searchBuffer[:len(m.searchBuffer)-1]
		}
	default:
		if len(msg.String()) == 1 {
			m.searchBuffer += msg.String()
		}
	}
	return m, nil
}

func (m browseModel) View() string {
	var b strings.Builder

	header := titleStyle.Render(m.name)
	annotatedTab := fmt.Sprintf("1:Annotated (%d)", len(m.annotated))
	pendingTab := fmt.Sprintf("2:Pending (%d)", len(m.pending))
	tabs := ""
	switch m.viewMode {
	case viewAnnotated:
		tabs = headerStyle.Render("["+annotatedTab+"]") + " " + dimStyle.Render(pendingTab)
	case viewPending:
		tabs = dimStyle.Render(annotatedTab) + " " + headerStyle.Render("["+pendingTab+"]")
	case viewDetail:
		tabs = dimStyle.Render(annotatedTab) + " " + dimStyle.Render(pendingTab) + " " + headerStyle.Render("[Detail]")
	}

	b.WriteString(header + "  " + tabs + "\n")
	b.WriteString(strings.Repeat("─", min(m.width, 80)) + "\n")

	contentHeight := m.height - 5

	if m.viewMode == viewDetail {
		m.renderDetail(&b, contentHeight)
	} else {
		m.renderList(&b, contentHeight)
	}

	if m.searchMode {
		b.WriteString("\n/" + m.searchBuffer + "█")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k:navigate  enter:detail  esc:back  1/2:tabs  /:search  q:quit"))

	return b.String()
}

func (m browseModel) renderList(b *strings.Builder, maxLines int) {
	items := m.items()
	if len(items) == 0 {
		if m.listMode == viewPending && m.src == nil {
			b.WriteString(dimStyle.Render("  No data file configured; pass --data to see pending records.") + "\n")
		} else {
			b.WriteString(dimStyle.Render("  (none)") + "\n")
		}
		return
	}

	start := 0
	if maxLines > 0 && m.cursor >= maxLines {
		start = m.cursor - maxLines + 1
	}
	for i := start; i < len(items) && (maxLines <= 0 || i < start+maxLines); i++ {
		item := items[i]
		line := "  " + idStyle.Render(item.id)
		if item.record != nil {
			line += "  " + dimStyle.Render(m.summary(item.record))
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + item.id)
			if item.record != nil {
				line += "  " + m.summary(item.record)
			}
		}
		b.WriteString(line + "\n")
	}
}

// summary renders the non-null cells of a record on one line.
func (m browseModel) summary(rec *store.Record) string {
	var parts []string
	for i, col := range m.table.Columns {
		if i < len(rec.Cells) && rec.Cells[i] != "" {
			parts = append(parts, col.Name+"="+rec.Cells[i])
		}
	}
	s := strings.Join(parts, " ")
	if limit := m.width - 20; limit > 10 && len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}

func (m browseModel) renderDetail(b *strings.Builder, maxLines int) {
	lines := []string{headerStyle.Render("Record " + m.detail.id), ""}

	if m.src != nil {
		if fields, ok := m.src.Content(m.detail.id); ok {
			for _, f := range fields {
				lines = append(lines, dimStyle.Render(f.Label+":"))
				for _, l := range strings.Split(f.Value, "\n") {
					lines = append(lines, "    "+l)
				}
			}
		} else {
			lines = append(lines, warnStyle.Render("Not in the data file."))
		}
		lines = append(lines, "")
	}

	if rec := m.detail.record; rec != nil {
		for i, col := range m.table.Columns {
			v := ""
			if i < len(rec.Cells) {
				v = rec.Cells[i]
			}
			if v == "" {
				v = dimStyle.Render("<null>")
			}
			lines = append(lines, fmt.Sprintf("  %-20s %s", col.Name, v))
		}
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("  annotated %s", rec.Timestamp.Format("2006-01-02 15:04:05"))))
		if rec.User != "" {
			lines = append(lines, dimStyle.Render("  by "+rec.User))
		}
	} else {
		lines = append(lines, warnStyle.Render("Not annotated yet."))
	}

	for i, l := range lines {
		if maxLines > 0 && i >= maxLines {
			break
		}
		b.WriteString(l + "\n")
	}
}

func init() {
	browseCmd.Flags().String("data", "", "Data file to show record content and pending records")
}
