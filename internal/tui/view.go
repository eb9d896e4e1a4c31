package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"imageupdater/internal/console"
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.cfg.Title))
	b.WriteString("\n")

	switch m.screen {
	case ScreenGate:
		b.WriteString(m.viewGate())
	case ScreenSearch:
		b.WriteString(m.viewSearch())
	default:
		b.WriteString(m.viewProducts())
	}
	return b.String()
}

func (m *Model) viewGate() string {
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("Enter the password to continue"))
	b.WriteString("\n\n")
	b.WriteString(m.password.View())
	if m.gateErr != "" {
		b.WriteString("\n\n")
		b.WriteString(m.styles.Error.Render(m.gateErr))
	}
	b.WriteString("\n\n")
	b.WriteString(m.styles.key("enter", "log in", true) + "  " + m.styles.key("esc", "quit", true))
	return m.styles.Gate.Render(b.String())
}

func (m *Model) viewSearch() string {
	v := m.c.Snapshot()
	var b strings.Builder
	b.WriteString(m.query.View())
	if v.Loading[console.SlotSearch] {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	if e := v.Errors[console.SlotSearch]; e != "" {
		b.WriteString(m.styles.Error.Render(e) + "\n\n")
	}
	if len(v.Collections) == 0 && !v.Loading[console.SlotSearch] {
		b.WriteString(m.styles.Muted.Render("No collections found") + "\n")
	}
	for i, col := range v.Collections {
		line := fmt.Sprintf("%s  %s", col.Title, m.styles.Muted.Render(fmt.Sprintf("%s · %d products", col.Handle, col.ProductsCount)))
		if i == m.cursor {
			b.WriteString(m.styles.Cursor.Render(SymbolCursor+" ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(strings.Join([]string{
		m.styles.key("↑/↓", "move", true),
		m.styles.key("enter", "open", len(v.Collections) > 0),
		m.styles.key("ctrl+n", "next page", v.PageInfo.HasNextPage),
		m.styles.key("esc", "back", true),
	}, "  "))
	return b.String()
}

func (m *Model) viewProducts() string {
	v := m.c.Snapshot()
	var b strings.Builder
	if v.Collection != nil {
		b.WriteString(m.styles.Subtitle.Render(v.Collection.Title))
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  %d of %d selected", len(v.SelectedIDs), len(v.Products))))
	}
	if v.Loading[console.SlotProducts] {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")
	if e := v.Errors[console.SlotProducts]; e != "" {
		b.WriteString(m.styles.Error.Render(e) + "\n")
	}

	for i, p := range v.Products {
		box := SymbolUnselected
		if v.Selected[p.ID] {
			box = m.styles.Success.Render(SymbolSelected)
		}
		main := m.styles.Muted.Render("no images")
		if img := p.MainImage(); img != nil {
			main = m.styles.Muted.Render(fmt.Sprintf("%d images · %s", len(p.Images), img.Src))
		}
		cursor := "  "
		if i == m.cursor {
			cursor = m.styles.Cursor.Render(SymbolCursor + " ")
		}
		fmt.Fprintf(&b, "%s%s %s  %s\n", cursor, box, p.Title, main)
	}
	b.WriteString("\n")
	b.WriteString(m.viewOperation(v))
	return b.String()
}

func (m *Model) viewOperation(v console.View) string {
	var b strings.Builder
	b.WriteString(m.styles.StateIcon(v.State) + " " + m.styles.Subtitle.Render(v.State.String()))
	if op := v.Operation; op != nil {
		fmt.Fprintf(&b, "  %s", m.styles.Muted.Render(op.OperationID))
		fmt.Fprintf(&b, "\n%d products · %d images updated", op.ProductsCount, op.ImagesUpdated)
		if v.Uploaded {
			b.WriteString(" · CSV uploaded")
		}
		if op.ErrorMessage != nil && *op.ErrorMessage != "" {
			b.WriteString("\n" + m.styles.Error.Render(*op.ErrorMessage))
		}
	}
	if v.Loading[console.SlotOperation] || v.Loading[console.SlotUpload] {
		b.WriteString(" " + m.spinner.View())
	}
	for _, slot := range []console.Slot{console.SlotOperation, console.SlotUpload} {
		if e := v.Errors[slot]; e != "" {
			b.WriteString("\n" + m.styles.Error.Render(e))
		}
	}
	if m.status != "" {
		b.WriteString("\n" + m.styles.Info.Render(m.status))
	}
	if m.prompt {
		b.WriteString("\n\nUpload CSV: " + m.path.View())
	}

	help := strings.Join([]string{
		m.styles.key("space", "toggle", len(v.Products) > 0),
		m.styles.key("a", "all", len(v.Products) > 0),
		m.styles.key("n", "none", len(v.SelectedIDs) > 0),
		m.styles.key("c", "create", v.CanCreate),
		m.styles.key("d", "download", v.CanDownload),
		m.styles.key("u", "upload", v.CanUpload),
		m.styles.key("p", "process", v.CanProcess),
		m.styles.key("x", "reset", v.CanReset),
		m.styles.key("esc", "search", true),
		m.styles.key("q", "quit", true),
	}, "  ")

	panel := m.styles.Panel
	if m.width > 4 {
		panel = panel.Width(m.width - 4)
	}
	return lipgloss.JoinVertical(lipgloss.Left, panel.Render(b.String()), help)
}
