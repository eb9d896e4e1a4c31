package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"imageupdater/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(faintStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func printCollections(w io.Writer, cols []models.Collection, page models.PageInfo) {
	t := newTable("ID", "Title", "Handle", "Products")
	for _, c := range cols {
		t.Row(c.ID, c.Title, c.Handle, strconv.Itoa(c.ProductsCount))
	}
	fmt.Fprintln(w, t.Render())
	if page.HasNextPage {
		fmt.Fprintf(w, "More results: --after %s\n", page.EndCursor)
	}
}

func printProducts(w io.Writer, products []models.Product, selected map[string]bool) {
	t := newTable("#", "", "ID", "Title", "Status", "Images", "Main image")
	for i, p := range products {
		mark := " "
		if selected[p.ID] {
			mark = "x"
		}
		main := "-"
		if img := p.MainImage(); img != nil {
			main = img.Src
		}
		t.Row(strconv.Itoa(i+1), mark, p.ID, p.Title, string(p.Status), strconv.Itoa(len(p.Images)), main)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d of %d selected\n", len(selected), len(products))
}

func printOperation(w io.Writer, op *models.ImageUpdateOperation) {
	fmt.Fprintf(w, "Operation   %s\n", op.OperationID)
	fmt.Fprintf(w, "Status      %s\n", op.Status)
	fmt.Fprintf(w, "Collection  %s (%s)\n", op.CollectionName, op.CollectionID)
	fmt.Fprintf(w, "Products    %d\n", op.ProductsCount)
	fmt.Fprintf(w, "Updated     %d images\n", op.ImagesUpdated)
	fmt.Fprintf(w, "CSV         %s\n", uploadedLabel(op.CSVUploaded))
	if op.ErrorMessage != nil && *op.ErrorMessage != "" {
		fmt.Fprintf(w, "Error       %s\n", *op.ErrorMessage)
	}
	if op.RepeatOf != nil {
		fmt.Fprintf(w, "Repeat of   %s\n", *op.RepeatOf)
	}
	if op.RolledBackAt != nil {
		fmt.Fprintf(w, "Rolled back %s\n", op.RolledBackAt.Local().Format("2006-01-02 15:04"))
	}
}

func printHistory(w io.Writer, ops []models.ImageUpdateOperation) {
	t := newTable("Operation", "Created", "Collection", "Status", "Products", "Images", "User")
	for _, op := range ops {
		status := string(op.Status)
		if op.RolledBackAt != nil {
			status += " (rolled back)"
		}
		t.Row(op.OperationID, op.Timestamp.Local().Format("2006-01-02 15:04"), op.CollectionName,
			status, strconv.Itoa(op.ProductsCount), strconv.Itoa(op.ImagesUpdated), op.UserName)
	}
	fmt.Fprintln(w, t.Render())
}

func uploadedLabel(ok bool) string {
	if ok {
		return "uploaded"
	}
	return "not uploaded"
}

// resolveProduct accepts a 1-based row number from the product table or a
// product id.
func resolveProduct(arg string, loaded []string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(loaded) {
			return "", fmt.Errorf("row %d out of range (1-%d)", n, len(loaded))
		}
		return loaded[n-1], nil
	}
	for _, id := range loaded {
		if id == arg || strings.HasSuffix(id, "/"+arg) {
			return id, nil
		}
	}
	return "", fmt.Errorf("product %s is not in the loaded collection", arg)
}
