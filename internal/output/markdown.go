package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a view as a Markdown table.
type MarkdownFormatter struct{}

// Format renders view as Markdown.
func (f *MarkdownFormatter) Format(view View) (string, error) {
	var sb strings.Builder
	if view.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(view.Title)))
	}
	if len(view.Rows) == 0 && view.Empty != "" {
		sb.WriteString(view.Empty + "\n")
		return sb.String(), nil
	}

	writeMarkdownRow(&sb, view.Header)
	separators := make([]string, len(view.Header))
	for i, cell := range view.Header {
		separators[i] = strings.Repeat("-", max(len(cell), 3))
	}
	sb.WriteString("|" + strings.Join(separators, "|") + "|\n")

	for _, row := range view.Rows {
		writeMarkdownRow(&sb, row)
	}

	if view.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n**%s**\n", escapeMarkdownCell(view.Footer)))
	}
	return sb.String(), nil
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = escapeMarkdownCell(cell)
	}
	sb.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	return strings.ReplaceAll(value, "\n", " ")
}
