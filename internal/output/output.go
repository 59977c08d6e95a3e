// Package output renders CLI results as tables, JSON, YAML or Markdown.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// View is one renderable result. Data is what the structured formats encode;
// Header, Rows and Footer feed the table and Markdown renderers.
type View struct {
	Title  string
	Data   any
	Header []string
	Rows   [][]string
	Footer string
	Empty  string
}

// Formatter renders a view.
type Formatter interface {
	Format(view View) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Write renders view in format and writes it to w with a trailing newline.
func Write(w io.Writer, format Format, view View) error {
	rendered, err := NewFormatter(format).Format(view)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func deref(value *string) string {
	if value == nil || *value == "" {
		return "-"
	}
	return *value
}
