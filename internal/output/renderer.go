package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/temirov/minigit/internal/utils/flags"
)

const (
	jsonIndentConstant          = "  "
	yamlIndentConstant          = 2
	cellPaddingConstant         = 1
	emptyTableMessageConstant   = "(empty)"
	renderErrorTemplateConstant = "failed to render %s output: %w"
)

// Format enumerates supported output encodings.
type Format string

// Supported output formats.
const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
)

// Formats lists every supported format, default first.
var Formats = []string{string(FormatTable), string(FormatYAML), string(FormatJSON)}

// ParseFormat resolves a case-insensitive format name; blank means table.
func ParseFormat(value string) (Format, error) {
	parsedValue, parseError := flags.ParseChoice(value, string(FormatTable), Formats)
	if parseError != nil {
		return "", parseError
	}
	return Format(parsedValue), nil
}

// Table is the tabular projection of a result.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Renderer writes results in one format.
type Renderer struct {
	writer io.Writer
	format Format
}

// NewRenderer constructs a renderer writing to writer.
func NewRenderer(writer io.Writer, format Format) *Renderer {
	if len(format) == 0 {
		format = FormatTable
	}
	return &Renderer{writer: writer, format: format}
}

// Render writes tabularView for the table format and structuredView otherwise.
func (renderer *Renderer) Render(tabularView Table, structuredView any) error {
	var renderError error
	switch renderer.format {
	case FormatJSON:
		encoder := json.NewEncoder(renderer.writer)
		encoder.SetIndent("", jsonIndentConstant)
		renderError = encoder.Encode(structuredView)
	case FormatYAML:
		encoder := yaml.NewEncoder(renderer.writer)
		encoder.SetIndent(yamlIndentConstant)
		renderError = encoder.Encode(structuredView)
		if renderError == nil {
			renderError = encoder.Close()
		}
	default:
		renderError = renderer.renderTable(tabularView)
	}
	if renderError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, renderer.format, renderError)
	}
	return nil
}

func (renderer *Renderer) renderTable(tabularView Table) error {
	if len(tabularView.Rows) == 0 {
		_, writeError := fmt.Fprintln(renderer.writer, emptyTableMessageConstant)
		return writeError
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, cellPaddingConstant)
	cellStyle := lipgloss.NewStyle().Padding(0, cellPaddingConstant)

	renderedTable := table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		Headers(tabularView.Headers...).
		Rows(tabularView.Rows...).
		StyleFunc(func(row int, column int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, writeError := fmt.Fprintln(renderer.writer, renderedTable.String())
	return writeError
}

// Size formats a byte count for humans; directories render as "-".
func Size(byteCount int64, isDirectory bool) string {
	if isDirectory {
		return "-"
	}
	if byteCount < 0 {
		byteCount = 0
	}
	return humanize.IBytes(uint64(byteCount))
}

// Flag renders a boolean as "yes" or an empty cell.
func Flag(value bool) string {
	if value {
		return "yes"
	}
	return ""
}

// Join renders a list cell.
func Join(values []string) string {
	return strings.Join(values, ", ")
}
