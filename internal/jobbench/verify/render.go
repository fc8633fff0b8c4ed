package verify

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	banner    = "================================================================================"
	noResults = "Query returned no results."
)

// RenderText writes each table under a banner with its title, bordered like psql output.
func RenderText(w io.Writer, report Report) error {
	var sb strings.Builder
	for _, table := range report.Tables {
		sb.WriteString("\n" + banner + "\n")
		sb.WriteString("Executing Query: " + table.Title + "\n")
		sb.WriteString(banner + "\n")
		if len(table.Rows) == 0 {
			sb.WriteString(noResults + "\n")
			continue
		}
		renderTable(&sb, table)
	}
	_, err := io.WriteString(w, sb.String())
	return errors.WithStack(err)
}

func renderTable(sb *strings.Builder, table Table) {
	widths := make([]int, len(table.Columns))
	for i, c := range table.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, row := range table.Rows {
		for i, v := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(v))
		}
	}

	rule := func(edge string) {
		sb.WriteString(edge)
		for i, w := range widths {
			if i > 0 {
				sb.WriteString("+")
			}
			sb.WriteString(strings.Repeat("-", w+2))
		}
		sb.WriteString(edge + "\n")
	}
	line := func(values []string) {
		sb.WriteString("|")
		for i, w := range widths {
			sb.WriteString(" " + values[i] + strings.Repeat(" ", w-utf8.RuneCountInString(values[i])) + " |")
		}
		sb.WriteString("\n")
	}

	rule("+")
	line(table.Columns)
	rule("|")
	for _, row := range table.Rows {
		line(row)
	}
	rule("+")
}
