package verify

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/oklog/ulid"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/common/logging"
)

const timestampFormat = "2006-01-02 15:04:05.000000-07:00"

type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type Report struct {
	ID          string    `json:"id"`
	Prefix      string    `json:"prefix"`
	GeneratedAt time.Time `json:"generatedAt"`
	Tables      []Table   `json:"tables"`
}

// Run executes every report query for workers whose name starts with prefix.
func Run(ctx context.Context, db database.Querier, prefix string) (Report, error) {
	now := time.Now()
	report := Report{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Prefix:      prefix,
		GeneratedAt: now.UTC(),
	}
	for _, q := range Queries(prefix) {
		table, err := runQuery(ctx, db, q, prefix)
		if err != nil {
			return report, errors.WithMessagef(err, "running %q", q.Title)
		}
		logging.Debugf("%s returned %d rows", q.Title, len(table.Rows))
		report.Tables = append(report.Tables, table)
	}
	return report, nil
}

func runQuery(ctx context.Context, db database.Querier, q Query, prefix string) (Table, error) {
	rows, err := db.Query(ctx, q.SQL, prefix)
	if err != nil {
		return Table{}, errors.WithStack(err)
	}
	defer rows.Close()

	table := Table{Title: q.Title, Rows: [][]string{}}
	for _, fd := range rows.FieldDescriptions() {
		table.Columns = append(table.Columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return Table{}, errors.WithStack(err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, errors.WithStack(rows.Err())
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(timestampFormat)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', 2, 32)
	default:
		return fmt.Sprint(v)
	}
}

// WriteJSON saves the report alongside the text output.
func WriteJSON(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}
