package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// wellKnownKinds pins the types of identity columns so CSV decoding never
// mistakes an all-digit extraction ID or a date for a number.
var wellKnownKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(identityColumns))
	for _, c := range identityColumns {
		m[c.Name] = c.Kind
	}
	return m
}()

// WriteCSV encodes the table with a header row. Nulls are empty cells.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			cell, err := formatCell(col, row[col.Name])
			if err != nil {
				return err
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSV decodes a header-first CSV into a table. Identity columns keep
// their pinned kinds; other columns are inferred from the data, preferring
// int over float over string.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("read csv: missing header")
	}

	header := records[0]
	body := records[1:]
	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: name, Kind: inferKind(name, body, i)}
	}

	rows := make([]Row, 0, len(body))
	for _, record := range body {
		if len(record) != len(columns) {
			return Table{}, fmt.Errorf("read csv: row has %d cells, want %d", len(record), len(columns))
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			v, err := parseCell(col, record[i])
			if err != nil {
				return Table{}, err
			}
			if v != nil {
				row[col.Name] = v
			}
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}, nil
}

func formatCell(col Column, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("column %q: cannot encode %T", col.Name, v)
	}
}

func parseCell(col Column, cell string) (any, error) {
	if cell == "" {
		return nil, nil
	}
	switch col.Kind {
	case KindFloat:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: parse %q: %w", col.Name, cell, err)
		}
		return f, nil
	case KindInt:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: parse %q: %w", col.Name, cell, err)
		}
		return n, nil
	default:
		return cell, nil
	}
}

func inferKind(name string, body [][]string, idx int) Kind {
	if kind, ok := wellKnownKinds[name]; ok {
		return kind
	}
	kind := KindInt
	sampled := false
	for _, record := range body {
		if idx >= len(record) || record[idx] == "" {
			continue
		}
		sampled = true
		cell := record[idx]
		if kind == KindInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			kind = KindFloat
		}
		if kind == KindFloat {
			if _, err := strconv.ParseFloat(cell, 64); err == nil {
				continue
			}
			kind = KindString
		}
		if kind == KindString {
			break
		}
	}
	// Metric columns are floats even when every sampled value is integral.
	if !sampled || kind == KindInt {
		return KindFloat
	}
	return kind
}
