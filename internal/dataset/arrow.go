package dataset

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// WriteArrow encodes the table as a single-record Arrow IPC file. Arrow is
// the authoritative artifact format; CSV sits alongside it for humans.
func WriteArrow(w io.Writer, t Table) error {
	schema, err := arrowSchema(t.Columns)
	if err != nil {
		return err
	}

	mem := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for _, row := range t.Rows {
		for i, col := range t.Columns {
			if err := appendArrowValue(builder.Field(i), col, row[col.Name]); err != nil {
				return err
			}
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	// The arrow file writer needs seek support to track section offsets,
	// which plain writers like bytes.Buffer lack, so encoding stages through
	// an in-memory buffer before the finished artifact is copied out.
	buf := &writeSeekBuffer{}
	fw, err := ipc.NewFileWriter(buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("open arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	if _, err := w.Write(buf.data); err != nil {
		return fmt.Errorf("write arrow artifact: %w", err)
	}
	return nil
}

// writeSeekBuffer is a minimal in-memory io.WriteSeeker for the arrow file
// writer. Writes past the current end extend the buffer with zeros, matching
// file semantics.
type writeSeekBuffer struct {
	data []byte
	pos  int64
}

func (b *writeSeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if grow := end - int64(len(b.data)); grow > 0 {
		b.data = append(b.data, make([]byte, grow)...)
	}
	copy(b.data[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("arrow buffer: invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("arrow buffer: negative seek position %d", abs)
	}
	b.pos = abs
	return abs, nil
}

// ReadArrow decodes an Arrow IPC file back into a table.
func ReadArrow(r ipc.ReadAtSeeker) (Table, error) {
	fr, err := ipc.NewFileReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open arrow reader: %w", err)
	}
	defer fr.Close()

	columns, err := columnsFromSchema(fr.Schema())
	if err != nil {
		return Table{}, err
	}

	var rows []Row
	for {
		rec, err := fr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read arrow record: %w", err)
		}
		rows = appendRecordRows(rows, columns, rec)
	}
	return Table{Columns: columns, Rows: rows}, nil
}

func arrowSchema(columns []Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		var dt arrow.DataType
		switch c.Kind {
		case KindString:
			dt = arrow.BinaryTypes.String
		case KindFloat:
			dt = arrow.PrimitiveTypes.Float64
		case KindInt:
			dt = arrow.PrimitiveTypes.Int64
		default:
			return nil, fmt.Errorf("column %q: unsupported kind %d", c.Name, c.Kind)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func columnsFromSchema(schema *arrow.Schema) ([]Column, error) {
	columns := make([]Column, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		var kind Kind
		switch f.Type.ID() {
		case arrow.STRING:
			kind = KindString
		case arrow.FLOAT64:
			kind = KindFloat
		case arrow.INT64:
			kind = KindInt
		default:
			return nil, fmt.Errorf("column %q: unsupported arrow type %s", f.Name, f.Type)
		}
		columns = append(columns, Column{Name: f.Name, Kind: kind})
	}
	return columns, nil
}

func appendArrowValue(b array.Builder, col Column, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch col.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %q: expected string, got %T", col.Name, v)
		}
		b.(*array.StringBuilder).Append(s)
	case KindFloat:
		switch x := v.(type) {
		case float64:
			b.(*array.Float64Builder).Append(x)
		case int64:
			b.(*array.Float64Builder).Append(float64(x))
		default:
			return fmt.Errorf("column %q: expected float, got %T", col.Name, v)
		}
	case KindInt:
		x, ok := v.(int64)
		if !ok {
			return fmt.Errorf("column %q: expected int, got %T", col.Name, v)
		}
		b.(*array.Int64Builder).Append(x)
	}
	return nil
}

func appendRecordRows(rows []Row, columns []Column, rec arrow.Record) []Row {
	n := int(rec.NumRows())
	for j := 0; j < n; j++ {
		row := make(Row, len(columns))
		for i, col := range columns {
			arr := rec.Column(i)
			if arr.IsNull(j) {
				continue
			}
			switch a := arr.(type) {
			case *array.String:
				row[col.Name] = a.Value(j)
			case *array.Float64:
				row[col.Name] = a.Value(j)
			case *array.Int64:
				row[col.Name] = a.Value(j)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
