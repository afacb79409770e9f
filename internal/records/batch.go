package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"juju/internal/models"
)

// Row is one decoded record and its position in the source.
type Row struct {
	Line   int
	Raw    []string
	Record models.SessionRecord
}

// RowError is a row that could not be decoded. Raw keeps the original fields so
// the row can be written back untouched.
type RowError struct {
	Line int
	Raw  []string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

// Batch is the decoded content of one stored unit.
type Batch struct {
	Header Header
	Rows   []Row
	Errors []RowError
}

// Empty reports a unit with no header at all.
func (b *Batch) Empty() bool {
	return b.Header.Schema == models.SchemaUnknown && len(b.Rows) == 0 && len(b.Errors) == 0
}

// Legacy reports whether any decoded row still uses the legacy schema.
func (b *Batch) Legacy() bool {
	return b.Header.Schema == models.SchemaLegacy
}

// ReadAll decodes a whole CSV unit. Rows that fail to decode are collected in
// Errors and skipped; an unreadable header or broken CSV framing fails the unit.
func (c *Codec) ReadAll(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Batch{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header, err := ParseHeader(first)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Header: header}
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++
		if isBlank(row) {
			continue
		}
		rec, err := c.Decode(header, row, line)
		if err != nil {
			batch.Errors = append(batch.Errors, RowError{Line: line, Raw: row, Err: err})
			continue
		}
		batch.Rows = append(batch.Rows, Row{Line: line, Raw: row, Record: rec})
	}
	return batch, nil
}

// Extras returns the columns of the unit that neither schema knows, with the
// cells every decoded row holds for them keyed by record id.
func (b *Batch) Extras() Extras {
	known := make(map[string]struct{}, len(CanonicalColumns)+len(LegacyColumns))
	for _, col := range CanonicalColumns {
		known[col] = struct{}{}
	}
	for _, col := range LegacyColumns {
		known[col] = struct{}{}
	}

	var extras Extras
	for _, col := range b.Header.Columns {
		if _, ok := known[col]; ok {
			continue
		}
		known[col] = struct{}{}
		extras.Columns = append(extras.Columns, col)
	}
	if len(extras.Columns) == 0 {
		return extras
	}
	extras.Cells = make(map[string][]string, len(b.Rows))
	for _, row := range b.Rows {
		extras.Cells[row.Record.RecordID()] = RealignTo(b.Header, row.Raw, extras.Columns)
	}
	return extras
}

// Extras are columns written after the canonical ones, with per-session cells.
type Extras struct {
	Columns []string
	Cells   map[string][]string
}

// Layout is the full column order a unit is written in.
func (e Extras) Layout() []string {
	if len(e.Columns) == 0 {
		return CanonicalColumns
	}
	out := make([]string, 0, len(CanonicalColumns)+len(e.Columns))
	out = append(out, CanonicalColumns...)
	return append(out, e.Columns...)
}

// Carry returns e extended with the columns of from and the cells from holds
// for fromID, stored under toID.
func (e Extras) Carry(from Extras, fromID, toID string) Extras {
	cells, ok := from.Cells[fromID]
	if !ok {
		return e
	}
	out := Extras{
		Columns: append([]string(nil), e.Columns...),
		Cells:   make(map[string][]string, len(e.Cells)+1),
	}
	for id, c := range e.Cells {
		out.Cells[id] = c
	}
	pos := make(map[string]int, len(out.Columns))
	for i, col := range out.Columns {
		pos[col] = i
	}
	for _, col := range from.Columns {
		if _, ok := pos[col]; !ok {
			pos[col] = len(out.Columns)
			out.Columns = append(out.Columns, col)
		}
	}
	moved := make([]string, len(out.Columns))
	for i, col := range from.Columns {
		if i < len(cells) {
			moved[pos[col]] = cells[i]
		}
	}
	out.Cells[toID] = moved
	return out
}

func (e Extras) row(id string) []string {
	out := make([]string, len(e.Columns))
	copy(out, e.Cells[id])
	return out
}

// WriteCanonical writes the canonical header followed by the extra columns,
// the sessions, then any preserved raw rows, which must already be laid out
// in extras.Layout() order.
func (c *Codec) WriteCanonical(w io.Writer, sessions []models.Session, preserved [][]string, extras Extras) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(extras.Layout()); err != nil {
		return err
	}
	for _, s := range sessions {
		row := c.Encode(s)
		if len(extras.Columns) > 0 {
			row = append(row, extras.row(s.ID)...)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	for _, raw := range preserved {
		if err := writer.Write(raw); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteLegacy writes records in the legacy layout.
func WriteLegacy(w io.Writer, recs []models.LegacySessionRecord, withHeader bool) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, EncodeLegacy(r))
	}
	var header []string
	if withHeader {
		header = LegacyColumns
	}
	return WriteRows(w, header, rows)
}

// WriteRows writes raw rows, preceded by header when it is not nil.
func WriteRows(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if header != nil {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// RealignTo reorders a raw row from header h into columns; absent columns are left empty.
func RealignTo(h Header, raw []string, columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = h.RawField(raw, col)
	}
	return out
}

func isBlank(row []string) bool {
	for _, f := range row {
		if f != "" {
			return false
		}
	}
	return true
}
