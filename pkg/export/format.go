package export

import (
	"fmt"
	"time"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

// ColumnType tags how a column's values are coerced for display/export.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeDate    ColumnType = "date"
	TypeTime    ColumnType = "time"
	TypePercent ColumnType = "percent"
	TypeHidden  ColumnType = "hidden"
)

// ColumnSpec pairs a display label with its value-type tag.
type ColumnSpec struct {
	Field string     `json:"field"`
	Type  ColumnType `json:"type"`
}

// dateWireFormat is the fixed format batch-written date cells arrive in.
const dateWireFormat = "2006/01/02 15:04:05 MST"

// Formatter coerces raw record values into display strings. Any malformed
// value degrades to an empty cell; a bad cell never aborts a row.
type Formatter struct {
	loc *time.Location
}

// NewFormatter builds a formatter rendering dates in the named timezone.
func NewFormatter(timezone string) (*Formatter, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load export timezone: %w", err)
	}
	return &Formatter{loc: loc}, nil
}

// Cell renders one value according to the column type.
func (f *Formatter) Cell(spec ColumnSpec, value interface{}) string {
	switch spec.Type {
	case TypeText, TypeHidden:
		if s, ok := value.(string); ok {
			return s
		}
		return ""
	case TypeDate:
		return f.dateCell(value)
	case TypeTime:
		if secs, ok := asFloat(value); ok {
			return FormatSeconds(secs)
		}
		return "0:00"
	case TypePercent:
		if s, ok := value.(string); ok && s == models.NotAttempted {
			return s
		}
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.1f%%", v*100)
		}
		if v, ok := value.(float32); ok {
			return fmt.Sprintf("%.1f%%", float64(v)*100)
		}
		return ""
	default:
		return ""
	}
}

func (f *Formatter) dateCell(value interface{}) string {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.In(f.loc).Format("2006/01/02")
	case string:
		t, err := time.Parse(dateWireFormat, v)
		if err != nil {
			return ""
		}
		return t.In(f.loc).Format("2006/01/02")
	default:
		return ""
	}
}

// Timestamp renders a batch timestamp in the display timezone.
func (f *Formatter) Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc).Format("2006/01/02 15:04")
}

// FormatSeconds renders a second count as unpadded minutes and zero-padded
// seconds, truncating rather than rounding.
func FormatSeconds(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	total := int(secs)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Table flattens records into a header plus coerced value rows, emitting
// columns in spec order. Missing fields become empty cells (time columns
// keep their 0:00 fallback).
func (f *Formatter) Table(columns []ColumnSpec, records []map[string]interface{}) ([]string, [][]string) {
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Field
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = f.Cell(col, record[col.Field])
		}
		rows = append(rows, row)
	}
	return header, rows
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
