package export

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gakuen-dev/biz-ops-api/internal/models"
)

func newUTCFormatter(t *testing.T) *Formatter {
	t.Helper()
	f, err := NewFormatter("UTC")
	require.NoError(t, err)
	return f
}

func TestFormatterTextBlanksNonText(t *testing.T) {
	f := newUTCFormatter(t)
	spec := ColumnSpec{Field: "Score", Type: TypeText}

	assert.Equal(t, "hello", f.Cell(spec, "hello"))
	// Non-text values blank out rather than being stringified.
	assert.Equal(t, "", f.Cell(spec, 42))
	assert.Equal(t, "", f.Cell(spec, 0.5))
	assert.Equal(t, "", f.Cell(spec, nil))
}

func TestFormatterDate(t *testing.T) {
	f := newUTCFormatter(t)
	spec := ColumnSpec{Field: "Updated", Type: TypeDate}

	assert.Equal(t, "2024/01/15", f.Cell(spec, "2024/01/15 00:00:00 UTC"))
	assert.Equal(t, "", f.Cell(spec, "not a date"))
	assert.Equal(t, "", f.Cell(spec, 12345))
}

func TestFormatterDuration(t *testing.T) {
	f := newUTCFormatter(t)
	spec := ColumnSpec{Field: "Time", Type: TypeTime}

	assert.Equal(t, "2:05", f.Cell(spec, 125))
	assert.Equal(t, "0:00", f.Cell(spec, 0))
	assert.Equal(t, "0:59", f.Cell(spec, 59))
	assert.Equal(t, "1:00", f.Cell(spec, 60))
	assert.Equal(t, "59:59", f.Cell(spec, 3599))
	assert.Equal(t, "0:00", f.Cell(spec, "abc"))
	assert.Equal(t, "0:00", f.Cell(spec, nil))
}

func TestFormatSecondsTruncates(t *testing.T) {
	// Round trip: the leading component of the rendered value recovers
	// floor(v/60), truncation not rounding.
	for _, v := range []int{0, 1, 59, 60, 61, 119, 125, 3599, 3600, 7265} {
		rendered := FormatSeconds(float64(v))
		parts := strings.SplitN(rendered, ":", 2)
		minutes, err := strconv.Atoi(parts[0])
		require.NoError(t, err)
		assert.Equal(t, v/60, minutes, "seconds=%d rendered=%s", v, rendered)
	}
}

func TestFormatterPercent(t *testing.T) {
	f := newUTCFormatter(t)
	spec := ColumnSpec{Field: "Pct", Type: TypePercent}

	assert.Equal(t, models.NotAttempted, f.Cell(spec, models.NotAttempted))
	assert.Equal(t, "87.3%", f.Cell(spec, 0.873))
	assert.Equal(t, "100.0%", f.Cell(spec, 1.0))
	assert.Equal(t, "0.0%", f.Cell(spec, 0.0))
	assert.Equal(t, "", f.Cell(spec, "0.5"))
	assert.Equal(t, "", f.Cell(spec, nil))
}

func TestFormatterPercentRounding(t *testing.T) {
	f := newUTCFormatter(t)
	spec := ColumnSpec{Field: "Pct", Type: TypePercent}

	for _, tc := range []struct {
		in   float64
		want string
	}{
		{0.8734, "87.3%"},
		{0.8736, "87.4%"},
		{0.005, "0.5%"},
	} {
		assert.Equal(t, tc.want, f.Cell(spec, tc.in), fmt.Sprintf("in=%v", tc.in))
	}
}

func TestFormatterTableMixedRow(t *testing.T) {
	f := newUTCFormatter(t)
	columns := []ColumnSpec{
		{Field: "Score", Type: TypeText},
		{Field: "Updated", Type: TypeDate},
		{Field: "Time", Type: TypeTime},
		{Field: "Pct", Type: TypePercent},
	}
	records := []map[string]interface{}{
		{"Score": 42, "Updated": "2024/01/15 00:00:00 UTC", "Time": 125, "Pct": 0.873},
	}

	header, rows := f.Table(columns, records)
	assert.Equal(t, []string{"Score", "Updated", "Time", "Pct"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"", "2024/01/15", "2:05", "87.3%"}, rows[0])
}

func TestFormatterTableMissingSectionField(t *testing.T) {
	f := newUTCFormatter(t)
	columns := []ColumnSpec{
		{Field: "Username", Type: TypeText},
		{Field: "Section 1", Type: TypePercent},
	}
	records := []map[string]interface{}{
		{"Username": "alice"},
	}

	_, rows := f.Table(columns, records)
	require.Len(t, rows, 1)
	// A missing section field is an empty cell, not an error.
	assert.Equal(t, []string{"alice", ""}, rows[0])
}

func TestFormatterHiddenColumnKeptInRow(t *testing.T) {
	f := newUTCFormatter(t)
	columns := []ColumnSpec{
		{Field: "Username", Type: TypeText},
		{Field: "Group Code", Type: TypeHidden},
	}
	records := []map[string]interface{}{
		{"Username": "alice", "Group Code": "G001"},
	}

	header, rows := f.Table(columns, records)
	assert.Equal(t, []string{"Username", "Group Code"}, header)
	assert.Equal(t, []string{"alice", "G001"}, rows[0])
}
