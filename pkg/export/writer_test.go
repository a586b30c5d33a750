package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/japanese"
)

func TestEncodeCSVQuotesEveryField(t *testing.T) {
	data, err := EncodeCSV([]string{"Name", "Score"}, [][]string{{"alice", "90"}})
	require.NoError(t, err)

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(decoded), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"Name","Score"`, lines[0])
	assert.Equal(t, `"alice","90"`, lines[1])
}

func TestEncodeCSVShiftJIS(t *testing.T) {
	data, err := EncodeCSV([]string{"氏名"}, [][]string{{"テストユーザー1"}})
	require.NoError(t, err)

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "テストユーザー1")
}

func TestEncodeTSVRoundTrip(t *testing.T) {
	header := []string{"Username", "Member Code"}
	rows := [][]string{
		{"alice", "A-001"},
		{"bob", "B-002"},
	}

	data, err := EncodeTSV(header, rows)
	require.NoError(t, err)
	// UTF-16LE BOM
	require.True(t, len(data) >= 2)
	assert.Equal(t, byte(0xFF), data[0])
	assert.Equal(t, byte(0xFE), data[1])

	parsed, err := DecodeTSV(data)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, header, parsed[0])
	assert.Equal(t, rows[0], parsed[1])
	assert.Equal(t, rows[1], parsed[2])
}

func TestDecodeTSVSurvivesJSONBody(t *testing.T) {
	header := []string{"Email", "Username"}
	rows := [][]string{{"bob@example.com", "bob"}}

	data, err := EncodeTSV(header, rows)
	require.NoError(t, err)

	// A JSON request body replaces the UTF-16 BOM with U+FFFD pairs.
	encoded, err := json.Marshal(string(data))
	require.NoError(t, err)
	var carried string
	require.NoError(t, json.Unmarshal(encoded, &carried))
	require.NotEqual(t, string(data), carried)

	parsed, err := DecodeTSV([]byte(carried))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, header, parsed[0])
	assert.Equal(t, rows[0], parsed[1])
}

func TestDecodeTSVPlainUTF8(t *testing.T) {
	parsed, err := DecodeTSV([]byte("\ufeffEmail\tUsername\r\nbob@example.com\tbob\r\n"))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, []string{"Email", "Username"}, parsed[0])
	assert.Equal(t, []string{"bob@example.com", "bob"}, parsed[1])
}

func TestDecodeTSVSkipsBlankLines(t *testing.T) {
	data, err := EncodeTSV([]string{"a"}, [][]string{{""}, {"b"}})
	require.NoError(t, err)

	parsed, err := DecodeTSV(data)
	require.NoError(t, err)
	// The empty row collapses to a blank line and is skipped.
	require.Len(t, parsed, 2)
	assert.Equal(t, []string{"a"}, parsed[0])
	assert.Equal(t, []string{"b"}, parsed[1])
}
