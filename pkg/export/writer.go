package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// quotedWriter emits delimiter-separated rows with every field quoted,
// matching the legacy interchange dialects: comma-delimited with double
// quotes for CSV, tab-delimited with single quotes for TSV.
type quotedWriter struct {
	w     io.Writer
	delim string
	quote string
}

func (qw *quotedWriter) writeRow(fields []string) error {
	parts := make([]string, len(fields))
	for i, field := range fields {
		escaped := strings.ReplaceAll(field, qw.quote, qw.quote+qw.quote)
		parts[i] = qw.quote + escaped + qw.quote
	}
	_, err := io.WriteString(qw.w, strings.Join(parts, qw.delim)+"\r\n")
	return err
}

func encodeRows(enc *encoding.Encoder, delim, quote string, header []string, rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	tw := transform.NewWriter(buf, enc)
	qw := &quotedWriter{w: tw, delim: delim, quote: quote}

	if header != nil {
		if err := qw.writeRow(header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range rows {
		if err := qw.writeRow(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("flush encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeCSV renders double-quoted, comma-delimited rows in the regional
// code page customers' spreadsheet tooling expects. Runes outside the
// code page are replaced rather than failing the export.
func EncodeCSV(header []string, rows [][]string) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder())
	return encodeRows(enc, ",", `"`, header, rows)
}

// EncodeTSV renders single-quoted, tab-delimited rows as UTF-16 with BOM.
func EncodeTSV(header []string, rows [][]string) ([]byte, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	return encodeRows(enc, "\t", "'", header, rows)
}
