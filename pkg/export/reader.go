package export

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// mangledBOM is what a UTF-16 byte order mark degrades to after a pass
// through a UTF-8 transport such as a JSON request body: each BOM byte
// is invalid on its own and becomes a U+FFFD replacement character.
var mangledBOM = []byte("\xef\xbf\xbd\xef\xbf\xbd")

// DecodeTSV parses an uploaded TSV payload back into rows: quotes are
// stripped, blank lines skipped, fields split on tabs. The inverse of
// EncodeTSV for round-tripping bulk uploads. Uploads arrive as raw
// UTF-16 bytes, as UTF-16 bytes whose BOM was lost in a UTF-8
// transport, or as plain UTF-8 text; all three decode.
func DecodeTSV(data []byte) ([][]string, error) {
	text, err := payloadText(data)
	if err != nil {
		return nil, err
	}

	text = strings.ReplaceAll(text, "'", "")
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows, nil
}

func payloadText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, mangledBOM)
	switch {
	case len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)):
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode utf-16: %w", err)
		}
		return string(decoded), nil
	case bytes.IndexByte(data, 0x00) >= 0:
		// NUL bytes mean UTF-16 content that arrived without its BOM.
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode utf-16: %w", err)
		}
		return string(decoded), nil
	default:
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}
}
