package recordsparser

import (
	"strings"
	"unicode/utf8"

	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncodings is the fallback order used when none is configured.
// Latin-1 maps every byte, so nothing listed after it is ever reached.
var DefaultEncodings = []string{"utf-8", "cp1252", "latin-1"}

const utf8BOM = "\uFEFF"

func isUTF8(name string) bool {
	switch normalizeEncodingName(name) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

func normalizeEncodingName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isWindows1252(name string) bool {
	switch normalizeEncodingName(name) {
	case "cp1252", "windows-1252":
		return true
	}
	return false
}

// hasUndefined1252 reports bytes that Windows-1252 leaves unassigned. The
// charmap decoder turns them into C1 controls instead of failing.
func hasUndefined1252(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return true
		}
	}
	return false
}

// lookupEncoding resolves the common spreadsheet-export names first and
// falls back to the IANA registry for anything else.
func lookupEncoding(name string) (encoding.Encoding, bool) {
	switch normalizeEncodingName(name) {
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1", "l1":
		return charmap.ISO8859_1, true
	case "cp1252", "windows-1252":
		return charmap.Windows1252, true
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, false
	}
	return enc, true
}

// Decode converts raw bytes to text trying each encoding in order and
// returns the text together with the name of the encoding that worked.
// UTF-8 only succeeds on valid input and cp1252 rejects its five unassigned
// bytes. Other single-byte decoders always succeed, so they belong at the end
// of the list.
func Decode(raw []byte, encodings []string) (string, string, error) {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}

	tried := make([]string, 0, len(encodings))
	for _, name := range encodings {
		tried = append(tried, name)

		if isUTF8(name) {
			if utf8.Valid(raw) {
				return strings.TrimPrefix(string(raw), utf8BOM), name, nil
			}
			continue
		}

		if isWindows1252(name) && hasUndefined1252(raw) {
			logging.Debug("Input has bytes unassigned in cp1252", "encoding", name)
			continue
		}

		enc, ok := lookupEncoding(name)
		if !ok {
			logging.Warn("Unknown input encoding, skipping", "encoding", name)
			continue
		}

		decoded, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			logging.Debug("Decoder rejected input", "encoding", name, "error", err)
			continue
		}
		return string(decoded), name, nil
	}

	return "", "", &entities.DecodingError{Tried: tried}
}
