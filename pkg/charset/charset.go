// Package charset detects and converts the text encodings of template files.
package charset

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Canonical names returned by Detect.
const (
	UTF8     = "UTF-8"
	UTF16LE  = "UTF-16LE"
	UTF16BE  = "UTF-16BE"
	ISO88591 = "ISO-8859-1"
)

// binarySniffLen is how much of a file IsBinary looks at.
const binarySniffLen = 8000

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Detect guesses the encoding of data: a byte order mark wins, valid UTF-8
// is UTF-8, and anything else is taken as ISO-8859-1.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return UTF8
	case bytes.HasPrefix(data, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return UTF16BE
	case utf8.Valid(data):
		return UTF8
	default:
		return ISO88591
	}
}

// IsUTF8 reports whether name denotes UTF-8. Empty means UTF-8.
func IsUTF8(name string) bool {
	n := strings.ToUpper(strings.TrimSpace(name))
	return n == "" || n == "UTF-8" || n == "UTF8"
}

// Lookup returns the encoding registered under an IANA name or alias.
func Lookup(name string) (encoding.Encoding, error) {
	if IsUTF8(name) {
		return unicode.UTF8, nil
	}
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ISO-8859-1", "ISO8859_1", "LATIN1":
		return charmap.ISO8859_1, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// Decode converts data in the named encoding to a string. A leading byte
// order mark is dropped.
func Decode(data []byte, name string) (string, error) {
	data = stripBOM(data)
	if IsUTF8(name) {
		return string(data), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), nil
}

// Encode converts text to the named encoding.
func Encode(text, name string) ([]byte, error) {
	if IsUTF8(name) {
		return []byte(text), nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return out, nil
}

func stripBOM(data []byte) []byte {
	for _, bom := range [][]byte{bomUTF8, bomUTF16LE, bomUTF16BE} {
		if bytes.HasPrefix(data, bom) {
			return data[len(bom):]
		}
	}
	return data
}

// IsBinary reports whether data looks binary: a NUL byte within the first
// 8000 bytes. UTF-16 text with a byte order mark is not binary.
func IsBinary(data []byte) bool {
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		return false
	}
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// NormalizeNewlines turns CRLF line endings into LF.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
