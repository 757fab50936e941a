package core

// decode.go turns uploaded bytes into UTF-8 text before parsing.
//
// Spreadsheet exports arrive in a handful of encodings:
//   - UTF-8, with or without the BOM Excel adds (0xEF 0xBB 0xBF)
//   - UTF-16 LE/BE with a BOM ("Unicode Text" exports)
//   - Windows-1252 from older desktop tools
//
// Anything that is not valid UTF-8 and carries no UTF-16 BOM is read as
// Windows-1252, which maps every byte to a rune.

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode detects the encoding of data and returns it as a UTF-8 string along
// with the detected encoding name.
func Decode(data []byte) (string, string, error) {
	switch {
	case len(data) == 0:
		return "", "utf-8", nil

	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), "utf-8-bom", nil

	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", "", fmt.Errorf("%w: utf-16le: %v", ErrUnsupportedEncoding, err)
		}
		return string(out), "utf-16le", nil

	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", "", fmt.Errorf("%w: utf-16be: %v", ErrUnsupportedEncoding, err)
		}
		return string(out), "utf-16be", nil

	case utf8.Valid(data):
		return string(data), "utf-8", nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: windows-1252: %v", ErrUnsupportedEncoding, err)
	}
	return string(out), "windows-1252", nil
}
