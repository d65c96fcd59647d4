package storage

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// utf8Document returns data as BOM-less UTF-8. Documents dropped into a
// container by other tools sometimes carry a byte order mark or are UTF-16,
// neither of which encoding/json accepts.
func utf8Document(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return fromUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, bomUTF16BE):
		return fromUTF16(data, unicode.BigEndian)
	default:
		return data, nil
	}
}

func fromUTF16(data []byte, order unicode.Endianness) ([]byte, error) {
	decoder := unicode.UTF16(order, unicode.ExpectBOM).NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return nil, fmt.Errorf("decode utf-16 document: %w", err)
	}
	return decoded, nil
}
