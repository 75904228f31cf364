package chart

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeChartText decodes DTX file bytes. Charts in the wild are mostly
// Shift-JIS; that is tried first and raw UTF-8 is the fallback.
func decodeChartText(data []byte) string {
	if decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}
	return string(data)
}

// decodeSetDefText decodes SET.def bytes. Editors commonly save these as
// UTF-16 with a BOM, so that is tried before the Shift-JIS/UTF-8 chain.
func decodeSetDefText(data []byte) string {
	if hasUTF16BOM(data) {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if decoded, _, err := transform.Bytes(decoder, data); err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}
	return decodeChartText(data)
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}
