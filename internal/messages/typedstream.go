// ABOUTME: Best-effort text extraction from archived attributed-string
// ABOUTME: blobs; any structural surprise yields empty text, never an error.

package messages

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"
)

// stringMarker precedes the length-prefixed payload inside the archive's
// NSString record.
var stringMarker = []byte("\x01\x94\x84\x01\x2b")

// textFromAttributedBody scans an archived attributed-string blob for its
// string payload. The archive format is undocumented; this reads just the
// one record shape observed in the wild and returns "" for anything else.
// The caller already preferred the plain text column, so an empty result
// only means the message truly has no recoverable text here.
func textFromAttributedBody(blob []byte) string {
	i := bytes.Index(blob, []byte("NSString"))
	if i < 0 {
		return ""
	}
	rest := blob[i+len("NSString"):]

	j := bytes.Index(rest, stringMarker)
	if j < 0 || j > 16 {
		return ""
	}
	rest = rest[j+len(stringMarker):]
	if len(rest) == 0 {
		return ""
	}

	// Length prefix: one byte, or 0x81/0x82 plus a little-endian u16/u32.
	var n int
	switch rest[0] {
	case 0x81:
		if len(rest) < 3 {
			return ""
		}
		n = int(binary.LittleEndian.Uint16(rest[1:3]))
		rest = rest[3:]
	case 0x82:
		if len(rest) < 5 {
			return ""
		}
		n = int(binary.LittleEndian.Uint32(rest[1:5]))
		rest = rest[5:]
	default:
		n = int(rest[0])
		rest = rest[1:]
	}
	if n <= 0 || n > len(rest) {
		return ""
	}
	s := rest[:n]
	if !utf8.Valid(s) {
		return ""
	}
	return string(s)
}
