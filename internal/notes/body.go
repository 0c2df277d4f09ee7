// ABOUTME: Plaintext extraction from the store's compressed note archive;
// ABOUTME: any structural surprise yields empty text, never an error.

package notes

import (
	"bytes"
	"compress/gzip"
	"io"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxBodySize bounds decompression; the archive is attacker-adjacent
// input in the sense that the store is externally owned.
const maxBodySize = 8 << 20

// bodyText extracts the plaintext of a note from its stored archive: a
// gzip stream wrapping a protobuf whose document (field 2) holds a note
// (field 3) whose text lives in field 2. The format is undocumented;
// anything off-shape returns "".
func bodyText(blob []byte) string {
	if len(blob) == 0 {
		return ""
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return ""
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, maxBodySize))
	if err != nil {
		return ""
	}

	doc := messageField(raw, 2)
	note := messageField(doc, 3)
	text := messageField(note, 2)
	if !utf8.Valid(text) {
		return ""
	}
	return string(text)
}

// messageField returns the payload of the first length-delimited field
// numbered num, or nil.
func messageField(b []byte, num protowire.Number) []byte {
	for len(b) > 0 {
		n, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return nil
		}
		b = b[tagLen:]
		if typ == protowire.BytesType {
			v, vLen := protowire.ConsumeBytes(b)
			if vLen < 0 {
				return nil
			}
			if n == num {
				return v
			}
			b = b[vLen:]
			continue
		}
		skip := protowire.ConsumeFieldValue(n, typ, b)
		if skip < 0 {
			return nil
		}
		b = b[skip:]
	}
	return nil
}
