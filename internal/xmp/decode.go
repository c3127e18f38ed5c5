package xmp

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names the character set a document was decoded with.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "iso-8859-1"
)

// Decode returns data as text. Invalid UTF-8 is decoded as ISO-8859-1 so that
// fields can still be read; content with NUL bytes is rejected as binary.
func Decode(data []byte) (string, Encoding, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", "", ErrDecode
	}
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", ErrDecode
	}
	return string(out), EncodingLatin1, nil
}

// DecodeUTF8 is the strict variant used before writes: only UTF-8 documents
// are rewritten, since output is always UTF-8.
func DecodeUTF8(data []byte) (string, error) {
	text, enc, err := Decode(data)
	if err != nil {
		return "", err
	}
	if enc != EncodingUTF8 {
		return "", ErrDecode
	}
	return text, nil
}
