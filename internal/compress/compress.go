// Package compress encodes document text into the compact form stored in the
// docs.text column.
package compress

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/starford/docket/internal/apperr"
)

// Level is the zlib level used for all text payloads.
const Level = 6

// Text compresses s. The empty string maps to an empty byte slice rather than
// an empty zlib stream.
func Text(s string) []byte {
	if s == "" {
		return []byte{}
	}
	buf := new(bytes.Buffer)
	w, err := zlib.NewWriterLevel(buf, Level)
	if err != nil {
		// Level is a valid constant.
		panic(err)
	}
	_, _ = w.Write([]byte(s))
	_ = w.Close()
	return buf.Bytes()
}

// Untext is the inverse of Text.
func Untext(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return "", errors.Wrapf(apperr.ErrDecode, "opening zlib stream: %s", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(apperr.ErrDecode, "inflating: %s", err)
	}
	if !utf8.Valid(raw) {
		return "", errors.Wrap(apperr.ErrDecode, "text is not valid UTF-8")
	}
	return string(raw), nil
}
