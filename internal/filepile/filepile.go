// Package filepile implements a minimal container that concatenates named
// binary sub-files into one blob.
//
// Layout: the 3-byte magic "jxd", then alternating filename and content
// records, each encoded as tag (1 byte), length (4 bytes, big-endian) and
// payload. Sub-file bytes are stored verbatim, so packing the same inputs
// always yields the same blob and its digest stays stable.
package filepile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/starford/docket/internal/apperr"
)

// Magic is the container header.
var Magic = []byte("jxd")

// Record tags.
const (
	TagFilename byte = 0
	TagContent  byte = 1
)

const headerLen = 5

// Entry is one named sub-file.
type Entry struct {
	Name string
	Data []byte
}

// Writer appends sub-files to an underlying writer.
type Writer struct {
	w   io.Writer
	hdr [headerLen]byte
}

// NewWriter writes the magic header and returns a Writer.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(Magic); err != nil {
		return nil, errors.Wrap(err, "writing magic")
	}
	return &Writer{w: w}, nil
}

// Append writes a filename record followed by a content record.
func (w *Writer) Append(name string, data []byte) error {
	if !utf8.ValidString(name) {
		return errors.Errorf("filename %q is not valid UTF-8", name)
	}
	if err := w.record(TagFilename, []byte(name)); err != nil {
		return errors.Wrapf(err, "writing name of %s", name)
	}
	if err := w.record(TagContent, data); err != nil {
		return errors.Wrapf(err, "writing content of %s", name)
	}
	return nil
}

func (w *Writer) record(tag byte, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return errors.Errorf("payload of %d bytes exceeds record limit", len(payload))
	}
	w.hdr[0] = tag
	binary.BigEndian.PutUint32(w.hdr[1:], uint32(len(payload)))
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}

// Close flushes the underlying writer when it is buffered.
func (w *Writer) Close() error {
	if f, ok := w.w.(*bufio.Writer); ok {
		return f.Flush()
	}
	return nil
}

type piece struct {
	name   string
	offset int64
	size   int64
}

// Reader gives random access to the sub-files of a container.
type Reader struct {
	ra     io.ReaderAt
	pieces []piece
	index  map[string]int
}

// NewReader validates the magic and scans the whole container once to build
// the name index. Malformed input yields an error wrapping apperr.ErrDecode.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	head := make([]byte, len(Magic))
	if _, err := ra.ReadAt(head, 0); err != nil || !bytes.Equal(head, Magic) {
		return nil, errors.Wrap(apperr.ErrDecode, "wrong file format")
	}

	r := &Reader{ra: ra, index: make(map[string]int)}
	off := int64(len(Magic))
	for off < size {
		tag, n, err := readHeader(ra, off, size)
		if err != nil {
			return nil, err
		}
		if tag != TagFilename {
			return nil, errors.Wrapf(apperr.ErrDecode, "expected filename record at offset %d", off)
		}
		name := make([]byte, n)
		if n > 0 {
			if _, err := ra.ReadAt(name, off+headerLen); err != nil {
				return nil, errors.Wrapf(apperr.ErrDecode, "reading filename at offset %d", off)
			}
		}
		if !utf8.Valid(name) {
			return nil, errors.Wrapf(apperr.ErrDecode, "filename at offset %d is not UTF-8", off)
		}
		off += headerLen + n

		tag, n, err = readHeader(ra, off, size)
		if err != nil {
			return nil, err
		}
		if tag != TagContent {
			return nil, errors.Wrapf(apperr.ErrDecode, "expected content record at offset %d", off)
		}
		p := piece{name: string(name), offset: off + headerLen, size: n}
		if _, dup := r.index[p.name]; !dup {
			r.index[p.name] = len(r.pieces)
		}
		r.pieces = append(r.pieces, p)
		off += headerLen + n
	}
	return r, nil
}

func readHeader(ra io.ReaderAt, off, size int64) (byte, int64, error) {
	if size-off < headerLen {
		return 0, 0, errors.Wrapf(apperr.ErrDecode, "truncated record header at offset %d", off)
	}
	var hdr [headerLen]byte
	if _, err := ra.ReadAt(hdr[:], off); err != nil {
		return 0, 0, errors.Wrapf(apperr.ErrDecode, "reading record header at offset %d", off)
	}
	n := int64(binary.BigEndian.Uint32(hdr[1:]))
	if n > size-off-headerLen {
		return 0, 0, errors.Wrapf(apperr.ErrDecode, "record at offset %d overruns container", off)
	}
	return hdr[0], n, nil
}

// Open returns a reader over the named sub-file. The first entry wins when a
// name occurs twice.
func (r *Reader) Open(name string) (*io.SectionReader, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, errors.Wrapf(apperr.ErrNotFound, "file %s", name)
	}
	p := r.pieces[i]
	return io.NewSectionReader(r.ra, p.offset, p.size), nil
}

// Names returns sub-file names in append order.
func (r *Reader) Names() []string {
	out := make([]string, len(r.pieces))
	for i, p := range r.pieces {
		out[i] = p.name
	}
	return out
}

// Size returns the byte length of the named sub-file.
func (r *Reader) Size(name string) (int64, bool) {
	i, ok := r.index[name]
	if !ok {
		return 0, false
	}
	return r.pieces[i].size, true
}

// Len returns the number of sub-files.
func (r *Reader) Len() int { return len(r.pieces) }

// Pack encodes entries into a container blob.
func Pack(entries []Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := NewWriter(buf)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Append(e.Name, e.Data); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), w.Close()
}

// Unpack decodes every entry of a container blob.
func Unpack(blob []byte) ([]Entry, error) {
	r, err := NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(r.pieces))
	for _, p := range r.pieces {
		data := make([]byte, p.size)
		if p.size > 0 {
			if _, err := r.ra.ReadAt(data, p.offset); err != nil {
				return nil, errors.Wrapf(apperr.ErrDecode, "reading %s", p.name)
			}
		}
		out = append(out, Entry{Name: p.name, Data: data})
	}
	return out, nil
}
