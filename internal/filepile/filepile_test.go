package filepile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/docket/internal/apperr"
)

func TestRoundTrip(t *testing.T) {
	many := make([]Entry, 0, 50)
	for i := 0; i < 50; i++ {
		many = append(many, Entry{Name: fmt.Sprintf("%02d.jpg", i), Data: bytes.Repeat([]byte{byte(i)}, i*7)})
	}
	cases := map[string][]Entry{
		"none": {},
		"one":  {{Name: "01.jpg", Data: []byte("0123456789abcdef")}},
		"zero-length": {
			{Name: "a.png", Data: []byte("aaa")},
			{Name: "empty.bin", Data: []byte{}},
			{Name: "b.png", Data: []byte("bbb")},
		},
		"unicode names": {{Name: "图片.png", Data: []byte{0xff, 0x00, 0x10}}},
		"many":          many,
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			blob, err := Pack(entries)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			r, err := NewReader(bytes.NewReader(blob), int64(len(blob)))
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			if r.Len() != len(entries) {
				t.Fatalf("Len = %d, want %d", r.Len(), len(entries))
			}
			for _, e := range entries {
				sr, err := r.Open(e.Name)
				if err != nil {
					t.Fatalf("Open(%s): %v", e.Name, err)
				}
				got, err := io.ReadAll(sr)
				if err != nil {
					t.Fatalf("ReadAll(%s): %v", e.Name, err)
				}
				if !bytes.Equal(got, e.Data) {
					t.Errorf("%s: got %d bytes, want %d", e.Name, len(got), len(e.Data))
				}
			}
		})
	}
}

func TestDeterministic(t *testing.T) {
	entries := []Entry{{Name: "x", Data: []byte("same")}, {Name: "y", Data: []byte("bytes")}}
	a, _ := Pack(entries)
	b, _ := Pack(entries)
	if !bytes.Equal(a, b) {
		t.Fatal("packing identical entries produced different blobs")
	}
}

func TestWireLayout(t *testing.T) {
	blob, err := Pack([]Entry{{Name: "ab", Data: []byte("xyz")}})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("jxd\x00\x00\x00\x00\x02ab\x01\x00\x00\x00\x03xyz")
	if diff := cmp.Diff(want, blob); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestUnpackNamesOrder(t *testing.T) {
	entries := []Entry{{Name: "2.png", Data: []byte("b")}, {Name: "1.png", Data: []byte("a")}}
	blob, _ := Pack(entries)
	got, err := Unpack(blob)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("Unpack mismatch (-want +got):\n%s", diff)
	}
	r, _ := NewReader(bytes.NewReader(blob), int64(len(blob)))
	if diff := cmp.Diff([]string{"2.png", "1.png"}, r.Names()); diff != "" {
		t.Errorf("Names mismatch:\n%s", diff)
	}
}

func TestBufferedWriter(t *testing.T) {
	buf := new(bytes.Buffer)
	bw := bufio.NewWriter(buf)
	w, err := NewWriter(bw)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append("f", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := Unpack(buf.Bytes())
	if err != nil || len(entries) != 1 || string(entries[0].Data) != "data" {
		t.Fatalf("Unpack after buffered write = %v, %v", entries, err)
	}
}

func TestMalformed(t *testing.T) {
	good, _ := Pack([]Entry{{Name: "a", Data: []byte("hello")}})
	cases := map[string][]byte{
		"empty":         {},
		"bad magic":     []byte("zip\x00\x00\x00\x00\x01a"),
		"truncated hdr": good[:6],
		"overrun":       good[:len(good)-2],
		"content first": []byte("jxd\x01\x00\x00\x00\x01a"),
		"missing body":  []byte("jxd\x00\x00\x00\x00\x01a"),
	}
	for name, blob := range cases {
		_, err := NewReader(bytes.NewReader(blob), int64(len(blob)))
		if !errors.Is(err, apperr.ErrDecode) {
			t.Errorf("%s: err = %v, want ErrDecode", name, err)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	blob, _ := Pack(nil)
	r, err := NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInvalidUTF8Name(t *testing.T) {
	w, _ := NewWriter(new(bytes.Buffer))
	if err := w.Append(string([]byte{0xff, 0xfe}), []byte("x")); err == nil {
		t.Fatal("expected error for invalid UTF-8 filename")
	}
}
