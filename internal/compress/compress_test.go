package compress

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/docket/internal/apperr"
)

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"a",
		"plain ascii text",
		"日本語のテキスト、絵文字 🎉 and ümlauts",
		strings.Repeat("repetitive payload ", 2000),
	}
	for _, s := range cases {
		got, err := Untext(Text(s))
		if err != nil {
			t.Fatalf("Untext(%q...): %v", trunc(s), err)
		}
		if got != s {
			t.Errorf("round trip mismatch for %q...", trunc(s))
		}
	}
}

func TestEmptyMarker(t *testing.T) {
	b := Text("")
	if b == nil || len(b) != 0 {
		t.Fatalf("Text(\"\") = %v, want empty non-nil slice", b)
	}
	s, err := Untext(nil)
	if err != nil || s != "" {
		t.Errorf("Untext(nil) = %q, %v", s, err)
	}
}

func TestCompresses(t *testing.T) {
	s := strings.Repeat("abcdefgh", 1000)
	if n := len(Text(s)); n >= len(s) {
		t.Errorf("compressed size %d not smaller than %d", n, len(s))
	}
}

func TestMalformedInput(t *testing.T) {
	_, err := Untext([]byte("definitely not zlib"))
	if !errors.Is(err, apperr.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}

	truncated := Text(strings.Repeat("truncate me ", 100))
	_, err = Untext(truncated[:len(truncated)/2])
	if !errors.Is(err, apperr.ErrDecode) {
		t.Errorf("truncated stream: err = %v, want ErrDecode", err)
	}
}

func trunc(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}
