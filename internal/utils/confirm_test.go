package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirmReader(t *testing.T) {
	cases := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		" yes ": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"maybe": false,
	}
	for in, want := range cases {
		var out bytes.Buffer
		if got := ConfirmReader("Upload?", strings.NewReader(in), &out); got != want {
			t.Fatalf("ConfirmReader(%q) = %v, want %v", in, got, want)
		}
		if out.String() != "Upload? [y/N]: " {
			t.Fatalf("unexpected prompt %q", out.String())
		}
	}
}
