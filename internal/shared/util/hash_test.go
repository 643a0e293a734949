package util

import (
	"errors"
	"testing"
)

func TestHashOwner(t *testing.T) {
	id := "guest:12345"
	got := HashOwner(id)
	if got != HashOwner(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "readback-ask-1.mp3", want: "readback-ask-1.mp3"},
		{in: " a/b\\c:d.wav ", want: "a_b_c_d.wav"},
		{in: "../etc/passwd", err: true},
		{in: "   ", err: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidFileName) {
				t.Fatalf("SanitizeFileName(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v want %q", tt.in, got, err, tt.want)
		}
	}
}
