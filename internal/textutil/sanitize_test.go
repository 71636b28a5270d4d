package textutil_test

import (
	"testing"

	"showseed/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"  Show: The Return ": "Show- The Return",
		"What?":               "What",
		"a/b\\c":              "a-b-c",
		"":                    "",
	}
	for in, want := range tests {
		if got := textutil.SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReleaseTitle(t *testing.T) {
	tests := map[string]string{
		"some.show.s01e02.hdtv": "Some Show S01e02 Hdtv",
		"another_show__pilot":   "Another Show Pilot",
		"  already Nice  ":      "Already Nice",
		"what.is.this?.s01e01":  "What Is This S01e01",
	}
	for in, want := range tests {
		if got := textutil.ReleaseTitle(in); got != want {
			t.Errorf("ReleaseTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
