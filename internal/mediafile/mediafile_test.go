package mediafile_test

import (
	"testing"

	"showseed/internal/mediafile"
)

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"Show.S01E02.720p.mkv", true},
		{"dir/Show.S01E02.MP4", true},
		{"Show.S01E02.dvr-ms", true},
		{"Show.S01E02.nfo", false},
		{"Show.S01E02.srt", false},
		{"noextension", false},
		{"Show.S01E02.sample.mkv", false},
		{"sample-show.s01e02.mkv", false},
		{"Show_Sample2_.avi", false},
		{"Samples/show.mkv", true},
		{"Show.Sampler.S01E02.mkv", true},
		{".hidden.mkv", false},
	}
	for _, tc := range tests {
		if got := mediafile.IsMediaFile(tc.path); got != tc.want {
			t.Errorf("IsMediaFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestClassifier(t *testing.T) {
	var c mediafile.Classifier
	if !c.IsMediaFile("a.avi") || c.IsMediaFile("a.txt") {
		t.Fatal("classifier should delegate to IsMediaFile")
	}
}
