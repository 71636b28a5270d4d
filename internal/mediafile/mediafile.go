// Package mediafile decides which payload files are video worth importing.
package mediafile

import (
	"path/filepath"
	"regexp"
	"strings"
)

var mediaExtensions = map[string]struct{}{
	"avi": {}, "mkv": {}, "mpg": {}, "mpeg": {}, "wmv": {}, "ogm": {},
	"mp4": {}, "iso": {}, "img": {}, "divx": {}, "m2ts": {}, "m4v": {},
	"ts": {}, "flv": {}, "f4v": {}, "mov": {}, "rmvb": {}, "vob": {},
	"dvr-ms": {}, "wtv": {}, "ogv": {}, "3gp": {},
}

var samplePattern = regexp.MustCompile(`(?i)(^|[\W_])sample\d*[\W_]`)

// IsMediaFile reports whether path has a video extension and is not a
// release sample. Dot-prefixed files are ignored.
func IsMediaFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if samplePattern.MatchString(base) {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	if ext == "" {
		return false
	}
	_, ok := mediaExtensions[ext]
	return ok
}

// Classifier satisfies the downloader's media classifier interface.
type Classifier struct{}

func (Classifier) IsMediaFile(path string) bool { return IsMediaFile(path) }
