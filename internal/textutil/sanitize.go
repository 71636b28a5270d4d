package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a name. Slashes,
// backslashes, colons, and asterisks become dashes; other unsafe characters
// are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

var (
	releaseSeparators = regexp.MustCompile(`[._]+`)
	multiSpace        = regexp.MustCompile(`\s+`)
	titleCaser        = cases.Title(language.English)
)

// ReleaseTitle converts a dotted release name such as
// "some.show.s01e02.hdtv" into "Some Show S01e02 Hdtv".
func ReleaseTitle(name string) string {
	name = releaseSeparators.ReplaceAllString(strings.TrimSpace(name), " ")
	name = multiSpace.ReplaceAllString(name, " ")
	return SanitizeFileName(titleCaser.String(strings.TrimSpace(name)))
}
