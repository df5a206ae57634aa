package post

import (
	"strconv"
	"strings"
	"time"
)

// maxSlugWords caps the word part of a slug, in bytes.
const maxSlugWords = 80

// Slug derives the human readable URL candidate for content created at now:
// the year, then the lowercased ASCII words of the first line joined by "_".
//
//	Slug("Hello, World!\nbody", t) == "2024_hello_world"
func Slug(content string, now time.Time) string {
	line, _, _ := strings.Cut(content, "\n")

	words := strings.FieldsFunc(line, func(c rune) bool {
		return !isASCIIAlnum(c)
	})
	simple := strings.ToLower(strings.Join(words, "_"))
	if len(simple) > maxSlugWords {
		simple = simple[:maxSlugWords]
	}

	return strconv.Itoa(now.UTC().Year()) + "_" + simple
}

// SlugCandidate returns the n-th candidate for base, starting at 1.
// Candidates after the first get a numeric suffix.
func SlugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "_" + strconv.Itoa(n)
}

func isASCIIAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
