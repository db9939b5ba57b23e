package recon

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/watariapp/watari/internal/models"
)

var (
	// "ch.12", "ch 12.5", "chapter 12"
	chapterToken = regexp.MustCompile(`(?i)\bch(?:apter)?\.?\s*(\d+(?:\.\d+)?)`)

	// any numeric run, with optional decimal part
	numberRun = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// volume and release-version markers that shadow the chapter number
	volumeToken  = regexp.MustCompile(`(?i)\b(?:vol(?:ume)?\.?|season)\s*\d+`)
	versionToken = regexp.MustCompile(`(?i)\bv\d+\b`)
)

// RecognizeChapterNumber extracts a numeric chapter number from a chapter
// name, in order of preference:
//
//  1. an explicit "ch.<num>" / "chapter <num>" token,
//  2. the sole numeric run in the name,
//  3. the first numeric run left after stripping the work's title and any
//     volume/version tokens.
//
// Returns [models.ChapterNumberUnknown] when nothing matches; unknown is
// distinct from zero, which is a valid number.
func RecognizeChapterNumber(entryTitle, chapterName string) float64 {
	if m := chapterToken.FindStringSubmatch(chapterName); m != nil {
		return parseNumber(m[1])
	}

	if runs := numberRun.FindAllString(chapterName, -1); len(runs) == 1 {
		return parseNumber(runs[0])
	}

	stripped := chapterName
	if entryTitle != "" {
		stripped = replaceFold(stripped, entryTitle)
	}
	stripped = volumeToken.ReplaceAllString(stripped, "")
	stripped = versionToken.ReplaceAllString(stripped, "")

	if run := numberRun.FindString(stripped); run != "" {
		return parseNumber(run)
	}

	return models.ChapterNumberUnknown
}

func parseNumber(s string) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.ChapterNumberUnknown
	}
	return n
}

// replaceFold removes the first case-insensitive occurrence of sub from s.
func replaceFold(s, sub string) string {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(sub))
	if idx < 0 {
		return s
	}
	return s[:idx] + s[idx+len(sub):]
}
