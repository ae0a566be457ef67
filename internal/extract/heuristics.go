package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxTitleRunes = 200

var (
	byLinePattern     = regexp.MustCompile(`(?m)^[ \t]*[Bb]y:?[ \t]+([A-Z][\p{L}.'\-]*(?:[ \t]+[A-Z][\p{L}.'\-]*){0,4})`)
	credentialPattern = regexp.MustCompile(`([A-Z][\p{L}.'\-]*(?:[ \t]+[A-Z][\p{L}.'\-]*){1,3}),[ \t]*(?:M\.D\.|MD|D\.O\.|DO|Ph\.D\.|PhD)`)
	yearPattern       = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	hexTokenPattern   = regexp.MustCompile(`(?i)^[0-9a-f]+(?:-[0-9a-f]+)*$`)
	separatorPattern  = regexp.MustCompile(`[_\-.+]+`)
)

// TitleFromFilename derives a readable title from a filename. It returns ""
// when the name is too short or is a hex/UUID-like token.
func TitleFromFilename(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" {
		return ""
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if utf8.RuneCountInString(name) < 5 {
		return ""
	}
	if hexTokenPattern.MatchString(name) && containsDigit(name) {
		return ""
	}

	name = separatorPattern.ReplaceAllString(name, " ")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}

	upper, lower := strings.ToUpper(name), strings.ToLower(name)
	if name == upper || name == lower {
		name = titleCase(lower)
	}
	return name
}

// titleFromText returns the first short, non-URL line that contains a letter.
func titleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		n := utf8.RuneCountInString(line)
		if n < 5 || n > maxTitleRunes {
			continue
		}
		if looksLikeURL(line) || !containsLetter(line) {
			continue
		}
		return line
	}
	return ""
}

// authorFromText looks for "By Name" lines, then "Name, MD" credentials.
func authorFromText(text string) string {
	if m := byLinePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := credentialPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// yearFromText returns the first 4-digit token in 1900..2099, or 0.
func yearFromText(text string) int {
	m := yearPattern.FindString(text)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

// yearFromDate reads the leading year of a PDF ("D:2019...") or ISO ("2019-05-14...") date.
func yearFromDate(s string) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1900 || y > 2099 {
		return 0
	}
	return y
}

// fillFromText completes missing fields of meta from a text sample.
func fillFromText(meta Metadata, text string) Metadata {
	if meta.Title == "" {
		meta.Title = titleFromText(text)
	}
	if meta.Author == "" {
		meta.Author = authorFromText(text)
	}
	if meta.Year == 0 {
		meta.Year = yearFromText(text)
	}
	return meta
}

func textMetadata(text string) Metadata {
	return fillFromText(Metadata{}, firstRunes(text, 4000))
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func looksLikeURL(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "http://") || strings.Contains(l, "https://") || strings.HasPrefix(l, "www.")
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
