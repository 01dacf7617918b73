package services

import (
	"regexp"
	"strings"
)

// Markup wrapped around linked keywords; the client turns it into a
// clickable word.
const (
	PlayWordOpen  = "<play-word>"
	PlayWordClose = "</play-word>"
)

// asciiPunctuation matches the punctuation set removed before tokenising.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// MissingWords returns the words that do not appear in text as a
// case-insensitive substring, in input order.
//
// The check is deliberately loose: "cat" is satisfied by "catalog". It gates
// the retry loop only; ExtractOrderedWords applies the stricter token match.
func MissingWords(text string, words []string) []string {
	lower := strings.ToLower(text)
	var missing []string
	for _, word := range words {
		if !strings.Contains(lower, strings.ToLower(word)) {
			missing = append(missing, word)
		}
	}
	return missing
}

// ContainsAllWords reports whether MissingWords is empty. An empty word set
// is always contained.
func ContainsAllWords(text string, words []string) bool {
	return len(MissingWords(text, words)) == 0
}

// ExtractOrderedWords returns the lowercased required words that occur as
// whole tokens in text, deduplicated and ordered by first occurrence.
func ExtractOrderedWords(text string, words []string) []string {
	required := make(map[string]struct{}, len(words))
	for _, word := range words {
		required[strings.ToLower(word)] = struct{}{}
	}

	cleaned := strings.Map(func(r rune) rune {
		if r < 0x80 && strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))

	seen := make(map[string]struct{}, len(required))
	ordered := make([]string, 0, len(required))
	for _, token := range strings.Fields(cleaned) {
		if _, ok := required[token]; !ok {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		ordered = append(ordered, token)
	}
	return ordered
}

// LinkKeywords wraps every whole-word, case-sensitive occurrence of any
// keyword in play-word markup. Running it twice double-wraps.
func LinkKeywords(text string, keywords []string) string {
	alternatives := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		alternatives = append(alternatives, regexp.QuoteMeta(keyword))
	}
	if len(alternatives) == 0 {
		return text
	}

	pattern := regexp.MustCompile(`\b(` + strings.Join(alternatives, "|") + `)\b`)
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		return PlayWordOpen + match + PlayWordClose
	})
}

var linkStripper = strings.NewReplacer(PlayWordOpen, "", PlayWordClose, "")

// Private-use runes stand in for play-word tags while markdown is rendered.
const (
	playWordOpenMark  = "\uE000"
	playWordCloseMark = "\uE001"
)

var (
	textEscaper      = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", playWordOpenMark, "", playWordCloseMark, "")
	playWordMasker   = strings.NewReplacer(PlayWordOpen, playWordOpenMark, PlayWordClose, playWordCloseMark)
	playWordUnmasker = strings.NewReplacer(playWordOpenMark, PlayWordOpen, playWordCloseMark, PlayWordClose)
)

// EscapeText entity-encodes markup in generated text. Linking the escaped
// text leaves play-word tags as the only raw HTML.
func EscapeText(text string) string {
	return textEscaper.Replace(text)
}

// StripLinks removes play-word markup.
func StripLinks(text string) string {
	return linkStripper.Replace(text)
}

// SplitParagraphs breaks generated text on blank lines, dropping empty
// paragraphs. Text without blank lines is a single paragraph.
func SplitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if p := strings.TrimSpace(part); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
