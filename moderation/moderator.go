// Package moderation masks forbidden words in chat content before it is stored.
package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator matches a normalized dictionary with an Aho-Corasick automaton.
// Matching ignores case, punctuation, spacing and common leet substitutions,
// while masking happens on the original runes so the text keeps its layout.
type Moderator struct {
	log          *slog.Logger
	matcher      *goahocorasick.Machine
	censoredChar rune
	empty        bool
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := lo.FilterMap(censoredWords, func(word string, _ int) ([]rune, bool) {
		p := normalizeRunes([]rune(word))
		return p, len(p) > 0
	})
	m := &Moderator{log: log, censoredChar: censoredChar, empty: len(patterns) == 0}
	if m.empty {
		return m, nil
	}

	m.matcher = new(goahocorasick.Machine)
	if err := m.matcher.Build(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// Censor returns content with every forbidden word masked.
func (m *Moderator) Censor(content string) string {
	censored, words := m.Inspect(content)
	if len(words) > 0 {
		m.log.Debug("Content censored", "words", len(words), "lang", Language(content))
	}
	return censored
}

// Language returns the ISO 639-1 code of the language content is most likely
// written in, empty for blank content.
func Language(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return whatlanggo.Detect(content).Lang.Iso6391()
}

// Inspect masks content and reports the dictionary words it found, in order.
func (m *Moderator) Inspect(content string) (string, []string) {
	if m.empty {
		return content, nil
	}
	mapping := normalize(content)
	if len(mapping.normalized) == 0 {
		return content, nil
	}
	terms := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(terms) == 0 {
		return content, nil
	}

	origRunes := []rune(content)
	var words []string
	for _, term := range terms {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
		words = append(words, string(term.Word))
	}
	return string(origRunes), words
}

func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
