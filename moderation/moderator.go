package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks censored words in message text. It matches on a
// normalized form of the text (lower case, leet speak folded, punctuation
// and spaces dropped) and masks the matching runes of the original.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// folded is the normalized text with, for each of its runes, the index of
// the rune it came from in the original.
type folded struct {
	runes  []rune
	origin []int
}

// NewModerator builds the automaton from censoredWords. Blank entries are
// ignored; with nothing left to match it returns a nil Moderator, which
// leaves every text untouched.
func NewModerator(censoredWords []string, replacement rune, log *slog.Logger) (*Moderator, error) {
	patterns := lo.FilterMap(censoredWords, func(word string, _ int) ([]rune, bool) {
		f := fold(strings.TrimSpace(word))
		return f.runes, len(f.runes) > 0
	})
	if len(patterns) == 0 {
		return nil, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderation enabled", "censored_words", len(patterns))
	return &Moderator{matcher: m, replacement: replacement, log: log}, nil
}

// Censor returns text with every censored word masked and reports whether
// anything was masked. Spacing and surrounding characters are preserved.
func (m *Moderator) Censor(text string) (string, bool) {
	if m == nil {
		return text, false
	}
	f := fold(text)
	if len(f.runes) == 0 {
		return text, false
	}
	spans := m.matcher.MultiPatternSearch(f.runes, false)
	if len(spans) == 0 {
		return text, false
	}

	original := []rune(text)
	for _, span := range spans {
		start, end := span.Pos, span.Pos+len(span.Word)
		if start < 0 || end > len(f.origin) {
			continue
		}
		for i := f.origin[start]; i <= f.origin[end-1]; i++ {
			original[i] = m.replacement
		}
	}
	m.log.Debug("Message censored", "matches", len(spans), "lang", language(text))
	return string(original), true
}

// language returns the ISO 639-1 code of the detected language.
func language(text string) string {
	return whatlanggo.Detect(text).Lang.Iso6391()
}

func fold(input string) folded {
	runes := []rune(input)
	f := folded{runes: make([]rune, 0, len(runes)), origin: make([]int, 0, len(runes))}
	for i, r := range runes {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(clean))
		f.origin = append(f.origin, i)
	}
	return f
}

// unleet maps common leet speak characters back to letters.
func unleet(r rune) rune {
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
