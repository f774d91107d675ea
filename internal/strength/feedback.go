package strength

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	suggestAnotherWord = "Add another word or two. Uncommon words are better."
	suggestFewWords    = "Use a few words, avoid common phrases."
	suggestNoSymbols   = "No need for symbols, digits, or uppercase letters."
	suggestCaps        = "Capitalization doesn't help very much."
	suggestAllCaps     = "All-uppercase is almost as easy to guess as all-lowercase."
	suggestKeyboard    = "Use a longer keyboard pattern with more turns."
	suggestRepeats     = "Avoid repeated words and characters."
	suggestSequences   = "Avoid sequences."
	suggestDates       = "Avoid dates and years that are associated with you."
)

type feedback struct {
	warning     string
	suggestions []string
}

func buildFeedback(score int, matches []Match) feedback {
	if len(matches) == 0 {
		return feedback{suggestions: []string{suggestFewWords, suggestNoSymbols}}
	}
	if score > 2 {
		return feedback{suggestions: []string{}}
	}

	longest := matches[0]
	for _, m := range matches[1:] {
		if utf8.RuneCountInString(m.Token) > utf8.RuneCountInString(longest.Token) {
			longest = m
		}
	}

	fb := matchFeedback(longest, len(matches) == 1)
	fb.suggestions = append([]string{suggestAnotherWord}, fb.suggestions...)
	return fb
}

func matchFeedback(m Match, sole bool) feedback {
	switch m.Pattern {
	case "dictionary":
		return dictionaryFeedback(m, sole)
	case "spatial":
		w := "Short keyboard patterns are easy to guess."
		if utf8.RuneCountInString(m.Token) >= 6 {
			w = "Straight rows of keys are easy to guess."
		}
		return feedback{warning: w, suggestions: []string{suggestKeyboard}}
	case "repeat":
		w := `Repeats like "abcabcabc" are only slightly harder to guess than "abc".`
		if singleRune(m.Token) {
			w = `Repeats like "aaa" are easy to guess.`
		}
		return feedback{warning: w, suggestions: []string{suggestRepeats}}
	case "sequence":
		return feedback{warning: "Sequences like abc or 6543 are easy to guess.", suggestions: []string{suggestSequences}}
	case "date":
		return feedback{warning: "Dates are often easy to guess.", suggestions: []string{suggestDates}}
	default:
		return feedback{suggestions: []string{}}
	}
}

func dictionaryFeedback(m Match, sole bool) feedback {
	var fb feedback
	dict := strings.ToLower(m.Dictionary)
	switch {
	case strings.Contains(dict, "password"):
		if sole {
			fb.warning = "This is a very common password."
		} else {
			fb.warning = "This is similar to a commonly used password."
		}
	case strings.Contains(dict, "english"), strings.Contains(dict, "wiki"):
		if sole {
			fb.warning = "A word by itself is easy to guess."
		}
	case strings.Contains(dict, "name"):
		if sole {
			fb.warning = "Names and surnames by themselves are easy to guess."
		} else {
			fb.warning = "Common names and surnames are easy to guess."
		}
	case strings.Contains(dict, "user"):
		fb.warning = "Avoid words tied to the account, like its name or username."
	}

	first, _ := utf8.DecodeRuneInString(m.Token)
	switch {
	case m.Token != "" && m.Token == strings.ToUpper(m.Token) && strings.ToUpper(m.Token) != strings.ToLower(m.Token):
		fb.suggestions = append(fb.suggestions, suggestAllCaps)
	case unicode.IsUpper(first):
		fb.suggestions = append(fb.suggestions, suggestCaps)
	}
	return fb
}

func singleRune(s string) bool {
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return false
	}
	for _, r := range s[size:] {
		if r != first {
			return false
		}
	}
	return true
}
