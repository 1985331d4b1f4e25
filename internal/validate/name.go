// Package validate checks the full name a user submits before a coupon is
// rendered for them.
package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinLength = 5
	MaxLength = 60
	// WordCount is surname, given name and patronymic.
	WordCount = 3

	vowels = "аеёиоуыэюяaeiouy"
)

// Reason identifies which rule rejected a name.
type Reason string

const (
	ReasonLength    Reason = "length"
	ReasonCharset   Reason = "charset"
	ReasonWordCount Reason = "word-count"
	ReasonNoVowel   Reason = "no-vowel"
	ReasonAllVowel  Reason = "all-vowel"
)

// RejectionError reports the first failed rule. Word is set for the vowel rules.
type RejectionError struct {
	Reason Reason
	Word   string
}

func (e *RejectionError) Error() string {
	if e.Word != "" {
		return "name rejected: " + string(e.Reason) + " (" + e.Word + ")"
	}
	return "name rejected: " + string(e.Reason)
}

// Code is used for the err_code log field.
func (e *RejectionError) Code() string { return "name_" + string(e.Reason) }

// Name validates raw and returns it trimmed. Rules apply in order and the
// first failure wins: length, charset, word count, then per-word vowel checks.
func Name(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if n := utf8.RuneCountInString(text); n < MinLength || n > MaxLength {
		return "", &RejectionError{Reason: ReasonLength}
	}
	if strings.IndexFunc(text, disallowed) >= 0 {
		return "", &RejectionError{Reason: ReasonCharset}
	}

	words := strings.Fields(text)
	if len(words) != WordCount {
		return "", &RejectionError{Reason: ReasonWordCount}
	}
	for _, w := range words {
		switch countVowels(w) {
		case 0:
			return "", &RejectionError{Reason: ReasonNoVowel, Word: w}
		case utf8.RuneCountInString(w):
			return "", &RejectionError{Reason: ReasonAllVowel, Word: w}
		}
	}
	return text, nil
}

func disallowed(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return false
	case r >= 'А' && r <= 'я', r == 'Ё', r == 'ё':
		return false
	case r == '-', unicode.IsSpace(r):
		return false
	}
	return true
}

func countVowels(word string) int {
	n := 0
	for _, r := range strings.ToLower(word) {
		if strings.ContainsRune(vowels, r) {
			n++
		}
	}
	return n
}
