// Package tokenizer provides the minimal text tokeniser used to build the
// index. It splits input into maximal runs of alphanumeric code points
// (letters, combining vowel signs and any numeric character) and lower-cases
// them. There is no stop-word removal or stemming; callers that
// need smarter analysis substitute their own Func.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token represents a single normalised term and its 0-based token offset in
// the original text.
type Token struct {
	Term     string
	Position int
}

// Func turns raw text into tokens. Tokenize is the default.
type Func func(text string) []Token

// Tokenize breaks text into lower-cased alphanumeric Tokens. It never fails:
// invalid UTF-8 decodes to U+FFFD, which is treated as a separator.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(text, isSeparator)
	tokens := make([]Token, 0, len(words))
	for i, word := range words {
		tokens = append(tokens, Token{
			Term:     strings.ToLower(word),
			Position: i,
		})
	}
	return tokens
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Other_Alphabetic, r))
}
