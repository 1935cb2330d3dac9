// Package tokenizer word-segments text and marks sentence terminators (C1).
//
// The corpus is Chinese medical text, which carries no whitespace word
// boundaries, so segmentation here is rune-based: CJK runs split into
// individual runes (a cheap stand-in for a real word segmenter), while
// runs of Latin letters/digits stay joined as a single token (so "COVID-19"
// or "mRNA" is not shredded to single characters). Punctuation, including
// the sentence terminators, is always its own token.
package tokenizer

import "unicode"

// Token is a single unit produced by Tokenize.
type Token struct {
	Text string
	// Terminator reports whether this token is a configured sentence
	// terminator (one of "。", "!", "?" by default).
	Terminator bool
}

// DefaultTerminators is the terminator set used when a caller does not
// configure its own (spec.md §4.1).
var DefaultTerminators = []string{"。", "!", "?"}

func isTerminator(s string, terms []string) bool {
	for _, t := range terms {
		if t == s {
			return true
		}
	}
	return false
}

func isLatinWordRune(r rune) bool {
	return unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) && r < unicode.MaxASCII
}

// Tokenize splits text into Tokens, marking any token equal to a configured
// terminator. When terms is nil, DefaultTerminators is used.
func Tokenize(text string, terms []string) []Token {
	if terms == nil {
		terms = DefaultTerminators
	}
	runes := []rune(text)
	out := make([]Token, 0, len(runes))
	i := 0
	for i < len(runes) {
		r := runes[i]
		if unicode.IsSpace(r) {
			i++
			continue
		}
		if isLatinWordRune(r) {
			j := i + 1
			for j < len(runes) && (isLatinWordRune(runes[j]) || runes[j] == '-') {
				j++
			}
			s := string(runes[i:j])
			out = append(out, Token{Text: s, Terminator: isTerminator(s, terms)})
			i = j
			continue
		}
		s := string(r)
		out = append(out, Token{Text: s, Terminator: isTerminator(s, terms)})
		i++
	}
	return out
}

// Join reconstructs the tokenised form of a run of tokens, matching the
// spacing-free reconstruction the chunker relies on.
func Join(toks []Token) string {
	out := make([]rune, 0, len(toks)*2)
	for _, t := range toks {
		out = append(out, []rune(t.Text)...)
	}
	return string(out)
}
