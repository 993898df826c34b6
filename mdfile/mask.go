package mdfile

import (
	"fmt"
	"regexp"
	"strings"
)

// fencedCode matches a fenced code block: a non-greedy, multiline span between
// two triple-backtick delimiters. An unterminated fence never matches and is
// therefore translated as ordinary text.
var fencedCode = regexp.MustCompile("(?s)```(.*?)```")

// placeholderLine matches a line made only of placeholder tokens.
var placeholderLine = regexp.MustCompile(`^\s*(?:__PLACEHOLDER_\d+__\s*)+$`)

// Span is a protected piece of body text replaced by Token during translation.
type Span struct {
	Token string
	Text  string
}

// Spans holds the protected spans of one document in insertion order.
type Spans []Span

// Token returns the placeholder for the i-th span.
func Token(i int) string {
	return fmt.Sprintf("__PLACEHOLDER_%d__", i)
}

// Mask replaces every fenced code block in body with a positional placeholder
// and returns the masked body together with the spans needed to restore it.
func Mask(body string) (string, Spans) {
	var spans Spans
	masked := fencedCode.ReplaceAllStringFunc(body, func(match string) string {
		tok := Token(len(spans))
		spans = append(spans, Span{Token: tok, Text: match})
		return tok
	})
	return masked, spans
}

// Unmask puts every span's original text back in place of its token.
// Replacement is a single pass, so span text that happens to contain a token
// is never expanded again.
func (s Spans) Unmask(text string) string {
	if len(s) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(s))
	for _, sp := range s {
		pairs = append(pairs, sp.Token, sp.Text)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Tokens returns the tokens present in line, in span order.
func (s Spans) Tokens(line string) []string {
	var toks []string
	for _, sp := range s {
		if strings.Contains(line, sp.Token) {
			toks = append(toks, sp.Token)
		}
	}
	return toks
}

// LineNumbers maps each line of a masked body to the 1-based line number it
// started on in the original body. A token stands for a span that may have
// covered several lines, so later lines are shifted by the newlines it hid.
func (s Spans) LineNumbers(masked []string) []int {
	hidden := make(map[string]int, len(s))
	for _, sp := range s {
		hidden[sp.Token] = strings.Count(sp.Text, "\n")
	}

	nums := make([]int, len(masked))
	offset := 0
	for i, line := range masked {
		nums[i] = i + 1 + offset
		for _, tok := range s.Tokens(line) {
			offset += hidden[tok]
		}
	}
	return nums
}
