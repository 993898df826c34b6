package mdfile

import (
	"sort"
	"strings"
	"unicode"
)

// ImageMarker starts an image reference line, which is never translated.
const ImageMarker = "![]("

// DefaultProtectedLines are the 1-based body lines of a post preamble that carry
// machine-relevant values (dates, hero image paths) rather than prose.
var DefaultProtectedLines = []int{1, 3, 5, 6, 7}

// Classifier decides line by line whether body text is sent for translation.
type Classifier struct {
	protected map[int]struct{}
}

// NewClassifier returns a classifier protecting the given line numbers.
// A nil slice selects DefaultProtectedLines; an empty one protects none.
func NewClassifier(lines []int) Classifier {
	if lines == nil {
		lines = DefaultProtectedLines
	}
	c := Classifier{protected: make(map[int]struct{}, len(lines))}
	for _, n := range lines {
		c.protected[n] = struct{}{}
	}
	return c
}

// ProtectedLines returns the protected line numbers in ascending order.
func (c Classifier) ProtectedLines() []int {
	nums := make([]int, 0, len(c.protected))
	for n := range c.protected {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// IsProtected reports whether the line must pass through untranslated: it is
// one of the protected preamble lines, an image reference, blank, or nothing
// but placeholder tokens.
func (c Classifier) IsProtected(lineNumber int, line string) bool {
	if _, ok := c.protected[lineNumber]; ok {
		return true
	}
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	if strings.HasPrefix(trimmed, ImageMarker) {
		return true
	}
	if strings.TrimSpace(trimmed) == "" {
		return true
	}
	return placeholderLine.MatchString(line)
}

// SplitPadding splits a line into its leading whitespace, its content, and its
// trailing whitespace (including a stray \r), so translation can be applied
// to the content alone.
func SplitPadding(line string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(line, unicode.IsSpace)
	lead = line[:len(line)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
