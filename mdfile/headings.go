package mdfile

import (
	"regexp"
	"strings"
)

// Heading repair for one corpus whose translated headings came back with the
// hash marks replaced by musical notes. The substitution table is reproduced
// exactly and only runs when explicitly enabled.

// headingPrefix matches 1 to 5 leading hashes and the text after them.
var headingPrefix = regexp.MustCompile(`^(#{1,5})\s*(.*)$`)

// noteRun matches two or more ♪ markers.
var noteRun = regexp.MustCompile(`(♪\s*){2,}`)

// RepairHeadings applies the two substitutions in order:
//
//  1. "## Title" becomes "##Title" (spaces between hashes and text removed).
//  2. The first run of N ♪ markers (counted as whitespace-separated groups)
//     becomes N+1 hashes followed by a space, everywhere it occurs in the line.
func RepairHeadings(line string) string {
	if m := headingPrefix.FindStringSubmatch(line); m != nil {
		line = m[1] + strings.TrimSpace(m[2])
	}
	if run := noteRun.FindString(line); run != "" {
		n := len(strings.Fields(run))
		line = strings.ReplaceAll(line, run, strings.Repeat("#", n+1)+" ")
	}
	return line
}
