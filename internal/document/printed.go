package document

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Patterns for printed ToC lines: numeric, chapter-prefixed, roman numerals,
// alphabetic appendices, and explicit Appendix prefix.
var (
	tocNumRe      = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\.?\s+(.+?)\s+(\d+)\s*$`)
	tocChapterRe  = regexp.MustCompile(`^\s*(?:Chapter|CHAPTER)\s+(\d+|[IVXLCDM]+)\.?\s+(.+?)\s+(\d+)\s*$`)
	tocRomanRe    = regexp.MustCompile(`^\s*([IVXLCDM]+)(?:\.([0-9]+))?\s+(.+?)\s+(\d+)\s*$`)
	tocAlphaRe    = regexp.MustCompile(`^\s*([A-Z](?:\.[0-9]+)*)\s+(.+?)\s+(\d+)\s*$`)
	tocAppendixRe = regexp.MustCompile(`^\s*(?:Appendix|APPENDIX)\s+([A-Z](?:\.[0-9]+)*)\s+(.+?)\s+(\d+)\s*$`)
	tocHeaderRe   = regexp.MustCompile(`(?im)\btable of contents\b|^\s*contents\s*$`)
)

type tocEntry struct {
	Number string // display number token (e.g., 1.2, I, A.1)
	Title  string
	Page   int
	Depth  int // 1 for chapters
}

// printedEntries looks for a printed table of contents in the leading pages.
func (d *PDF) printedEntries(ctx context.Context) ([]tocEntry, error) {
	texts, err := d.pageTexts(ctx)
	if err != nil {
		return nil, err
	}
	lines := findToCLines(texts, d.opts.ToCPages)
	entries := parseToCLines(lines)
	if d.opts.ToCPageOffset != 0 {
		for i := range entries {
			entries[i].Page += d.opts.ToCPageOffset
		}
	}
	return entries, nil
}

// findToCLines collects ToC lines from the first page (within the first n)
// that has a contents header or ToC-looking lines, and from the pages that
// directly follow it as long as they keep contributing lines.
func findToCLines(pages []string, n int) []string {
	if n <= 0 || n > len(pages) {
		n = len(pages)
	}
	start := -1
	for i := 0; i < n; i++ {
		if tocHeaderRe.MatchString(pages[i]) && len(tocLinesOf(pages[i])) > 0 {
			start = i
			break
		}
	}
	if start == -1 {
		for i := 0; i < n; i++ {
			if len(tocLinesOf(pages[i])) >= 3 {
				start = i
				break
			}
		}
	}
	if start == -1 {
		return nil
	}
	var lines []string
	for i := start; i < n; i++ {
		got := tocLinesOf(pages[i])
		if len(got) == 0 {
			break
		}
		lines = append(lines, got...)
	}
	return lines
}

func tocLinesOf(page string) []string {
	var out []string
	for _, ln := range strings.Split(page, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" && isToCLine(ln) {
			out = append(out, ln)
		}
	}
	return out
}

func parseToCLines(lines []string) []tocEntry {
	var out []tocEntry
	for _, line := range lines {
		line = normalizeDotLeaders(line)
		if e, ok := matchToC(line); ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

func matchToC(line string) (tocEntry, bool) {
	if m := tocAppendixRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocEntry{Number: m[1], Title: "Appendix " + m[1] + " " + strings.TrimSpace(m[2]), Page: p, Depth: strings.Count(m[1], ".") + 1}, true
	}
	if m := tocChapterRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocEntry{Number: m[1], Title: strings.TrimSpace(m[2]), Page: p, Depth: 1}, true
	}
	if m := tocNumRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocEntry{Number: m[1], Title: m[1] + " " + strings.TrimSpace(m[2]), Page: p, Depth: strings.Count(m[1], ".") + 1}, true
	}
	if m := tocAlphaRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocEntry{Number: m[1], Title: m[1] + " " + strings.TrimSpace(m[2]), Page: p, Depth: strings.Count(m[1], ".") + 1}, true
	}
	if m := tocRomanRe.FindStringSubmatch(line); len(m) == 5 {
		p, _ := strconv.Atoi(m[4])
		// a roman numeral with a .<n> suffix is a section
		depth := 1
		num := m[1]
		if m[2] != "" {
			num = num + "." + m[2]
			depth = 2
		}
		return tocEntry{Number: num, Title: num + " " + strings.TrimSpace(m[3]), Page: p, Depth: depth}, true
	}
	return tocEntry{}, false
}

func isToCLine(s string) bool {
	_, ok := matchToC(normalizeDotLeaders(s))
	return ok
}

func normalizeDotLeaders(s string) string {
	s = strings.ReplaceAll(s, "•", " ")
	s = strings.ReplaceAll(s, "·", " ")
	s = strings.ReplaceAll(s, "…", " ")
	s = dotLeaderRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

var dotLeaderRe = regexp.MustCompile(`(?:\s*\.){3,}\s*`)
