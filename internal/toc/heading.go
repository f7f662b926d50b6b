// Package toc builds a page-ordered heading index from a markdown table of
// contents and answers "which section encloses page P" queries.
package toc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Heading is one table of contents entry. Level 0 is a chapter.
type Heading struct {
	Title   string `json:"title"`
	Page    int    `json:"page"`
	Level   int    `json:"level"`
	Chapter string `json:"chapter"`
}

// Index is a heading list sorted by page.
type Index []Heading

var (
	pageDestRe  = regexp.MustCompile(`^#?page=(\d+)$`)
	trailPageRe = regexp.MustCompile(`^(.*?)[\s.·…]+(\d+)\s*$`)
)

// Build parses a nested markdown list, one heading per item, where each item
// is either "[Title](#page=N)" or "Title ... N". Items nested deeper than
// maxLevel are ignored. Unparsable input yields an empty index.
func Build(markdown string, maxLevel int) Index {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out Index
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		item, ok := n.(*ast.ListItem)
		if !ok {
			return ast.WalkContinue, nil
		}
		level := listDepth(item) - 1
		if level > maxLevel {
			return ast.WalkSkipChildren, nil
		}
		if h, ok := headingFromItem(item, src); ok {
			h.Level = level
			out = append(out, h)
		}
		return ast.WalkContinue, nil
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	chapter := ""
	for i := range out {
		if out[i].Level == 0 {
			chapter = out[i].Title
		}
		out[i].Chapter = chapter
	}
	return out
}

func listDepth(n ast.Node) int {
	depth := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	return depth
}

// headingFromItem reads the item's own first block, not its nested lists.
func headingFromItem(item *ast.ListItem, src []byte) (Heading, bool) {
	block := item.FirstChild()
	if block == nil {
		return Heading{}, false
	}
	if _, nested := block.(*ast.List); nested {
		return Heading{}, false
	}
	for c := block.FirstChild(); c != nil; c = c.NextSibling() {
		link, ok := c.(*ast.Link)
		if !ok {
			continue
		}
		m := pageDestRe.FindSubmatch(link.Destination)
		if m == nil {
			continue
		}
		page, _ := strconv.Atoi(string(m[1]))
		title := cleanTitle(nodeText(link, src))
		if title == "" {
			return Heading{}, false
		}
		return Heading{Title: title, Page: page}, true
	}
	m := trailPageRe.FindStringSubmatch(nodeText(block, src))
	if m == nil {
		return Heading{}, false
	}
	page, _ := strconv.Atoi(m[2])
	title := cleanTitle(m[1])
	if title == "" {
		return Heading{}, false
	}
	return Heading{Title: title, Page: page}, true
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.CodeSpan:
			for cc := t.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if tt, ok := cc.(*ast.Text); ok {
					b.Write(tt.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func cleanTitle(s string) string {
	return strings.Join(strings.Fields(string(util.UnescapePunctuations([]byte(s)))), " ")
}

// Locate returns the heading with the greatest page strictly before page.
// Among headings sharing that page the last one wins.
func (idx Index) Locate(page int) (Heading, bool) {
	// first position whose page is >= page
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Page >= page })
	if i == 0 {
		return Heading{}, false
	}
	return idx[i-1], true
}

// Titles lists, in index order, every heading title belonging to chapter.
func (idx Index) Titles(chapter string) []string {
	var out []string
	for _, h := range idx {
		if h.Chapter == chapter {
			out = append(out, h.Title)
		}
	}
	return out
}
