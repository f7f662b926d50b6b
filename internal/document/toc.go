package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoToC = errors.New("document has no table of contents")

// TableOfContents renders the document's bookmarks, or failing that its
// printed table of contents, as a nested markdown list of
// "[Title](#page=N)" items.
func (d *PDF) TableOfContents(ctx context.Context) (string, error) {
	entries, err := d.outlineEntries(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		d.log.Warn("pdf outline unreadable", "error", err)
	}
	source := "outline"
	if len(entries) == 0 {
		source = "printed"
		entries, err = d.printedEntries(ctx)
		if err != nil {
			return "", fmt.Errorf("printed table of contents: %w", err)
		}
	}
	if len(entries) == 0 {
		return "", ErrNoToC
	}
	d.log.Debug("table of contents", "source", source, "entries", len(entries))
	return renderMarkdown(entries), nil
}

func renderMarkdown(entries []tocEntry) string {
	var b strings.Builder
	prev := 0
	for _, e := range entries {
		depth := e.Depth
		if depth < 1 {
			depth = 1
		}
		// open empty parents so an orphan keeps its nesting level. The blank
		// line stops a bare "-" from reading as a setext underline.
		for l := prev + 1; l < depth; l++ {
			if l == prev+1 && prev > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.Repeat("  ", l-1))
			b.WriteString("-\n")
		}
		b.WriteString(strings.Repeat("  ", depth-1))
		fmt.Fprintf(&b, "- [%s](#page=%d)\n", escapeLinkText(e.Title), e.Page)
		prev = depth
	}
	return b.String()
}

var linkTextEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `*`, `\*`, `_`, `\_`,
)

func escapeLinkText(s string) string { return linkTextEscaper.Replace(s) }

func cleanTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
