package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type outlineItem struct {
	title string
	page  int
	kids  []outlineItem
}

var pdfStringEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// writePDF writes a minimal uncompressed PDF with one Helvetica text block
// per page and an optional bookmark tree.
func writePDF(t *testing.T, name string, pages []string, outline []outlineItem) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buildPDF(pages, outline), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func buildPDF(pages []string, outline []outlineItem) []byte {
	objs := map[int]string{}
	pageID := func(i int) int { return 4 + 2*i }

	kids := make([]string, len(pages))
	for i, text := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageID(i))
		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td\n")
		for _, ln := range strings.Split(text, "\n") {
			fmt.Fprintf(&content, "(%s) Tj T*\n", pdfStringEscaper.Replace(ln))
		}
		content.WriteString("ET")
		objs[pageID(i)] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageID(i)+1)
		objs[pageID(i)+1] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String())
	}

	next := pageID(len(pages))
	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if len(outline) > 0 {
		rootID := next
		next++
		first, last := addOutline(objs, outline, rootID, &next, pageID)
		objs[rootID] = fmt.Sprintf("<< /Type /Outlines /First %d 0 R /Last %d 0 R /Count %d >>", first, last, len(outline))
		catalog += fmt.Sprintf(" /Outlines %d 0 R", rootID)
	}
	objs[1] = catalog + " >>"
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	objs[3] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, next)
	for id := 1; id < next; id++ {
		offsets[id] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", id, objs[id])
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", next)
	b.WriteString("0000000000 65535 f \n")
	for id := 1; id < next; id++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", next, xref)
	return b.Bytes()
}

func addOutline(objs map[int]string, items []outlineItem, parent int, next *int, pageID func(int) int) (int, int) {
	ids := make([]int, len(items))
	for i := range items {
		ids[i] = *next
		*next++
	}
	for i, it := range items {
		var links strings.Builder
		if i > 0 {
			fmt.Fprintf(&links, " /Prev %d 0 R", ids[i-1])
		}
		if i+1 < len(items) {
			fmt.Fprintf(&links, " /Next %d 0 R", ids[i+1])
		}
		if len(it.kids) > 0 {
			f, l := addOutline(objs, it.kids, ids[i], next, pageID)
			fmt.Fprintf(&links, " /First %d 0 R /Last %d 0 R /Count %d", f, l, len(it.kids))
		}
		objs[ids[i]] = fmt.Sprintf("<< /Title (%s) /Parent %d 0 R /Dest [%d 0 R /Fit]%s >>",
			pdfStringEscaper.Replace(it.title), parent, pageID(it.page-1), links.String())
	}
	return ids[0], ids[len(ids)-1]
}
