package document

import (
	"context"
	"fmt"
	"os"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	rpdf "rsc.io/pdf"
)

// openReader opens the file with rsc.io/pdf. The caller closes the file.
func openReader(path string) (*os.File, *rpdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	r, err := rpdf.NewReader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	return f, r, nil
}

func (d *PDF) PageCount(ctx context.Context) (int, error) {
	if d.numPages > 0 {
		return d.numPages, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, r, err := openReader(d.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := r.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("pdf %s has no pages", d.path)
	}
	d.numPages = n
	return n, nil
}

// pageTexts returns the plain text of every page, 1-indexed by position+1.
// Pages whose text cannot be extracted come back empty.
func (d *PDF) pageTexts(ctx context.Context) ([]string, error) {
	if d.texts != nil {
		return d.texts, nil
	}
	f, r, err := lpdf.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("read pdf text %s: %w", d.path, err)
	}
	defer f.Close()

	n := r.NumPage()
	texts := make([]string, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := plainText(r, i)
		if err != nil {
			d.log.Debug("page text unavailable", "page", i, "error", err)
			continue
		}
		texts[i-1] = t
	}
	d.texts = texts
	if d.numPages == 0 {
		d.numPages = n
	}
	return texts, nil
}

func plainText(r *lpdf.Reader, page int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extract text: %v", rec)
		}
	}()
	p := r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// MarkerPages returns, ascending, the pages whose text contains marker.
func (d *PDF) MarkerPages(ctx context.Context, marker string) ([]int, error) {
	if marker == "" {
		return nil, nil
	}
	texts, err := d.pageTexts(ctx)
	if err != nil {
		return nil, err
	}
	var pages []int
	for i, t := range texts {
		if strings.Contains(t, marker) {
			pages = append(pages, i+1)
		}
	}
	return pages, nil
}
