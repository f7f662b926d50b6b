// Package document adapts a PDF file on disk to the operations ingestion
// needs: page count, marker search, page rendering and a table of contents.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"github.com/thywilljoshua/exbank/internal/logger"
)

type Options struct {
	// WorkDir holds rendered pages, one subdirectory per document.
	WorkDir string
	DPI     int
	// MaxImagePx bounds the longest edge of page images sent to the model.
	MaxImagePx int
	// ToCPages is how many leading pages are scanned for a printed table of
	// contents when the PDF has no outline.
	ToCPages int
	// ToCPageOffset is added to printed page numbers to get PDF page indexes.
	ToCPageOffset int
	Pdftoppm      string
}

type PDF struct {
	path      string
	reference string
	opts      Options
	log       *logger.Logger

	numPages int
	texts    []string
}

func Open(path string, opts Options, log *logger.Logger) (*PDF, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("open document: %s is a directory", path)
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	if opts.ToCPages <= 0 {
		opts.ToCPages = 16
	}
	if opts.Pdftoppm == "" {
		opts.Pdftoppm = "pdftoppm"
	}
	if log == nil {
		log = logger.Nop()
	}
	ref := ReferenceFromPath(path)
	return &PDF{
		path:      path,
		reference: ref,
		opts:      opts,
		log:       log.With("reference", ref),
	}, nil
}

// ReferenceFromPath derives a document reference from its file name by
// dropping the directory and the last extension.
func ReferenceFromPath(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func (d *PDF) Reference() string { return d.reference }

func (d *PDF) Path() string { return d.path }

// cacheDir is the per-document directory for rendered pages.
func (d *PDF) cacheDir() string {
	s := slug.Make(d.reference)
	if s == "" {
		s = "document"
	}
	return filepath.Join(d.opts.WorkDir, "exbank-pages", s)
}
