// Package ingest turns a textbook PDF into stored exercises: it selects the
// candidate pages, has the model extract the exercises of every page not yet
// ingested, attaches chapter and section tags, and persists page by page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thywilljoshua/exbank/internal/ai"
	"github.com/thywilljoshua/exbank/internal/document"
	"github.com/thywilljoshua/exbank/internal/exercise"
	"github.com/thywilljoshua/exbank/internal/logger"
	"github.com/thywilljoshua/exbank/internal/toc"
)

const DefaultMarker = "(esx10)"

// Document is a source the coordinator can ingest.
type Document interface {
	PageScanner
	Reference() string
	RenderPage(ctx context.Context, page int) (ai.Image, error)
	TableOfContents(ctx context.Context) (string, error)
}

// Store is the persistence the coordinator writes to.
type Store interface {
	StoredPages(ctx context.Context, reference string) (map[int]bool, error)
	SavePage(ctx context.Context, reference string, page int, exs []exercise.Exercise) (int, error)
}

// PageEvent reports the outcome of one page.
type PageEvent struct {
	Reference string
	Page      int
	Done      int
	Total     int
	Stored    int
	Err       error
}

type Options struct {
	Marker          string
	MaxHeadingLevel int
	// Document configures documents opened by IngestFile.
	Document document.Options
	// Progress, when set, is called after every page.
	Progress func(PageEvent)
}

type Result struct {
	Reference string `json:"reference"`
	Selected  int    `json:"selected"`
	Skipped   int    `json:"skipped"`
	Processed int    `json:"processed"`
	Failed    []int  `json:"failed,omitempty"`
	Stored    int    `json:"stored"`
}

type Coordinator struct {
	store     Store
	extractor *Extractor
	opts      Options
	log       *logger.Logger
	now       func() time.Time
}

func NewCoordinator(store Store, model ai.Model, opts Options, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.MaxHeadingLevel < 0 {
		opts.MaxHeadingLevel = 0
	}
	return &Coordinator{
		store:     store,
		extractor: NewExtractor(model, log),
		opts:      opts,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IngestFile opens the PDF at path and ingests it.
func (c *Coordinator) IngestFile(ctx context.Context, path string) (Result, error) {
	doc, err := document.Open(path, c.opts.Document, c.log)
	if err != nil {
		return Result{Reference: document.ReferenceFromPath(path)}, err
	}
	return c.Ingest(ctx, doc)
}

// Ingest processes the pages of doc that are not stored yet, in ascending
// order. Each page is persisted before the next one is rendered. A page the
// model could not answer for is logged and left for the next run. Any other
// failure stops the run; the partial result is returned with the error.
func (c *Coordinator) Ingest(ctx context.Context, doc Document) (Result, error) {
	ref := doc.Reference()
	log := c.log.With("run", uuid.NewString(), "reference", ref)
	res := Result{Reference: ref}

	pages, err := SelectPages(ctx, doc, c.opts.Marker)
	if err != nil {
		return res, fmt.Errorf("select pages of %s: %w", ref, err)
	}
	res.Selected = len(pages)

	done, err := c.store.StoredPages(ctx, ref)
	if err != nil {
		return res, fmt.Errorf("stored pages of %s: %w", ref, err)
	}
	pending := make([]int, 0, len(pages))
	for _, p := range pages {
		if !done[p] {
			pending = append(pending, p)
		}
	}
	res.Skipped = len(pages) - len(pending)
	if len(pending) == 0 {
		log.Info("no new pages", "selected", res.Selected)
		return res, nil
	}
	log.Info("ingestion started", "selected", res.Selected, "pending", len(pending))

	idx := c.headingIndex(ctx, doc, log)
	for i, page := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stored, err := c.ingestPage(ctx, doc, idx, page)
		ev := PageEvent{Reference: ref, Page: page, Done: i + 1, Total: len(pending), Stored: stored, Err: err}
		switch {
		case err == nil:
			res.Processed++
			res.Stored += stored
			log.Info("page ingested", "page", page, "stored", stored)
		case errors.Is(err, ErrUnusablePage):
			res.Failed = append(res.Failed, page)
			log.Warn("page skipped", "page", page, "error", err)
		default:
			c.progress(ev)
			return res, err
		}
		c.progress(ev)
	}

	log.Info("ingestion finished",
		"processed", res.Processed, "failed", len(res.Failed), "stored", res.Stored)
	return res, nil
}

func (c *Coordinator) ingestPage(ctx context.Context, doc Document, idx toc.Index, page int) (int, error) {
	img, err := doc.RenderPage(ctx, page)
	if err != nil {
		return 0, fmt.Errorf("render page %d: %w", page, err)
	}
	exs, err := c.extractor.Extract(ctx, img, doc.Reference())
	if err != nil {
		return 0, fmt.Errorf("extract page %d: %w", page, err)
	}
	now := c.now()
	for i := range exs {
		exs[i].Reference = doc.Reference()
		exs[i].Page = page
		exs[i].CreatedOn = now
	}
	n, err := c.store.SavePage(ctx, doc.Reference(), page, Enrich(exs, idx))
	if err != nil {
		return 0, err
	}
	return n, nil
}

// headingIndex builds the run's heading index. Without a usable table of
// contents the index is empty and exercises get no chapter.
func (c *Coordinator) headingIndex(ctx context.Context, doc Document, log *logger.Logger) toc.Index {
	md, err := doc.TableOfContents(ctx)
	switch {
	case errors.Is(err, document.ErrNoToC):
		log.Info("no table of contents, chapters left empty")
		return nil
	case err != nil:
		log.Warn("table of contents unavailable, chapters left empty", "error", err)
		return nil
	}
	idx := toc.Build(md, c.opts.MaxHeadingLevel)
	if len(idx) == 0 {
		log.Warn("table of contents has no usable headings")
	}
	log.Debug("heading index built", "headings", len(idx))
	return idx
}

func (c *Coordinator) progress(ev PageEvent) {
	if c.opts.Progress != nil {
		c.opts.Progress(ev)
	}
}
