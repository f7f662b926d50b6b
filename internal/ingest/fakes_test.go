package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/thywilljoshua/exbank/internal/ai"
	"github.com/thywilljoshua/exbank/internal/exercise"
)

// fakeDoc renders page p as a one byte image holding p, so the fake model
// can tell pages apart.
type fakeDoc struct {
	ref       string
	pages     int
	markers   []int
	toc       string
	tocErr    error
	renderErr map[int]error
	rendered  []int
}

func (d *fakeDoc) Reference() string { return d.ref }

func (d *fakeDoc) PageCount(context.Context) (int, error) { return d.pages, nil }

func (d *fakeDoc) MarkerPages(context.Context, string) ([]int, error) { return d.markers, nil }

func (d *fakeDoc) RenderPage(_ context.Context, page int) (ai.Image, error) {
	if err := d.renderErr[page]; err != nil {
		return ai.Image{}, err
	}
	d.rendered = append(d.rendered, page)
	return ai.Image{MIMEType: "image/png", Data: []byte{byte(page)}}, nil
}

func (d *fakeDoc) TableOfContents(context.Context) (string, error) {
	if d.tocErr != nil {
		return "", d.tocErr
	}
	return d.toc, nil
}

type fakeModel struct {
	replies map[int]string
	errs    map[int]error
	calls   []int
	last    ai.Request
}

func (m *fakeModel) Generate(_ context.Context, req ai.Request) (string, error) {
	m.last = req
	if len(req.Images) != 1 || len(req.Images[0].Data) != 1 {
		return "", errors.New("fake model expects one page image")
	}
	page := int(req.Images[0].Data[0])
	m.calls = append(m.calls, page)
	if err := m.errs[page]; err != nil {
		return "", err
	}
	if r, ok := m.replies[page]; ok {
		return r, nil
	}
	return "[]", nil
}

type memStore struct {
	mu        sync.Mutex
	exercises map[exercise.Key]exercise.Exercise
	marked    map[string]map[int]bool
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{exercises: map[exercise.Key]exercise.Exercise{}, marked: map[string]map[int]bool{}}
}

func (s *memStore) StoredPages(_ context.Context, ref string) (map[int]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int]bool{}
	for k := range s.exercises {
		if k.Reference == ref {
			out[k.Page] = true
		}
	}
	for p := range s.marked[ref] {
		out[p] = true
	}
	return out, nil
}

func (s *memStore) SavePage(_ context.Context, ref string, page int, exs []exercise.Exercise) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	n := 0
	for _, e := range exs {
		if e.Reference != ref || e.Page != page {
			return 0, fmt.Errorf("exercise %s outside %s page %d", e.Key, ref, page)
		}
		if _, dup := s.exercises[e.Key]; dup {
			continue
		}
		s.exercises[e.Key] = e
		n++
	}
	if s.marked[ref] == nil {
		s.marked[ref] = map[int]bool{}
	}
	s.marked[ref][page] = true
	return n, nil
}

func (s *memStore) pages(ref string) []int {
	got, _ := s.StoredPages(context.Background(), ref)
	out := make([]int, 0, len(got))
	for p := range got {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
