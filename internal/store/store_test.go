package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/thywilljoshua/exbank/internal/exercise"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func ex(ref string, page, number int, tags ...string) exercise.Exercise {
	return exercise.Exercise{
		Key:       exercise.Key{Reference: ref, Page: page, Number: number},
		Chapter:   "Ch1",
		Text:      "Show that $1+1=2$.",
		Tags:      tags,
		CreatedOn: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func attempt(key exercise.Key, correct bool, day int) exercise.Attempt {
	return exercise.Attempt{
		Key:               key,
		Solution:          "proof",
		IsSolutionCorrect: correct,
		SolutionFeedback:  "ok",
		AttemptedOn:       time.Date(2024, 6, day, 15, 30, 0, 0, time.UTC),
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestSavePageIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.SavePage(ctx, "book", 5, []exercise.Exercise{ex("book", 5, 1, "counting"), ex("book", 5, 2)})
	if err != nil || n != 2 {
		t.Fatalf("first save = %d, %v", n, err)
	}
	n, err = s.SavePage(ctx, "book", 5, []exercise.Exercise{ex("book", 5, 1), ex("book", 5, 3)})
	if err != nil || n != 1 {
		t.Fatalf("second save = %d, %v; want 1 new row", n, err)
	}
	all, err := s.Exercises(ctx, exercise.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("stored %d exercises, want 3", len(all))
	}
	if !reflect.DeepEqual(all[0].Tags, []string{"counting"}) {
		t.Fatalf("tags of first exercise = %q", all[0].Tags)
	}
}

func TestSavePageRejectsForeignExercise(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.SavePage(context.Background(), "book", 5, []exercise.Exercise{ex("book", 6, 1)}); err == nil {
		t.Fatal("expected error for exercise from another page")
	}
}

func TestStoredPagesIncludesEmptyPages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.SavePage(ctx, "book", 3, []exercise.Exercise{ex("book", 3, 1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePage(ctx, "book", 4, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePage(ctx, "other", 9, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.StoredPages(ctx, "book")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[int]bool{3: true, 4: true}) {
		t.Fatalf("StoredPages = %v", got)
	}
}

func TestExerciseRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	in := ex("book", 7, 2, "a, b", "Sets")
	in.HasFigure = true
	if _, err := s.SavePage(ctx, "book", 7, []exercise.Exercise{in}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Exercise(ctx, in.Key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Key != in.Key || got.Text != in.Text || !got.HasFigure || got.Chapter != "Ch1" {
		t.Fatalf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"a b", "Sets"}) {
		t.Fatalf("tags = %q", got.Tags)
	}
	if !got.CreatedOn.Equal(in.CreatedOn) {
		t.Fatalf("created_on = %v, want %v", got.CreatedOn, in.CreatedOn)
	}

	_, err = s.Exercise(ctx, exercise.Key{Reference: "book", Page: 7, Number: 99})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddAttemptRequiresExercise(t *testing.T) {
	s := openTestStore(t)
	err := s.AddAttempt(context.Background(), attempt(exercise.Key{Reference: "ghost", Page: 1, Number: 1}, true, 1))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAttemptsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := ex("book", 1, 1)
	if _, err := s.SavePage(ctx, "book", 1, []exercise.Exercise{e}); err != nil {
		t.Fatal(err)
	}
	first := attempt(e.Key, false, 1)
	first.Solution = "d1"
	second := attempt(e.Key, true, 2)
	second.Solution = "d2-early"
	third := attempt(e.Key, false, 2)
	third.Solution = "d2-late"
	for _, a := range []exercise.Attempt{first, second, third} {
		if err := s.AddAttempt(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Attempts(ctx, e.Key)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, a := range got {
		order = append(order, a.Solution)
	}
	if !reflect.DeepEqual(order, []string{"d2-late", "d2-early", "d1"}) {
		t.Fatalf("order = %v", order)
	}
	if y, m, d := got[2].AttemptedOn.Date(); y != 2024 || m != time.June || d != 1 {
		t.Fatalf("attempted_on = %v", got[2].AttemptedOn)
	}
}

func TestExercisesFilterComposition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	// book: p1#1 tagged Counting (correct attempt), p1#2 tagged Axioms (wrong attempt),
	// p2#1 tagged counting rules (no attempt); notes: p1#1 tagged Counting (no attempt)
	if _, err := s.SavePage(ctx, "book", 1, []exercise.Exercise{ex("book", 1, 1, "Counting"), ex("book", 1, 2, "Axioms")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePage(ctx, "book", 2, []exercise.Exercise{ex("book", 2, 1, "counting rules")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePage(ctx, "notes", 1, []exercise.Exercise{ex("notes", 1, 1, "Counting")}); err != nil {
		t.Fatal(err)
	}
	mustAttempt := func(a exercise.Attempt) {
		t.Helper()
		if err := s.AddAttempt(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	mustAttempt(attempt(exercise.Key{Reference: "book", Page: 1, Number: 1}, false, 1))
	mustAttempt(attempt(exercise.Key{Reference: "book", Page: 1, Number: 1}, true, 2))
	mustAttempt(attempt(exercise.Key{Reference: "book", Page: 1, Number: 2}, false, 3))

	keys := func(f exercise.Filter) []string {
		t.Helper()
		got, err := s.Exercises(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		out := []string{}
		for _, e := range got {
			out = append(out, e.Key.String())
		}
		return out
	}

	cases := []struct {
		name string
		f    exercise.Filter
		want []string
	}{
		{"no filter", exercise.Filter{}, []string{"book p.1 #1", "book p.1 #2", "book p.2 #1", "notes p.1 #1"}},
		{"reference", exercise.Filter{References: []string{"notes"}}, []string{"notes p.1 #1"}},
		{"tag substring case insensitive", exercise.Filter{Tags: []string{"COUNT"}}, []string{"book p.1 #1", "book p.2 #1", "notes p.1 #1"}},
		{"tags or", exercise.Filter{Tags: []string{"axioms", "rules"}}, []string{"book p.1 #2", "book p.2 #1"}},
		{"tag and reference", exercise.Filter{Tags: []string{"counting"}, References: []string{"book"}}, []string{"book p.1 #1", "book p.2 #1"}},
		{"not attempted", exercise.Filter{Statuses: []exercise.Status{exercise.StatusNotAttempted}}, []string{"book p.2 #1", "notes p.1 #1"}},
		{"attempted", exercise.Filter{Statuses: []exercise.Status{exercise.StatusAttempted}}, []string{"book p.1 #1", "book p.1 #2"}},
		{"correct", exercise.Filter{Statuses: []exercise.Status{exercise.StatusCorrect}}, []string{"book p.1 #1"}},
		{"incorrect", exercise.Filter{Statuses: []exercise.Status{exercise.StatusIncorrect}}, []string{"book p.1 #2"}},
		{"statuses or", exercise.Filter{Statuses: []exercise.Status{exercise.StatusCorrect, exercise.StatusNotAttempted}}, []string{"book p.1 #1", "book p.2 #1", "notes p.1 #1"}},
		{"all groups", exercise.Filter{
			References: []string{"book"},
			Tags:       []string{"counting"},
			Statuses:   []exercise.Status{exercise.StatusNotAttempted},
		}, []string{"book p.2 #1"}},
		{"like wildcard is literal", exercise.Filter{Tags: []string{"%"}}, []string{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := keys(c.f); !reflect.DeepEqual(got, c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}

	summaries, err := s.Exercises(ctx, exercise.Filter{References: []string{"book"}})
	if err != nil {
		t.Fatal(err)
	}
	if summaries[0].AttemptCount != 2 || !summaries[0].Solved {
		t.Fatalf("aggregate of book p.1 #1 = %+v", summaries[0])
	}
	if summaries[1].AttemptCount != 1 || summaries[1].Solved {
		t.Fatalf("aggregate of book p.1 #2 = %+v", summaries[1])
	}

	if _, err := s.Exercises(ctx, exercise.Filter{Statuses: []exercise.Status{"bogus"}}); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTagsAndReferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.SavePage(ctx, "zeta", 1, []exercise.Exercise{ex("zeta", 1, 1, "b", "a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavePage(ctx, "alpha", 1, []exercise.Exercise{ex("alpha", 1, 1, "a", "c")}); err != nil {
		t.Fatal(err)
	}
	tags, err := s.Tags(ctx)
	if err != nil || !reflect.DeepEqual(tags, []string{"a", "b", "c"}) {
		t.Fatalf("Tags = %v, %v", tags, err)
	}
	refs, err := s.References(ctx)
	if err != nil || !reflect.DeepEqual(refs, []string{"alpha", "zeta"}) {
		t.Fatalf("References = %v, %v", refs, err)
	}
}

func TestResetDropsData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.SavePage(ctx, "book", 1, []exercise.Exercise{ex("book", 1, 1)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	pages, err := s.StoredPages(ctx, "book")
	if err != nil || len(pages) != 0 {
		t.Fatalf("after reset pages = %v, %v", pages, err)
	}
}
