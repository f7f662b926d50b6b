package ingest

import (
	"github.com/thywilljoshua/exbank/internal/exercise"
	"github.com/thywilljoshua/exbank/internal/toc"
)

// Enrich returns copies of exs with chapter set from the nearest heading
// before each exercise's page and the chapter's heading titles appended to
// the tags. Exercises with no preceding heading, or whose heading belongs to
// no chapter, keep an empty chapter and their own tags.
func Enrich(exs []exercise.Exercise, idx toc.Index) []exercise.Exercise {
	out := make([]exercise.Exercise, len(exs))
	for i, e := range exs {
		e.Tags = cleanTags(e.Tags)
		e.Chapter = ""
		if h, ok := idx.Locate(e.Page); ok && h.Chapter != "" {
			e.Chapter = h.Chapter
			for _, title := range idx.Titles(h.Chapter) {
				if t := exercise.NormalizeTag(title); t != "" {
					e.Tags = append(e.Tags, t)
				}
			}
		}
		out[i] = e
	}
	return out
}
