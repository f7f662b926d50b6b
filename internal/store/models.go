package store

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/thywilljoshua/exbank/internal/exercise"
)

// exerciseRow is the stored form of an exercise. Tags are comma joined.
type exerciseRow struct {
	ID        uint   `gorm:"primaryKey"`
	Reference string `gorm:"not null;uniqueIndex:idx_exercise_key,priority:1"`
	Chapter   string
	Page      int    `gorm:"not null;uniqueIndex:idx_exercise_key,priority:2"`
	Number    int    `gorm:"not null;uniqueIndex:idx_exercise_key,priority:3"`
	Text      string `gorm:"type:text"`
	HasFigure bool   `gorm:"not null;default:false"`
	Tags      string `gorm:"type:text"`
	CreatedOn time.Time
}

func (exerciseRow) TableName() string { return "exercises" }

type attemptRow struct {
	ID                uint           `gorm:"primaryKey"`
	Reference         string         `gorm:"not null;index:idx_attempt_key,priority:1"`
	Page              int            `gorm:"not null;index:idx_attempt_key,priority:2"`
	Number            int            `gorm:"not null;index:idx_attempt_key,priority:3"`
	Solution          string         `gorm:"type:text"`
	IsSolutionCorrect bool           `gorm:"not null;default:false"`
	SolutionFeedback  string         `gorm:"type:text"`
	AttemptedOn       datatypes.Date `gorm:"not null"`
}

func (attemptRow) TableName() string { return "attempts" }

// ingestedPageRow marks a page whose extraction finished with a usable
// answer, including pages that hold no exercises.
type ingestedPageRow struct {
	Reference  string `gorm:"primaryKey"`
	Page       int    `gorm:"primaryKey;autoIncrement:false"`
	Exercises  int
	IngestedOn time.Time
}

func (ingestedPageRow) TableName() string { return "ingested_pages" }

// summaryRow is one line of the filtered exercise listing.
type summaryRow struct {
	ID           uint
	Reference    string
	Chapter      string
	Page         int
	Number       int
	Text         string
	HasFigure    bool
	Tags         string
	CreatedOn    time.Time
	AttemptCount int
	CorrectCount int
}

func toExerciseRow(e exercise.Exercise, now time.Time) exerciseRow {
	created := e.CreatedOn
	if created.IsZero() {
		created = now
	}
	return exerciseRow{
		Reference: e.Reference,
		Chapter:   e.Chapter,
		Page:      e.Page,
		Number:    e.Number,
		Text:      e.Text,
		HasFigure: e.HasFigure,
		Tags:      joinTags(e.Tags),
		CreatedOn: created.UTC(),
	}
}

func (r exerciseRow) toExercise() exercise.Exercise {
	return exercise.Exercise{
		Key:       exercise.Key{Reference: r.Reference, Page: r.Page, Number: r.Number},
		Chapter:   r.Chapter,
		Text:      r.Text,
		HasFigure: r.HasFigure,
		Tags:      splitTags(r.Tags),
		CreatedOn: r.CreatedOn,
	}
}

func (r summaryRow) toSummary() exercise.Summary {
	e := exerciseRow{
		Reference: r.Reference, Chapter: r.Chapter, Page: r.Page, Number: r.Number,
		Text: r.Text, HasFigure: r.HasFigure, Tags: r.Tags, CreatedOn: r.CreatedOn,
	}
	return exercise.Summary{
		Exercise:     e.toExercise(),
		AttemptCount: r.AttemptCount,
		Solved:       r.CorrectCount > 0,
	}
}

func toAttemptRow(a exercise.Attempt) attemptRow {
	y, m, d := a.AttemptedOn.Date()
	return attemptRow{
		Reference:         a.Reference,
		Page:              a.Page,
		Number:            a.Number,
		Solution:          a.Solution,
		IsSolutionCorrect: a.IsSolutionCorrect,
		SolutionFeedback:  a.SolutionFeedback,
		AttemptedOn:       datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)),
	}
}

func (r attemptRow) toAttempt() exercise.Attempt {
	return exercise.Attempt{
		Key:               exercise.Key{Reference: r.Reference, Page: r.Page, Number: r.Number},
		Solution:          r.Solution,
		IsSolutionCorrect: r.IsSolutionCorrect,
		SolutionFeedback:  r.SolutionFeedback,
		AttemptedOn:       time.Time(r.AttemptedOn),
	}
}

func joinTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = exercise.NormalizeTag(t); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ",")
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
