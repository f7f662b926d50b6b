package exercise

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies an exercise. Numbers are only unique within a page.
type Key struct {
	Reference string `json:"reference"`
	Page      int    `json:"page"`
	Number    int    `json:"number"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s p.%d #%d", k.Reference, k.Page, k.Number)
}

type Exercise struct {
	Key
	Chapter   string    `json:"chapter"`
	Text      string    `json:"text"`
	HasFigure bool      `json:"has_figure"`
	Tags      []string  `json:"tags"`
	CreatedOn time.Time `json:"created_on"`
}

// Summary is an exercise together with its attempt aggregate.
type Summary struct {
	Exercise
	AttemptCount int  `json:"attempt_count"`
	Solved       bool `json:"solved"`
}

type Attempt struct {
	Key
	Solution          string    `json:"solution"`
	IsSolutionCorrect bool      `json:"is_solution_correct"`
	SolutionFeedback  string    `json:"solution_feedback"`
	AttemptedOn       time.Time `json:"attempted_on"`
}

type Status string

const (
	StatusNotAttempted Status = "not_attempted"
	StatusAttempted    Status = "attempted"
	StatusCorrect      Status = "correct"
	StatusIncorrect    Status = "incorrect"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNotAttempted, StatusAttempted, StatusCorrect, StatusIncorrect:
		return st, nil
	case "not-attempted", "new":
		return StatusNotAttempted, nil
	default:
		return "", fmt.Errorf("unknown attempt status %q", s)
	}
}

// Filter selects exercises. Values inside one field are OR-combined, the
// fields themselves are AND-combined. Empty fields do not constrain.
type Filter struct {
	References []string
	Tags       []string
	Statuses   []Status
}

// NormalizeTag trims a tag and replaces commas, which separate tags in storage.
func NormalizeTag(t string) string {
	t = strings.ReplaceAll(t, ",", " ")
	return strings.Join(strings.Fields(t), " ")
}
