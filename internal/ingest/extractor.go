package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/thywilljoshua/exbank/internal/ai"
	"github.com/thywilljoshua/exbank/internal/exercise"
	"github.com/thywilljoshua/exbank/internal/logger"
)

// ErrUnusablePage marks a page whose extraction produced no usable answer.
// Such a page is not recorded, so the next run tries it again.
var ErrUnusablePage = errors.New("unusable page")

const extractInstruction = `This image is one page of a math textbook that contains exercises.
Extract every exercise shown on the page. Group the parts of an exercise together and preserve each exercise's layout.
Return a JSON array with one object per exercise, each with exactly these fields:
  "number": the exercise number printed on the page
  "text": the exercise statement as markdown; write all mathematical notation in LaTeX delimited by $
  "has_figure": true when the exercise comes with a figure on this page, false otherwise
  "tags": the specific sub-topics and concepts practised by solving the exercise
Return an empty array when the page holds no exercises. Output only the JSON array.`

// exerciseNumber accepts 3, 3.0, "3" and "3." from the model.
type exerciseNumber int

func (n *exerciseNumber) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		return errors.New("exercise number is null")
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "#"), ".")
	if v, err := strconv.Atoi(s); err == nil {
		*n = exerciseNumber(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return fmt.Errorf("exercise number %s is not an integer", b)
	}
	*n = exerciseNumber(f)
	return nil
}

type rawExercise struct {
	Number    exerciseNumber `json:"number" validate:"gte=0"`
	Text      string         `json:"text" validate:"required"`
	HasFigure *bool          `json:"has_figure" validate:"required"`
	Tags      []string       `json:"tags"`
}

// Extractor turns one rendered page into exercise records.
type Extractor struct {
	model    ai.Model
	validate *validator.Validate
	log      *logger.Logger
}

func NewExtractor(model ai.Model, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{model: model, validate: validator.New(), log: log}
}

// Extract asks the model for the exercises on page. The returned records
// carry reference and the model's fields, page and enrichment are left to
// the caller. Failures local to this page wrap ErrUnusablePage, anything
// else (unavailable service, cancellation) is returned as is.
func (x *Extractor) Extract(ctx context.Context, page ai.Image, reference string) ([]exercise.Exercise, error) {
	raw, err := x.model.Generate(ctx, ai.Request{
		Instruction: extractInstruction,
		Images:      []ai.Image{page},
		Format:      ai.FormatExerciseList,
	})
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnusablePage, err)
	}

	var records []rawExercise
	if err := ai.Decode(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnusablePage, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnusablePage, &ai.PayloadError{Raw: raw, Err: errors.New("null instead of an array")})
	}

	out := make([]exercise.Exercise, 0, len(records))
	for i, r := range records {
		if err := x.validate.Struct(r); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrUnusablePage, i, &ai.PayloadError{Raw: raw, Err: err})
		}
		out = append(out, exercise.Exercise{
			Key:       exercise.Key{Reference: reference, Number: int(r.Number)},
			Text:      strings.TrimSpace(r.Text),
			HasFigure: *r.HasFigure,
			Tags:      cleanTags(r.Tags),
		})
	}
	x.log.Debug("page extracted", "reference", reference, "exercises", len(out))
	return out, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = exercise.NormalizeTag(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
