// Package grade checks photographed solution attempts against a stored
// exercise and records the verdict.
package grade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thywilljoshua/exbank/internal/ai"
	"github.com/thywilljoshua/exbank/internal/exercise"
	"github.com/thywilljoshua/exbank/internal/logger"
)

var ErrNoImages = errors.New("no solution images")

const gradeInstruction = `The images show a handwritten solution attempt to the following exercise.
<exercise>
%s
</exercise>

Analyse the attempt and answer with a JSON object with these fields:
  "solution_text": a markdown transcription of the attempt, with all mathematical notation in LaTeX delimited by $
  "is_solution_correct": true if the attempt is correct, false otherwise
  "feedback": comments on the approach and structure of the attempt. If it is wrong, explain only why. Never write out the complete or corrected solution.
Output only the JSON object.`

type Verdict struct {
	Solution string `json:"solution_text"`
	Correct  bool   `json:"is_solution_correct"`
	Feedback string `json:"feedback"`
}

type payload struct {
	SolutionText      string `json:"solution_text" validate:"required"`
	IsSolutionCorrect *bool  `json:"is_solution_correct" validate:"required"`
	Feedback          string `json:"feedback"`
}

type Grader struct {
	model    ai.Model
	validate *validator.Validate
	log      *logger.Logger
}

func NewGrader(model ai.Model, log *logger.Logger) *Grader {
	if log == nil {
		log = logger.Nop()
	}
	return &Grader{model: model, validate: validator.New(), log: log}
}

// Grade sends every image and the exercise statement in one request. An
// answer that does not decode to a complete verdict is an error, there is no
// partial grading.
func (g *Grader) Grade(ctx context.Context, images []ai.Image, exerciseText string) (Verdict, error) {
	if len(images) == 0 {
		return Verdict{}, ErrNoImages
	}
	raw, err := g.model.Generate(ctx, ai.Request{
		Instruction: fmt.Sprintf(gradeInstruction, strings.TrimSpace(exerciseText)),
		Images:      images,
		Format:      ai.FormatGrade,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("grade: %w", err)
	}
	var p payload
	if err := ai.Decode(raw, &p); err != nil {
		return Verdict{}, fmt.Errorf("grade: %w", err)
	}
	if err := g.validate.Struct(p); err != nil {
		return Verdict{}, fmt.Errorf("grade: %w", &ai.PayloadError{Raw: raw, Err: err})
	}
	return Verdict{
		Solution: strings.TrimSpace(p.SolutionText),
		Correct:  *p.IsSolutionCorrect,
		Feedback: strings.TrimSpace(p.Feedback),
	}, nil
}

// Store is what Service needs from persistence.
type Store interface {
	Exercise(ctx context.Context, key exercise.Key) (exercise.Exercise, error)
	AddAttempt(ctx context.Context, a exercise.Attempt) error
}

// Service grades an attempt for a stored exercise and appends it to the
// exercise's history.
type Service struct {
	store  Store
	grader *Grader
	log    *logger.Logger
	now    func() time.Time
}

func NewService(store Store, grader *Grader, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, grader: grader, log: log, now: time.Now}
}

func (s *Service) Submit(ctx context.Context, key exercise.Key, images []ai.Image) (exercise.Attempt, error) {
	ex, err := s.store.Exercise(ctx, key)
	if err != nil {
		return exercise.Attempt{}, err
	}
	v, err := s.grader.Grade(ctx, images, ex.Text)
	if err != nil {
		s.log.Warn("grading failed", "exercise", key.String(), "error", err)
		return exercise.Attempt{}, err
	}
	a := exercise.Attempt{
		Key:               key,
		Solution:          v.Solution,
		IsSolutionCorrect: v.Correct,
		SolutionFeedback:  v.Feedback,
		AttemptedOn:       s.now(),
	}
	if err := s.store.AddAttempt(ctx, a); err != nil {
		return exercise.Attempt{}, fmt.Errorf("record attempt: %w", err)
	}
	s.log.Info("attempt recorded", "exercise", key.String(), "correct", v.Correct)
	return a, nil
}
