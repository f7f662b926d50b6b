package ai

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks failures that will affect every request alike
	// (unreachable service, rejected credentials, unknown model).
	ErrUnavailable = errors.New("ai service unavailable")
	// ErrEmptyResponse is returned when the service answered without any text.
	ErrEmptyResponse = errors.New("ai service returned no content")
)

// Format names the JSON shape a request expects back.
type Format int

const (
	FormatText Format = iota
	FormatExerciseList
	FormatGrade
)

type Image struct {
	MIMEType string
	Data     []byte
}

type Request struct {
	Instruction string
	Images      []Image
	Format      Format
}

// Model is a vision-capable text generator.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}
