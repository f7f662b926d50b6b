package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	"github.com/thywilljoshua/exbank/internal/logger"
)

type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int32
	log       *logger.Logger
}

type GeminiOptions struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
}

func NewGemini(ctx context.Context, opts GeminiOptions, log *logger.Logger) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: missing GEMINI_API_KEY", ErrUnavailable)
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 8192
	}
	if log == nil {
		log = logger.Nop()
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Gemini{
		client:    c,
		model:     opts.Model,
		maxTokens: int32(opts.MaxOutputTokens),
		log:       log.With("service", "Gemini", "model", opts.Model),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, im := range req.Images {
		mt := im.MIMEType
		if mt == "" {
			mt = "image/png"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mt, Data: im.Data}})
	}
	parts = append(parts, &genai.Part{Text: req.Instruction})
	content := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	var temperature float32
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: g.maxTokens,
	}
	if schema := responseSchema(req.Format); schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, content, cfg)
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(res.Text())
	g.log.Debug("gemini response", "images", len(req.Images), "bytes", len(text))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// classify separates per-request failures from failures that would repeat for
// every request.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%w: gemini status %d: %v", ErrUnavailable, code, err)
	default:
		return fmt.Errorf("gemini status %d: %w", code, err)
	}
}

func responseSchema(f Format) *genai.Schema {
	switch f {
	case FormatExerciseList:
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"number":     {Type: genai.TypeInteger},
					"text":       {Type: genai.TypeString},
					"has_figure": {Type: genai.TypeBoolean},
					"tags":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
				Required:         []string{"number", "text", "has_figure", "tags"},
				PropertyOrdering: []string{"number", "text", "has_figure", "tags"},
			},
		}
	case FormatGrade:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"solution_text":       {Type: genai.TypeString},
				"is_solution_correct": {Type: genai.TypeBoolean},
				"feedback":            {Type: genai.TypeString},
			},
			Required:         []string{"solution_text", "is_solution_correct", "feedback"},
			PropertyOrdering: []string{"solution_text", "is_solution_correct", "feedback"},
		}
	default:
		return nil
	}
}
