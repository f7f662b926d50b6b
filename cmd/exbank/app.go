package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thywilljoshua/exbank/internal/ai"
	"github.com/thywilljoshua/exbank/internal/config"
	"github.com/thywilljoshua/exbank/internal/exercise"
	"github.com/thywilljoshua/exbank/internal/logger"
	"github.com/thywilljoshua/exbank/internal/store"
)

type app struct {
	configPath string
	envFile    string

	cfg *config.Config
	log *logger.Logger
}

// openStore opens the configured database and makes sure the schema exists.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, store.Config{
		Driver: a.cfg.Database.Driver,
		DSN:    a.cfg.Database.DSN,
		LogSQL: strings.EqualFold(a.cfg.Log.Level, "debug"),
	}, a.log)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (a *app) newModel(ctx context.Context) (ai.Model, error) {
	switch strings.ToLower(a.cfg.AI.Provider) {
	case "", "gemini":
		g, err := ai.NewGemini(ctx, ai.GeminiOptions{
			APIKey:          a.cfg.AI.APIKey,
			Model:           a.cfg.AI.Model,
			MaxOutputTokens: a.cfg.AI.MaxOutputTokens,
		}, a.log)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", a.cfg.AI.Provider)
	}
}

func parseKey(ref, page, number string) (exercise.Key, error) {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		return exercise.Key{}, fmt.Errorf("page must be a positive integer, got %q", page)
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return exercise.Key{}, fmt.Errorf("number must be an integer, got %q", number)
	}
	return exercise.Key{Reference: ref, Page: p, Number: n}, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
