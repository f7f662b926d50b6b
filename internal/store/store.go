// Package store persists exercises, grading attempts and the record of which
// pages have been ingested.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thywilljoshua/exbank/internal/exercise"
	"github.com/thywilljoshua/exbank/internal/logger"
)

var ErrNotFound = errors.New("exercise not found")

type Config struct {
	Driver string // sqlite or postgres
	DSN    string
	// LogSQL echoes every statement through gorm's logger.
	LogSQL bool
}

type Store struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	var dial gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		driver = "sqlite"
		dial = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		driver = "postgres"
		dial = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := gormlogger.Silent
	if cfg.LogSQL {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	log.Debug("database opened", "driver", driver)
	return &Store{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the tables and indexes if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&exerciseRow{}, &attemptRow{}, &ingestedPageRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Reset drops every table, attempts included, and recreates the schema.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Migrator().DropTable(&attemptRow{}, &exerciseRow{}, &ingestedPageRow{}); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	s.log.Warn("database reset")
	return s.Migrate(ctx)
}

// SavePage stores the exercises found on one page and marks the page as
// ingested, atomically. Exercises whose key already exists are skipped. It
// returns how many rows were inserted.
func (s *Store) SavePage(ctx context.Context, reference string, page int, exs []exercise.Exercise) (int, error) {
	now := s.now()
	rows := make([]exerciseRow, 0, len(exs))
	for _, e := range exs {
		if e.Reference != reference || e.Page != page {
			return 0, fmt.Errorf("exercise %s does not belong to %s page %d", e.Key, reference, page)
		}
		rows = append(rows, toExerciseRow(e, now))
	}

	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
			if res.Error != nil {
				return fmt.Errorf("insert exercises: %w", res.Error)
			}
			inserted = int(res.RowsAffected)
		}
		mark := ingestedPageRow{Reference: reference, Page: page, Exercises: len(rows), IngestedOn: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mark).Error; err != nil {
			return fmt.Errorf("mark page: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save %s page %d: %w", reference, page, err)
	}
	if skipped := len(rows) - inserted; skipped > 0 {
		s.log.Debug("duplicate exercises ignored", "reference", reference, "page", page, "count", skipped)
	}
	return inserted, nil
}

// StoredPages returns the pages of reference that already hold exercises or
// were marked as ingested.
func (s *Store) StoredPages(ctx context.Context, reference string) (map[int]bool, error) {
	db := s.db.WithContext(ctx)
	var withExercises, marked []int
	if err := db.Model(&exerciseRow{}).Where("reference = ?", reference).Distinct().Pluck("page", &withExercises).Error; err != nil {
		return nil, fmt.Errorf("stored pages: %w", err)
	}
	if err := db.Model(&ingestedPageRow{}).Where("reference = ?", reference).Pluck("page", &marked).Error; err != nil {
		return nil, fmt.Errorf("ingested pages: %w", err)
	}
	out := make(map[int]bool, len(withExercises)+len(marked))
	for _, p := range withExercises {
		out[p] = true
	}
	for _, p := range marked {
		out[p] = true
	}
	return out, nil
}

func (s *Store) Exercise(ctx context.Context, key exercise.Key) (exercise.Exercise, error) {
	var row exerciseRow
	err := s.db.WithContext(ctx).
		Where("reference = ? AND page = ? AND number = ?", key.Reference, key.Page, key.Number).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return exercise.Exercise{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return exercise.Exercise{}, fmt.Errorf("load %s: %w", key, err)
	}
	return row.toExercise(), nil
}

// AddAttempt appends one attempt. The exercise it refers to must exist.
func (s *Store) AddAttempt(ctx context.Context, a exercise.Attempt) error {
	row := toAttemptRow(a)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&exerciseRow{}).
			Where("reference = ? AND page = ? AND number = ?", a.Reference, a.Page, a.Number).
			Count(&n).Error; err != nil {
			return fmt.Errorf("check exercise: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("attempt for %s: %w", a.Key, ErrNotFound)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
}

const (
	attemptCountExpr = "COUNT(a.id)"
	correctCountExpr = "COALESCE(SUM(CASE WHEN a.is_solution_correct THEN 1 ELSE 0 END), 0)"
)

var statusHaving = map[exercise.Status]string{
	exercise.StatusNotAttempted: attemptCountExpr + " = 0",
	exercise.StatusAttempted:    attemptCountExpr + " > 0",
	exercise.StatusCorrect:      correctCountExpr + " > 0",
	exercise.StatusIncorrect:    "(" + attemptCountExpr + " > 0 AND " + correctCountExpr + " = 0)",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Exercises lists exercises matching f with their attempt aggregates,
// ordered by reference, page and number.
func (s *Store) Exercises(ctx context.Context, f exercise.Filter) ([]exercise.Summary, error) {
	q := s.db.WithContext(ctx).
		Table("exercises AS e").
		Select("e.id, e.reference, e.chapter, e.page, e.number, e.text, e.has_figure, e.tags, e.created_on, " +
			attemptCountExpr + " AS attempt_count, " + correctCountExpr + " AS correct_count").
		Joins("LEFT JOIN attempts a ON a.reference = e.reference AND a.page = e.page AND a.number = e.number")

	if len(f.References) > 0 {
		q = q.Where("e.reference IN ?", f.References)
	}
	if len(f.Tags) > 0 {
		conds := make([]string, 0, len(f.Tags))
		args := make([]any, 0, len(f.Tags))
		for _, t := range f.Tags {
			conds = append(conds, `LOWER(e.tags) LIKE ? ESCAPE '\'`)
			args = append(args, "%"+likeEscaper.Replace(strings.ToLower(t))+"%")
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	q = q.Group("e.id")
	if len(f.Statuses) > 0 {
		having := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			h, ok := statusHaving[st]
			if !ok {
				return nil, fmt.Errorf("unknown attempt status %q", st)
			}
			having = append(having, h)
		}
		q = q.Having("(" + strings.Join(having, " OR ") + ")")
	}

	var rows []summaryRow
	if err := q.Order("e.reference, e.page, e.number").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	out := make([]exercise.Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSummary())
	}
	return out, nil
}

// Attempts returns the attempt history of one exercise, newest first.
func (s *Store) Attempts(ctx context.Context, key exercise.Key) ([]exercise.Attempt, error) {
	var rows []attemptRow
	err := s.db.WithContext(ctx).
		Where("reference = ? AND page = ? AND number = ?", key.Reference, key.Page, key.Number).
		Order("attempted_on DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("attempts of %s: %w", key, err)
	}
	out := make([]exercise.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toAttempt())
	}
	return out, nil
}

// Tags returns every distinct tag in use, sorted.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	var joined []string
	if err := s.db.WithContext(ctx).Model(&exerciseRow{}).Distinct().Pluck("tags", &joined).Error; err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	seen := map[string]bool{}
	var out []string
	for _, j := range joined {
		for _, t := range splitTags(j) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) References(ctx context.Context) ([]string, error) {
	var refs []string
	if err := s.db.WithContext(ctx).Model(&exerciseRow{}).Distinct().Order("reference").Pluck("reference", &refs).Error; err != nil {
		return nil, fmt.Errorf("references: %w", err)
	}
	return refs, nil
}
