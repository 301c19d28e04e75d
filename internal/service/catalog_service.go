package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Test assumed by seed documents that are a bare list of questions.
const (
	legacyTestID   = "aq"
	legacyTestName = "AQ"
)

// QuestionCache caches each test's ordered question list. Every Replace starts
// a new generation; StoreQuestions drops lists loaded under an older one.
type QuestionCache interface {
	Questions(ctx context.Context, testID string) ([]model.Question, bool)
	Generation(ctx context.Context) (int64, error)
	StoreQuestions(ctx context.Context, gen int64, testID string, questions []model.Question)
	Replace(ctx context.Context, byTest map[string][]model.Question) error
}

// CatalogService serves tests and questions and re-seeds the catalog.
type CatalogService struct {
	repo  repository.CatalogRepository
	cache QuestionCache
	log   zerolog.Logger
}

// NewCatalogService creates a new CatalogService. cache may be nil.
func NewCatalogService(repo repository.CatalogRepository, cache QuestionCache, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *CatalogService) ListTests(ctx context.Context) ([]model.Test, error) {
	tests, err := s.repo.ListTests(ctx)
	if err != nil {
		return nil, upstream("list tests", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, nil
}

func (s *CatalogService) GetTest(ctx context.Context, id string) (*model.Test, error) {
	t, err := s.repo.GetTest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("test", id)
		}
		return nil, upstream("get test", err)
	}
	return t, nil
}

// ListQuestions returns the questions of a test in canonical order, the same
// order the scoring engine emits rows in.
func (s *CatalogService) ListQuestions(ctx context.Context, testID string) ([]model.Question, error) {
	// The generation is read before the store so a list loaded while a
	// re-seed commits cannot overwrite the re-seeded entry.
	var (
		gen     int64
		stamped bool
	)
	if s.cache != nil {
		if questions, ok := s.cache.Questions(ctx, testID); ok {
			return questions, nil
		}
		var err error
		if gen, err = s.cache.Generation(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Catalog cache generation unavailable")
		} else {
			stamped = true
		}
	}

	if _, err := s.GetTest(ctx, testID); err != nil {
		return nil, err
	}

	questions, err := s.repo.ListQuestions(ctx, testID)
	if err != nil {
		return nil, upstream("list questions", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}

	if stamped {
		s.cache.StoreQuestions(ctx, gen, testID, questions)
	}
	return questions, nil
}

// SeedFromFile re-seeds the catalog from the document at path.
func (s *CatalogService) SeedFromFile(ctx context.Context, path string) (*model.SeedResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	doc, err := ParseCatalog(raw)
	if err != nil {
		return nil, err
	}
	return s.Seed(ctx, doc)
}

// Seed replaces the whole catalog with doc. The replacement is atomic: a
// failure leaves the previous catalog untouched.
func (s *CatalogService) Seed(ctx context.Context, doc *model.CatalogDocument) (*model.SeedResult, error) {
	if err := ValidateCatalog(doc); err != nil {
		return nil, err
	}

	res, err := s.repo.Replace(ctx, doc.Tests)
	if err != nil {
		return nil, upstream("replace catalog", err)
	}

	if s.cache != nil {
		byTest := make(map[string][]model.Question, len(doc.Tests))
		for _, t := range doc.Tests {
			questions := make([]model.Question, len(t.Questions))
			for i, q := range t.Questions {
				q.TestID = t.ID
				q.OrderNum = i
				questions[i] = q
			}
			byTest[t.ID] = questions
		}
		if err := s.cache.Replace(ctx, byTest); err != nil {
			s.log.Warn().Err(err).Msg("Catalog cache refresh failed")
		}
	}

	s.log.Info().
		Int("tests", res.Tests).
		Int("questions", res.Questions).
		Int("pruned_assignments", res.PrunedAssignments).
		Int("pruned_answers", res.PrunedAnswers).
		Msg("Catalog seeded")
	return res, nil
}

// ParseCatalog decodes a seed document. Besides {"tests": [...]} it accepts a
// bare array of questions, which becomes the single test "aq".
func ParseCatalog(raw []byte) (*model.CatalogDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var questions []model.Question
		if err := json.Unmarshal(trimmed, &questions); err != nil {
			return nil, fmt.Errorf("%w: seed document: %v", ErrValidation, err)
		}
		return &model.CatalogDocument{Tests: []model.CatalogTest{{
			ID:        legacyTestID,
			Name:      legacyTestName,
			Questions: questions,
		}}}, nil
	}

	var doc model.CatalogDocument
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: seed document: %v", ErrValidation, err)
	}
	return &doc, nil
}

// ValidateCatalog checks ids and options of a seed document. Ids follow the
// same rule the API applies to test ids, so every seeded test can be assigned.
func ValidateCatalog(doc *model.CatalogDocument) error {
	if doc == nil || len(doc.Tests) == 0 {
		return fmt.Errorf("%w: seed document has no tests", ErrValidation)
	}

	var problems []string
	testIDs := make(map[string]bool, len(doc.Tests))
	questionIDs := make(map[string]string)

	for ti, t := range doc.Tests {
		switch {
		case strings.TrimSpace(t.ID) == "":
			problems = append(problems, fmt.Sprintf("tests[%d]: empty id", ti))
		case !model.ValidCatalogID(t.ID):
			problems = append(problems, fmt.Sprintf("tests[%d]: invalid id %q", ti, t.ID))
		case testIDs[t.ID]:
			problems = append(problems, fmt.Sprintf("tests[%d]: duplicate test id %q", ti, t.ID))
		}
		testIDs[t.ID] = true

		switch {
		case strings.TrimSpace(t.Name) == "":
			problems = append(problems, fmt.Sprintf("test %q: empty name", t.ID))
		case utf8.RuneCountInString(t.Name) > model.MaxTestNameLength:
			problems = append(problems, fmt.Sprintf("test %q: name longer than %d characters", t.ID, model.MaxTestNameLength))
		}

		for qi, q := range t.Questions {
			if strings.TrimSpace(q.ID) == "" {
				problems = append(problems, fmt.Sprintf("test %q: questions[%d]: empty id", t.ID, qi))
				continue
			}
			if !model.ValidCatalogID(q.ID) {
				problems = append(problems, fmt.Sprintf("test %q: questions[%d]: invalid id %q", t.ID, qi, q.ID))
				continue
			}
			if owner, dup := questionIDs[q.ID]; dup {
				problems = append(problems, fmt.Sprintf("question %q: listed in %q and %q", q.ID, owner, t.ID))
			}
			questionIDs[q.ID] = t.ID

			if len(q.Options) == 0 {
				problems = append(problems, fmt.Sprintf("question %q: no options", q.ID))
			}
			for oi, o := range q.Options {
				if strings.TrimSpace(o.Label) == "" {
					problems = append(problems, fmt.Sprintf("question %q: options[%d]: empty label", q.ID, oi))
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
