package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SubjectService creates subjects and resolves their test assignments.
// Fresh ids are drawn this often when a new subject collides with a stored one.
const createAttempts = 3

type SubjectService struct {
	subjectRepo repository.SubjectRepository
	catalog     *CatalogService
	log         zerolog.Logger
}

func NewSubjectService(subjectRepo repository.SubjectRepository, catalog *CatalogService, log zerolog.Logger) *SubjectService {
	return &SubjectService{
		subjectRepo: subjectRepo,
		catalog:     catalog,
		log:         log.With().Str("component", "subject_service").Logger(),
	}
}

// Create registers a new subject assigned to testIDs. Every id must name an
// existing test; unknown ids reject the whole request.
func (s *SubjectService) Create(ctx context.Context, testIDs []string) (*model.SubjectWithTests, error) {
	ids := normalizeIDs(testIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one test must be assigned", ErrValidation)
	}

	available, err := s.catalog.ListTests(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Test, len(available))
	for _, t := range available {
		byID[t.ID] = t
	}

	var (
		missing  []string
		assigned = make([]model.Test, 0, len(ids))
	)
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		assigned = append(assigned, t)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown test ids: %s", ErrValidation, strings.Join(missing, ", "))
	}

	var sub *model.Subject
	for attempt := 1; ; attempt++ {
		sub = &model.Subject{
			ID:          uuid.NewString(),
			RetrievalID: uuid.New(),
		}
		err := s.subjectRepo.Create(ctx, sub, ids)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, repository.ErrForeignKey):
			// A concurrent re-seed may have removed a test after validation.
			return nil, fmt.Errorf("%w: assigned test no longer exists", ErrValidation)
		case errors.Is(err, repository.ErrDuplicate) && attempt < createAttempts:
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("Subject id collision, retrying")
			continue
		case errors.Is(err, repository.ErrDuplicate):
			return nil, fmt.Errorf("%w: subject ids collided %d times: %w", ErrIntegrity, attempt, err)
		}
		return nil, upstream("create subject", err)
	}

	s.log.Info().
		Str("subject_id", sub.ID).
		Strs("test_ids", ids).
		Msg("Subject created")

	return &model.SubjectWithTests{Subject: *sub, Tests: assigned}, nil
}

func (s *SubjectService) Get(ctx context.Context, id string) (*model.Subject, error) {
	sub, err := s.subjectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("subject", id)
		}
		return nil, upstream("get subject", err)
	}
	return sub, nil
}

// GetByRetrievalID resolves the retrieval access path to the subject and its tests.
func (s *SubjectService) GetByRetrievalID(ctx context.Context, retrievalID uuid.UUID) (*model.SubjectWithTests, error) {
	sub, err := s.subjectRepo.GetByRetrievalID(ctx, retrievalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("retrieval id", retrievalID.String())
		}
		return nil, upstream("get subject by retrieval id", err)
	}

	tests, err := s.listAssigned(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &model.SubjectWithTests{Subject: *sub, Tests: tests}, nil
}

// ListAssignedTests returns the subject's tests. An unknown subject is a
// not-found error; a subject without assignments yields an empty list.
func (s *SubjectService) ListAssignedTests(ctx context.Context, subjectID string) ([]model.Test, error) {
	if _, err := s.Get(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.listAssigned(ctx, subjectID)
}

// Questions returns the question form of a test assigned to the subject.
func (s *SubjectService) Questions(ctx context.Context, subjectID, testID string) ([]model.Question, error) {
	if _, err := s.Get(ctx, subjectID); err != nil {
		return nil, err
	}

	ok, err := s.subjectRepo.IsAssigned(ctx, subjectID, testID)
	if err != nil {
		return nil, upstream("check assignment", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: test %q, subject %q", ErrNotAssigned, testID, subjectID)
	}
	return s.catalog.ListQuestions(ctx, testID)
}

func (s *SubjectService) listAssigned(ctx context.Context, subjectID string) ([]model.Test, error) {
	tests, err := s.subjectRepo.ListAssignedTests(ctx, subjectID)
	if err != nil {
		return nil, upstream("list assigned tests", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, nil
}

// normalizeIDs trims, drops blanks and deduplicates ids, returning them sorted.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
