package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dellplatz/diag-backend/internal/cache"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SubjectLocker serializes writes of one subject.
type SubjectLocker interface {
	Acquire(ctx context.Context, subjectID string) (release func(), err error)
}

// AnswerService validates and persists answer submissions.
type AnswerService struct {
	answerRepo  repository.AnswerRepository
	subjectRepo repository.SubjectRepository
	catalogRepo repository.CatalogRepository
	lock        SubjectLocker
	log         zerolog.Logger
}

func NewAnswerService(
	answerRepo repository.AnswerRepository,
	subjectRepo repository.SubjectRepository,
	catalogRepo repository.CatalogRepository,
	lock SubjectLocker,
	log zerolog.Logger,
) *AnswerService {
	return &AnswerService{
		answerRepo:  answerRepo,
		subjectRepo: subjectRepo,
		catalogRepo: catalogRepo,
		lock:        lock,
		log:         log.With().Str("component", "answer_service").Logger(),
	}
}

// Submit stores answers (question id -> option index) for a subject. Each
// answer replaces the subject's previous answer to that question. The whole
// submission is validated first and written in one transaction: either every
// answer is stored or none is.
func (s *AnswerService) Submit(ctx context.Context, subjectID string, answers map[string]int) error {
	if len(answers) == 0 {
		return fmt.Errorf("%w: no answers submitted", ErrValidation)
	}

	if _, err := s.subjectRepo.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("subject", subjectID)
		}
		return upstream("get subject", err)
	}

	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	questions, err := s.catalogRepo.GetQuestions(ctx, ids)
	if err != nil {
		return upstream("load questions", err)
	}

	var missing, invalid []string
	for _, id := range ids {
		q, ok := questions[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if _, ok := q.Option(answers[id]); !ok {
			invalid = append(invalid, fmt.Sprintf("%s: choice %d outside 0..%d", id, answers[id], len(q.Options)-1))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unknown questions: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(invalid, "; "))
	}

	release, err := s.lock.Acquire(ctx, subjectID)
	if err != nil {
		if errors.Is(err, cache.ErrLockNotAcquired) {
			return fmt.Errorf("%w: %s", ErrSubjectBusy, subjectID)
		}
		return upstream("acquire subject lock", err)
	}
	defer release()

	written, err := s.answerRepo.Upsert(ctx, subjectID, answers)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return notFound("subject", subjectID)
		case errors.Is(err, repository.ErrForeignKey):
			// A concurrent re-seed removed a question between validation and write.
			return fmt.Errorf("%w: answered question no longer exists", ErrIntegrity)
		}
		return upstream("store answers", err)
	}

	s.log.Info().
		Str("subject_id", subjectID).
		Int("answers", len(answers)).
		Int64("written", written).
		Msg("Answers submitted")
	return nil
}

// List returns the subject's current answers to the questions of testID.
func (s *AnswerService) List(ctx context.Context, subjectID, testID string) ([]model.Answer, error) {
	if _, err := s.subjectRepo.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("subject", subjectID)
		}
		return nil, upstream("get subject", err)
	}

	answers, err := s.answerRepo.ListForTest(ctx, subjectID, testID)
	if err != nil {
		return nil, upstream("list answers", err)
	}
	if answers == nil {
		answers = []model.Answer{}
	}
	return answers, nil
}
