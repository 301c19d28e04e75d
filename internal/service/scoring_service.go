package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ScoringService evaluates a subject's stored answers against a test.
type ScoringService struct {
	answerRepo  repository.AnswerRepository
	subjectRepo repository.SubjectRepository
	log         zerolog.Logger
	now         func() time.Time
}

func NewScoringService(answerRepo repository.AnswerRepository, subjectRepo repository.SubjectRepository, log zerolog.Logger) *ScoringService {
	return &ScoringService{
		answerRepo:  answerRepo,
		subjectRepo: subjectRepo,
		log:         log.With().Str("component", "scoring_service").Logger(),
		now:         time.Now,
	}
}

// Evaluate scores the subject's current answers to testID. The test does not
// need to be assigned to the subject; answers to other tests never count.
func (s *ScoringService) Evaluate(ctx context.Context, subjectID, testID string) (*model.Evaluation, error) {
	if _, err := s.subjectRepo.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("subject", subjectID)
		}
		return nil, upstream("get subject", err)
	}

	snap, err := s.answerRepo.Snapshot(ctx, subjectID, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("test", testID)
		}
		return nil, upstream("read scoring snapshot", err)
	}

	ev, err := Score(subjectID, snap, s.now())
	if err != nil {
		s.log.Error().Err(err).
			Str("subject_id", subjectID).
			Str("test_id", testID).
			Msg("Stored answers do not match the catalog")
		return nil, err
	}

	s.log.Info().
		Str("subject_id", subjectID).
		Str("test_id", testID).
		Int("answered", ev.AnsweredCount).
		Int("questions", ev.QuestionCount).
		Int("total", ev.Total).
		Msg("Test evaluated")
	return ev, nil
}

// Score builds the evaluation of one snapshot. Rows follow the catalog order
// (order_num, then id) and only cover answered questions; total is the sum of
// the chosen options' values. A stored choice that addresses no option is an
// integrity error.
func Score(subjectID string, snap *model.ScoringSnapshot, at time.Time) (*model.Evaluation, error) {
	questions := make([]model.Question, len(snap.Questions))
	copy(questions, snap.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].OrderNum != questions[j].OrderNum {
			return questions[i].OrderNum < questions[j].OrderNum
		}
		return questions[i].ID < questions[j].ID
	})

	choices := make(map[string]int, len(snap.Answers))
	for _, a := range snap.Answers {
		choices[a.QuestionID] = a.Choice
	}

	ev := &model.Evaluation{
		SubjectID:     subjectID,
		TestID:        snap.Test.ID,
		TestName:      snap.Test.Name,
		Rows:          make([]model.ScoredRow, 0, len(choices)),
		QuestionCount: len(questions),
		Unanswered:    []string{},
		EvaluatedAt:   at.UTC(),
	}

	for i := range questions {
		q := &questions[i]
		ev.MaxTotal += q.MaxScore()

		choice, answered := choices[q.ID]
		if !answered {
			ev.Unanswered = append(ev.Unanswered, q.ID)
			continue
		}
		opt, ok := q.Option(choice)
		if !ok {
			return nil, fmt.Errorf("%w: question %q has no option %d", ErrIntegrity, q.ID, choice)
		}
		ev.Rows = append(ev.Rows, model.ScoredRow{
			QuestionID:   q.ID,
			QuestionText: q.Prompt,
			AnswerText:   opt.Label,
			AnswerValue:  opt.Value,
		})
		ev.Total += opt.Value
	}
	ev.AnsweredCount = len(ev.Rows)
	return ev, nil
}
