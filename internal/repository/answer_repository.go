package repository

import (
	"context"
	"fmt"

	"github.com/dellplatz/diag-backend/internal/database"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository handles the "says" relation between subjects and questions.
type AnswerRepository interface {
	Upsert(ctx context.Context, subjectID string, answers map[string]int) (int64, error)
	ListForTest(ctx context.Context, subjectID, testID string) ([]model.Answer, error)
	Snapshot(ctx context.Context, subjectID, testID string) (*model.ScoringSnapshot, error)
}

type answerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) AnswerRepository {
	return &answerRepository{pool: pool}
}

// Upsert replaces the subject's answers for every question in answers within
// one transaction. The primary key (subject_id, question_id) keeps at most one
// live answer per pair. Returns pgx.ErrNoRows when the subject does not exist.
func (r *answerRepository) Upsert(ctx context.Context, subjectID string, answers map[string]int) (int64, error) {
	questionIDs := make([]string, 0, len(answers))
	choices := make([]int32, 0, len(answers))
	for qid, choice := range answers {
		questionIDs = append(questionIDs, qid)
		choices = append(choices, int32(choice))
	}

	var written int64
	err := database.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// Row lock serializes concurrent submissions of the same subject.
		var id string
		if err := tx.QueryRow(ctx,
			`SELECT id FROM subjects WHERE id = $1 FOR UPDATE`, subjectID,
		).Scan(&id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO answers (subject_id, question_id, choice, updated_at)
			 SELECT $1, u.question_id, u.choice, NOW()
			 FROM UNNEST($2::varchar[], $3::int[]) AS u (question_id, choice)
			 ON CONFLICT (subject_id, question_id) DO UPDATE
			 SET choice = EXCLUDED.choice, updated_at = EXCLUDED.updated_at`,
			subjectID, questionIDs, choices,
		)
		if err != nil {
			return fmt.Errorf("upsert answers: %w", err)
		}
		written = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}
	return written, nil
}

// ListForTest returns the subject's answers restricted to questions of testID,
// in canonical question order.
func (r *answerRepository) ListForTest(ctx context.Context, subjectID, testID string) ([]model.Answer, error) {
	return listAnswers(ctx, r.pool, subjectID, testID)
}

// Snapshot reads the test, its questions and the subject's answers to them
// from one repeatable-read transaction. Returns pgx.ErrNoRows for an unknown test.
func (r *answerRepository) Snapshot(ctx context.Context, subjectID, testID string) (*model.ScoringSnapshot, error) {
	snap := &model.ScoringSnapshot{}
	err := database.WithTx(ctx, r.pool, database.ReadSnapshot, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT id, name FROM tests WHERE id = $1`, testID,
		).Scan(&snap.Test.ID, &snap.Test.Name); err != nil {
			return err
		}

		questions, err := listQuestions(ctx, tx, testID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		snap.Questions = questions

		answers, err := listAnswers(ctx, tx, subjectID, testID)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}
		snap.Answers = answers
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func listAnswers(ctx context.Context, q querier, subjectID, testID string) ([]model.Answer, error) {
	rows, err := q.Query(ctx,
		`SELECT a.subject_id, a.question_id, a.choice, a.updated_at
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.subject_id = $1 AND q.test_id = $2
		 ORDER BY q.order_num ASC, q.id ASC`, subjectID, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SubjectID, &a.QuestionID, &a.Choice, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
