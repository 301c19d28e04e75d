package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dellplatz/diag-backend/internal/database"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository handles tests and their questions.
type CatalogRepository interface {
	ListTests(ctx context.Context) ([]model.Test, error)
	GetTest(ctx context.Context, id string) (*model.Test, error)
	ListQuestions(ctx context.Context, testID string) ([]model.Question, error)
	GetQuestions(ctx context.Context, ids []string) (map[string]model.Question, error)
	Replace(ctx context.Context, tests []model.CatalogTest) (*model.SeedResult, error)
}

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) ListTests(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM tests ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (r *catalogRepository) GetTest(ctx context.Context, id string) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM tests WHERE id = $1`, id).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListQuestions retrieves the questions of a test in canonical order.
func (r *catalogRepository) ListQuestions(ctx context.Context, testID string) ([]model.Question, error) {
	return listQuestions(ctx, r.pool, testID)
}

func (r *catalogRepository) GetQuestions(ctx context.Context, ids []string) (map[string]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, prompt, options, order_num
		 FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// Replace clears the catalog and recreates it from tests in one transaction.
// Assignments and answers whose test or question did not survive are pruned;
// everything else keeps pointing at the recreated rows.
func (r *catalogRepository) Replace(ctx context.Context, tests []model.CatalogTest) (*model.SeedResult, error) {
	res := &model.SeedResult{Tests: len(tests)}

	testRows := make([][]interface{}, 0, len(tests))
	var questionRows [][]interface{}
	for _, t := range tests {
		testRows = append(testRows, []interface{}{t.ID, t.Name})
		for i, q := range t.Questions {
			opts, err := json.Marshal(q.Options)
			if err != nil {
				return nil, fmt.Errorf("marshal options of %s: %w", q.ID, err)
			}
			questionRows = append(questionRows, []interface{}{q.ID, t.ID, q.Prompt, json.RawMessage(opts), i})
		}
	}
	res.Questions = len(questionRows)

	err := database.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tests`); err != nil {
			return fmt.Errorf("clear tests: %w", err)
		}

		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"tests"},
			[]string{"id", "name"},
			pgx.CopyFromRows(testRows),
		)
		if err != nil {
			return fmt.Errorf("insert tests: %w", err)
		}
		if int(n) != len(testRows) {
			return fmt.Errorf("insert tests: wrote %d of %d rows", n, len(testRows))
		}

		// test_id establishes the "contains" relation of every question.
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"questions"},
			[]string{"id", "test_id", "prompt", "options", "order_num"},
			pgx.CopyFromRows(questionRows),
		)
		if err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		if int(n) != len(questionRows) {
			return fmt.Errorf("insert questions: wrote %d of %d rows", n, len(questionRows))
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM subject_tests st
			 WHERE NOT EXISTS (SELECT 1 FROM tests t WHERE t.id = st.test_id)`)
		if err != nil {
			return fmt.Errorf("prune assignments: %w", err)
		}
		res.PrunedAssignments = int(tag.RowsAffected())

		tag, err = tx.Exec(ctx,
			`DELETE FROM answers a
			 WHERE NOT EXISTS (SELECT 1 FROM questions q WHERE q.id = a.question_id)`)
		if err != nil {
			return fmt.Errorf("prune answers: %w", err)
		}
		res.PrunedAnswers = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func listQuestions(ctx context.Context, q querier, testID string) ([]model.Question, error) {
	rows, err := q.Query(ctx,
		`SELECT id, test_id, prompt, options, order_num
		 FROM questions WHERE test_id = $1
		 ORDER BY order_num ASC, id ASC`, testID,
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q   model.Question
			raw json.RawMessage
		)
		if err := rows.Scan(&q.ID, &q.TestID, &q.Prompt, &raw, &q.OrderNum); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
