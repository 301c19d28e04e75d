package repository

import (
	"context"
	"fmt"

	"github.com/dellplatz/diag-backend/internal/database"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubjectRepository handles subjects and their "assigned" relation to tests.
type SubjectRepository interface {
	Create(ctx context.Context, s *model.Subject, testIDs []string) error
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	GetByRetrievalID(ctx context.Context, retrievalID uuid.UUID) (*model.Subject, error)
	ListAssignedTests(ctx context.Context, subjectID string) ([]model.Test, error)
	IsAssigned(ctx context.Context, subjectID, testID string) (bool, error)
}

type subjectRepository struct {
	pool *pgxpool.Pool
}

func NewSubjectRepository(pool *pgxpool.Pool) SubjectRepository {
	return &subjectRepository{pool: pool}
}

// Create inserts the subject and its test assignments atomically.
func (r *subjectRepository) Create(ctx context.Context, s *model.Subject, testIDs []string) error {
	err := database.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO subjects (id, retrieval_id) VALUES ($1, $2) RETURNING created_at`,
			s.ID, s.RetrievalID).Scan(&s.CreatedAt); err != nil {
			return fmt.Errorf("insert subject: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"subject_tests"},
			[]string{"subject_id", "test_id"},
			pgx.CopyFromSlice(len(testIDs), func(i int) ([]interface{}, error) {
				return []interface{}{s.ID, testIDs[i]}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("assign tests: %w", err)
		}
		return nil
	})
	return translate(err)
}

func (r *subjectRepository) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	s := &model.Subject{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, retrieval_id, created_at FROM subjects WHERE id = $1`, id,
	).Scan(&s.ID, &s.RetrievalID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subjectRepository) GetByRetrievalID(ctx context.Context, retrievalID uuid.UUID) (*model.Subject, error) {
	s := &model.Subject{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, retrieval_id, created_at FROM subjects WHERE retrieval_id = $1`, retrievalID,
	).Scan(&s.ID, &s.RetrievalID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subjectRepository) ListAssignedTests(ctx context.Context, subjectID string) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.name
		 FROM subject_tests st
		 JOIN tests t ON t.id = st.test_id
		 WHERE st.subject_id = $1
		 ORDER BY t.id ASC`, subjectID,
	)
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

func (r *subjectRepository) IsAssigned(ctx context.Context, subjectID, testID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subject_tests WHERE subject_id = $1 AND test_id = $2)`,
		subjectID, testID,
	).Scan(&ok)
	return ok, err
}
