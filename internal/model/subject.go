package model

import (
	"time"

	"github.com/google/uuid"
)

// Subject is the person taking questionnaires. ID addresses the subject's own
// test pages; RetrievalID is the unguessable key of the retrieval path.
type Subject struct {
	ID          string    `json:"id"`
	RetrievalID uuid.UUID `json:"retrieval_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubjectWithTests is a subject together with its assigned tests.
type SubjectWithTests struct {
	Subject
	Tests []Test `json:"tests"`
}

// CreateSubjectRequest is the payload for creating a subject.
type CreateSubjectRequest struct {
	TestIDs []string `json:"test_ids" binding:"required,min=1,max=32,dive,required,testid"`
}
