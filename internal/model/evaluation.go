package model

import "time"

// ScoredRow is one answered question of an evaluation.
type ScoredRow struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	AnswerText   string `json:"answer_text"`
	AnswerValue  int    `json:"answer_value"`
}

// Evaluation is the scored result of one subject on one test.
type Evaluation struct {
	SubjectID     string      `json:"subject_id"`
	TestID        string      `json:"test_id"`
	TestName      string      `json:"test_name"`
	Rows          []ScoredRow `json:"rows"`
	Total         int         `json:"total"`
	MaxTotal      int         `json:"max_total"`
	QuestionCount int         `json:"question_count"`
	AnsweredCount int         `json:"answered_count"`
	Unanswered    []string    `json:"unanswered"`
	EvaluatedAt   time.Time   `json:"evaluated_at"`
}

// ScoringSnapshot holds everything needed to score one subject on one test,
// read from a single consistent view of the store.
type ScoringSnapshot struct {
	Test      Test
	Questions []Question
	Answers   []Answer
}

// Report points at the rendered artifact of an evaluation.
type Report struct {
	Evaluation
	ArtifactKey string `json:"artifact_key"`
	DownloadURL string `json:"download_url,omitempty"`
}
