package model

import "time"

// Answer is the live "says" edge between a subject and a question. Choice is
// the index of the selected option in the question's option list.
type Answer struct {
	SubjectID  string    `json:"subject_id"`
	QuestionID string    `json:"question_id"`
	Choice     int       `json:"choice"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubmitAnswersRequest is the payload for submitting answers. Keys are
// question ids, values are option indices.
type SubmitAnswersRequest struct {
	Answers map[string]int `json:"answers" binding:"required,min=1,max=500,dive,keys,required,max=64,endkeys,min=0"`
}
