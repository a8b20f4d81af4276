package model

import "time"

// TaskSubmission is proof that a user completed a task.
type TaskSubmission struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"tg_id" json:"user_id"`
	TaskID       string     `db:"task_id" json:"task_id"`
	Status       Status     `db:"status" json:"status"`
	ProofFileID  string     `db:"proof_file_id" json:"proof_file_id"`
	ProofCaption string     `db:"proof_caption" json:"proof_caption"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ReviewedAt   *time.Time `db:"reviewed_at" json:"reviewed_at"`
}

// SubmissionRef is the (id, status) pair of the latest submission for a user and task.
type SubmissionRef struct {
	ID     int64  `db:"id" json:"id"`
	Status Status `db:"status" json:"status"`
}
