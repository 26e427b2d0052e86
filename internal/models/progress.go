package models

import (
	"time"
)

// ProgressRecord tracks a user's state for a single challenge.
// Exactly one record exists per (user_id, challenge_id) pair.
type ProgressRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ChallengeID string     `json:"challenge_id"`
	Attempts    int        `json:"attempts"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SubmissionResult is the outcome of a single flag submission
type SubmissionResult struct {
	Correct          bool   `json:"correct"`
	AlreadyCompleted bool   `json:"already_completed"`
	Attempts         int    `json:"attempts"`
	PointsAwarded    int    `json:"points_awarded"`
	ChallengeID      string `json:"challenge_id"`
	UserID           string `json:"user_id"`
}

// SubmissionOutcome classifies a logged flag submission
type SubmissionOutcome string

const (
	OutcomeCorrect   SubmissionOutcome = "correct"
	OutcomeWrong     SubmissionOutcome = "wrong"
	OutcomeDuplicate SubmissionOutcome = "duplicate" // correct flag after the challenge was already solved
)

// SubmissionLog is an audit record of a single flag submission
type SubmissionLog struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	ChallengeID   string            `json:"challenge_id"`
	SubmittedFlag string            `json:"submitted_flag"`
	Outcome       SubmissionOutcome `json:"outcome"`
	IPAddress     string            `json:"ip_address,omitempty"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// SubmitRequest is the request body for a flag submission
type SubmitRequest struct {
	UserID string `json:"user_id"`
	Flag   string `json:"flag"`
}

// ProgressFilters narrows a progress listing
type ProgressFilters struct {
	UserID      string
	ChallengeID string
	Completed   *bool
}

// LogFilters narrows a submission log listing
type LogFilters struct {
	UserID      string
	ChallengeID string
	Outcome     SubmissionOutcome
	Limit       int
	Offset      int
}

// SolveEvent is broadcast to the live feed when a user first solves a challenge
type SolveEvent struct {
	UserID      string    `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	Points      int       `json:"points"`
	SolvedAt    time.Time `json:"solved_at"`
}
