package models

import (
	"time"
)

// LeaderboardEntry represents a user's position on the leaderboard.
// Derived from progress records and challenge points, never stored
// as a source of truth.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Points      int    `json:"points"`
	Completed   int    `json:"completed_challenges"`
}

// LeaderboardSnapshot is a computed leaderboard with its generation time
type LeaderboardSnapshot struct {
	Entries     []LeaderboardEntry `json:"entries"`
	TotalUsers  int                `json:"total_users"`
	GeneratedAt time.Time          `json:"generated_at"`
}
