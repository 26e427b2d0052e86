package leaderboard

import (
	"sort"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Compute derives a ranked leaderboard from completed progress records
// joined against challenge point values. Pure and synchronous; callers
// own all I/O.
//
// Every roster user appears, with zero totals if they have no
// completions. Users seen only in progress records are appended after
// the roster in first-seen order. Sorting is stable: users with equal
// points keep their first-seen input order, and rank is the 1-based
// position in the sorted sequence (dense, no shared places).
func Compute(records []*models.ProgressRecord, challenges []*models.Challenge, roster []*models.User) []models.LeaderboardEntry {
	points := make(map[string]int, len(challenges))
	for _, ch := range challenges {
		points[ch.ID] = ch.Points
	}

	entries := make([]models.LeaderboardEntry, 0, len(roster))
	index := make(map[string]int, len(roster))

	for _, u := range roster {
		if _, seen := index[u.ID]; seen {
			continue
		}
		index[u.ID] = len(entries)
		entries = append(entries, models.LeaderboardEntry{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.Name(),
		})
	}

	for _, rec := range records {
		if !rec.Completed {
			continue
		}

		i, seen := index[rec.UserID]
		if !seen {
			i = len(entries)
			index[rec.UserID] = i
			entries = append(entries, models.LeaderboardEntry{
				UserID:   rec.UserID,
				Username: rec.UserID,
			})
		}

		// Unknown challenge ids contribute zero points, not an error:
		// the record may predate a catalog reload.
		entries[i].Points += points[rec.ChallengeID]
		entries[i].Completed++
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Points > entries[b].Points
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}
