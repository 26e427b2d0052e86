package leaderboard

import (
	"testing"
	"time"

	"github.com/hackrange/ctf-engine/internal/models"
)

func mkChallenges() []*models.Challenge {
	return []*models.Challenge{
		{ID: "recon", Points: 50},
		{ID: "sqli", Points: 100},
		{ID: "crypto", Points: 150},
	}
}

func mkUser(id string) *models.User {
	return &models.User{ID: id, Username: id, CreatedAt: time.Now()}
}

func completedRec(userID, challengeID string) *models.ProgressRecord {
	at := time.Now()
	return &models.ProgressRecord{
		UserID:      userID,
		ChallengeID: challengeID,
		Completed:   true,
		CompletedAt: &at,
	}
}

func TestComputeRanksByPoints(t *testing.T) {
	roster := []*models.User{mkUser("alice"), mkUser("bob")}
	records := []*models.ProgressRecord{
		completedRec("alice", "recon"),
		completedRec("bob", "recon"),
		completedRec("bob", "sqli"),
	}

	entries := Compute(records, mkChallenges(), roster)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "bob" || entries[0].Points != 150 || entries[0].Rank != 1 {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].UserID != "alice" || entries[1].Points != 50 || entries[1].Rank != 2 {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	if entries[0].Completed != 2 {
		t.Errorf("expected bob to have 2 completions, got %d", entries[0].Completed)
	}
}

func TestComputeStableTieBreak(t *testing.T) {
	// Equal points keep roster order
	roster := []*models.User{mkUser("bravo"), mkUser("alpha"), mkUser("charlie")}
	records := []*models.ProgressRecord{
		completedRec("alpha", "recon"),
		completedRec("bravo", "recon"),
		completedRec("charlie", "recon"),
	}

	entries := Compute(records, mkChallenges(), roster)

	want := []string{"bravo", "alpha", "charlie"}
	for i, id := range want {
		if entries[i].UserID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, entries[i].UserID)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i, i+1, entries[i].Rank)
		}
	}
}

func TestComputeRosterUsersWithoutSolves(t *testing.T) {
	roster := []*models.User{mkUser("alice"), mkUser("idle")}
	records := []*models.ProgressRecord{completedRec("alice", "sqli")}

	entries := Compute(records, mkChallenges(), roster)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].UserID != "idle" || entries[1].Points != 0 || entries[1].Completed != 0 {
		t.Errorf("idle user should appear with zero totals: %+v", entries[1])
	}
}

func TestComputeSkipsIncompleteRecords(t *testing.T) {
	roster := []*models.User{mkUser("alice")}
	records := []*models.ProgressRecord{
		{UserID: "alice", ChallengeID: "sqli", Attempts: 3, Completed: false},
	}

	entries := Compute(records, mkChallenges(), roster)

	if entries[0].Points != 0 || entries[0].Completed != 0 {
		t.Errorf("incomplete record must not score: %+v", entries[0])
	}
}

func TestComputeUnknownChallengeScoresZero(t *testing.T) {
	// Progress may reference challenges removed from the catalog
	roster := []*models.User{mkUser("alice")}
	records := []*models.ProgressRecord{
		completedRec("alice", "retired-challenge"),
		completedRec("alice", "recon"),
	}

	entries := Compute(records, mkChallenges(), roster)

	if entries[0].Points != 50 {
		t.Errorf("expected 50 points, got %d", entries[0].Points)
	}
	if entries[0].Completed != 2 {
		t.Errorf("completions still count for unknown challenges, got %d", entries[0].Completed)
	}
}

func TestComputeUserOutsideRoster(t *testing.T) {
	roster := []*models.User{mkUser("alice")}
	records := []*models.ProgressRecord{completedRec("ghost", "crypto")}

	entries := Compute(records, mkChallenges(), roster)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "ghost" || entries[0].Points != 150 {
		t.Errorf("non-roster solver should still rank: %+v", entries[0])
	}
	if entries[0].Username != "ghost" {
		t.Errorf("non-roster solver falls back to id for username, got %q", entries[0].Username)
	}
}

func TestComputeEmptyInputs(t *testing.T) {
	entries := Compute(nil, nil, nil)
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %d entries", len(entries))
	}
}
