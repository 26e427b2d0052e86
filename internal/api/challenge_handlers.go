package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Challenge catalog handlers

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges := s.catalog.List()

	category := r.URL.Query().Get("category")
	difficulty := r.URL.Query().Get("difficulty")

	if category != "" || difficulty != "" {
		filtered := make([]*models.Challenge, 0, len(challenges))
		for _, ch := range challenges {
			if category != "" && string(ch.Category) != category {
				continue
			}
			if difficulty != "" && string(ch.Difficulty) != difficulty {
				continue
			}
			filtered = append(filtered, ch)
		}
		challenges = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": challenges,
		"total":      len(challenges),
	})
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ch := s.catalog.Get(id)
	if ch == nil {
		respondError(w, http.StatusNotFound, "challenge_not_found", "challenge not found: "+id)
		return
	}

	respondJSON(w, http.StatusOK, ch)
}

// handleReloadChallenges re-reads the challenge directory and provisions
// targets for any new challenges. Existing progress is unaffected.
func (s *Server) handleReloadChallenges(w http.ResponseWriter, r *http.Request) {
	previousTargets := make(map[string]string)
	for _, ch := range s.catalog.List() {
		if ch.Target != "" {
			previousTargets[ch.ID] = ch.Target
		}
	}

	if err := s.catalog.LoadFromDir(s.config.Challenges.Dir); err != nil {
		slog.Error("failed to reload challenges", "error", err, "dir", s.config.Challenges.Dir)
		respondError(w, http.StatusInternalServerError, "reload_failed", "failed to reload challenge definitions")
		return
	}

	if s.targets != nil {
		s.targets.DeprovisionDropped(r.Context(), previousTargets, s.catalog.List())
		if err := s.targets.ProvisionAll(r.Context(), s.catalog.List()); err != nil {
			slog.Error("failed to provision challenge targets", "error", err)
			respondError(w, http.StatusInternalServerError, "provision_failed", "challenges reloaded but target provisioning failed")
			return
		}
	}

	client := ClientFromContext(r.Context())
	slog.Info("challenge catalog reloaded", "count", s.catalog.Len(), "client", client.Name)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"total":    s.catalog.Len(),
	})
}
