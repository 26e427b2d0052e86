package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackrange/ctf-engine/internal/models"
	"github.com/hackrange/ctf-engine/internal/progress"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Submission handlers

func (s *Server) handleSubmitFlag(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "id")

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	if req.Flag == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "flag is required")
		return
	}

	if !s.submitLimit.Allow(req.UserID) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many submissions, slow down")
		return
	}

	result, err := s.progress.SubmitFlag(r.Context(), progress.Submission{
		UserID:      req.UserID,
		ChallengeID: challengeID,
		Flag:        req.Flag,
		IPAddress:   r.RemoteAddr,
	})
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrChallengeNotFound):
			respondError(w, http.StatusNotFound, "challenge_not_found", "challenge not found")
		case errors.Is(err, progress.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "validation_error", "user_id, challenge id and flag are required")
		default:
			slog.Error("failed to submit flag", "error", err, "challenge", challengeID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to submit flag")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	records, err := s.progress.GetProgress(r.Context(), userID, r.URL.Query().Get("challenge_id"))
	if err != nil {
		if errors.Is(err, progress.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
			return
		}
		slog.Error("failed to get progress", "error", err, "user", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get progress")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"progress": records,
		"total":    len(records),
	})
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	filters := models.LogFilters{
		UserID:      r.URL.Query().Get("user_id"),
		ChallengeID: r.URL.Query().Get("challenge_id"),
		Outcome:     models.SubmissionOutcome(r.URL.Query().Get("outcome")),
		Limit:       100, // default
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	logs, err := s.progress.ListSubmissions(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list submissions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": logs,
		"total":       len(logs),
	})
}

// Leaderboard handler

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.leaderboard.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to get leaderboard", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// Roster handlers

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if u.ID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "id is required")
		return
	}

	if u.Username == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "username is required")
		return
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.UpsertUser(r.Context(), &u); err != nil {
		slog.Error("failed to upsert user", "error", err, "user", u.ID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save user")
		return
	}

	respondJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}
