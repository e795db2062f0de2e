package stats

import (
	"encoding/json"
	"net/http"

	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
	}
}

func (h *Handler) NomineeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	nomineeID := chi.URLParam(r, "id")

	s, err := h.aggregator.Get(ctx, nomineeID)
	if err != nil {
		logger.Error().Err(err).Str("nominee_id", nomineeID).Msg("Failed to load nominee stats")
		http.Error(w, "Failed to load nominee stats", http.StatusInternalServerError)
		return
	}
	if s == nil {
		// No votes yet; an empty projection, not an error
		s = &model.NomineeStats{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	categoryID := chi.URLParam(r, "id")

	board, err := h.aggregator.CategoryLeaderboard(ctx, categoryID)
	if err != nil {
		logger.Error().Err(err).Str("category_id", categoryID).Msg("Failed to build leaderboard")
		http.Error(w, "Failed to build leaderboard", http.StatusInternalServerError)
		return
	}
	if board == nil {
		board = []LeaderboardRow{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"category_id": categoryID,
		"leaderboard": board,
	})
}
