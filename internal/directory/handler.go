package directory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dprinces/Award-Portal-sub002/internal/apperrors"
	"github.com/Dprinces/Award-Portal-sub002/internal/middleware"
	"github.com/Dprinces/Award-Portal-sub002/internal/model"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{
		repo: repo,
	}
}

// ListNominees serves the public ballot for a category: approved nominees
// only, alongside the category's vote price so clients can render the exact
// amount the guard will accept.
func (h *Handler) ListNominees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	categoryID := chi.URLParam(r, "id")

	category, err := h.repo.GetCategory(ctx, categoryID)
	if errors.Is(err, ErrNotFound) {
		appErr := apperrors.CategoryNotFound(categoryID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.StatusCode)
		json.NewEncoder(w).Encode(apperrors.ToResponse(appErr))
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("category_id", categoryID).Msg("Failed to load category")
		http.Error(w, "Failed to load category", http.StatusInternalServerError)
		return
	}

	nominees, err := h.repo.ListApprovedNominees(ctx, categoryID)
	if err != nil {
		logger.Error().Err(err).Str("category_id", categoryID).Msg("Failed to list nominees")
		http.Error(w, "Failed to list nominees", http.StatusInternalServerError)
		return
	}
	if nominees == nil {
		nominees = []model.Nominee{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"category_id": categoryID,
		"vote_price":  category.VotePrice,
		"currency":    category.Currency,
		"nominees":    nominees,
	})
}
