package services

import (
	"errors"
	"strings"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// lookupErr converts a repository read error about one entity
func lookupErr(err error, what string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound(what + " not found")
	}
	return apperrors.Internal("failed to fetch "+what, err)
}

func requireActor(actor models.Actor) error {
	if actor.ID.IsZero() {
		return apperrors.Unauthorized("unauthorized request")
	}
	return nil
}

func requireText(text, field string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Validation(field + " is required")
	}
	return text, nil
}

func indexUsers(users []models.User) map[primitive.ObjectID]*models.User {
	idx := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		idx[users[i].ID] = &users[i]
	}
	return idx
}

// previewOf falls back to a bare id when the user is unknown
func previewOf(idx map[primitive.ObjectID]*models.User, id primitive.ObjectID) models.UserPreview {
	if u, ok := idx[id]; ok {
		return u.ToPreview()
	}
	return models.UserPreview{ID: id}
}

func previews(idx map[primitive.ObjectID]*models.User, ids []primitive.ObjectID) []models.UserPreview {
	out := make([]models.UserPreview, 0, len(ids))
	for _, id := range ids {
		if u, ok := idx[id]; ok {
			out = append(out, u.ToPreview())
		}
	}
	return out
}

// cardsInOrder keeps the order of ids and skips unknown users
func cardsInOrder(idx map[primitive.ObjectID]*models.User, ids []primitive.ObjectID) []models.UserCard {
	out := make([]models.UserCard, 0, len(ids))
	for _, id := range ids {
		if u, ok := idx[id]; ok {
			out = append(out, u.ToCard())
		}
	}
	return out
}

func hasID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
