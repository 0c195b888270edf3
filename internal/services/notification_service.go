package services

import (
	"context"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NotificationService is the notification ledger. Records are only ever
// created, deleted, or flagged read.
type NotificationService struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	posts         repositories.PostRepository
	comments      repositories.CommentRepository
	log           *zap.Logger
}

func NewNotificationService(
	notifications repositories.NotificationRepository,
	users repositories.UserRepository,
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	log *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		posts:         posts,
		comments:      comments,
		log:           log,
	}
}

// Create stores n once per identity tuple; repeating it is a no-op
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) error {
	if err := s.notifications.Upsert(ctx, n); err != nil {
		return apperrors.Internal("failed to create notification", err)
	}
	return nil
}

// DeleteOne removes at most one matching record; no match is not an error
func (s *NotificationService) DeleteOne(ctx context.Context, filter models.NotificationFilter) error {
	if _, err := s.notifications.DeleteOne(ctx, filter); err != nil {
		return apperrors.Internal("failed to delete notification", err)
	}
	return nil
}

// DeleteMany removes every matching record
func (s *NotificationService) DeleteMany(ctx context.Context, filter models.NotificationFilter) error {
	if _, err := s.notifications.DeleteMany(ctx, filter); err != nil {
		return apperrors.Internal("failed to delete notifications", err)
	}
	return nil
}

// Execute applies d and returns whatever part of it was not applied
func (s *NotificationService) Execute(ctx context.Context, d models.Delta) (models.Delta, error) {
	for i, f := range d.DeleteMany {
		if err := s.DeleteMany(ctx, f); err != nil {
			return remainder(d, 0, i, 0, 0), err
		}
	}
	for i, f := range d.DeleteOne {
		if err := s.DeleteOne(ctx, f); err != nil {
			return remainder(d, 1, len(d.DeleteMany), i, 0), err
		}
	}
	for i := range d.Create {
		n := d.Create[i]
		if err := s.Create(ctx, &n); err != nil {
			return remainder(d, 2, len(d.DeleteMany), len(d.DeleteOne), i), err
		}
	}
	return models.Delta{}, nil
}

// remainder cuts the applied prefix off d
func remainder(d models.Delta, stage, many, one, create int) models.Delta {
	var out models.Delta
	if stage == 0 {
		out.DeleteMany = append(out.DeleteMany, d.DeleteMany[many:]...)
	}
	if stage <= 1 {
		out.DeleteOne = append(out.DeleteOne, d.DeleteOne[one:]...)
	}
	out.Create = append(out.Create, d.Create[create:]...)
	return out
}

// ListForUser returns the user's notifications newest first as NotificationViews
func (s *NotificationService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.NotificationView, error) {
	records, err := s.notifications.GetByRecipientID(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch notifications", err)
	}

	var actorIDs, postIDs, commentIDs []primitive.ObjectID
	for _, n := range records {
		actorIDs = append(actorIDs, n.ActionBy)
		if n.Post != nil {
			postIDs = append(postIDs, *n.Post)
		}
		if n.Comment != nil {
			commentIDs = append(commentIDs, *n.Comment)
		}
	}

	actors, err := s.users.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch notification actors", err)
	}
	posts, err := s.posts.GetPostsByIDs(ctx, postIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch notification posts", err)
	}
	comments, err := s.comments.GetCommentsByIDs(ctx, commentIDs)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch notification comments", err)
	}

	actorByID := indexUsers(actors)
	postByID := make(map[primitive.ObjectID]*models.PostPreview, len(posts))
	for _, p := range posts {
		postByID[p.ID] = &models.PostPreview{ID: p.ID, URL: p.URL}
	}
	commentByID := make(map[primitive.ObjectID]*models.CommentPreview, len(comments))
	for _, c := range comments {
		commentByID[c.ID] = &models.CommentPreview{ID: c.ID, Text: c.Text}
	}

	views := make([]models.NotificationView, 0, len(records))
	for _, n := range records {
		view := models.NotificationView{
			ID:        n.ID,
			Type:      n.Type,
			Read:      n.Read,
			ActionBy:  previewOf(actorByID, n.ActionBy),
			ReplyID:   n.ReplyID,
			ReplyText: n.ReplyText,
			CreatedAt: n.CreatedAt,
		}
		if n.Post != nil {
			view.Post = postByID[*n.Post]
		}
		if n.Comment != nil {
			view.Comment = commentByID[*n.Comment]
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkAllRead flags every unread record of the user; repeating it changes nothing
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.notifications.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to update notifications", err)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.notifications.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count notifications", err)
	}
	return n, nil
}

// Delete removes one notification owned by userID
func (s *NotificationService) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	n, err := s.notifications.DeleteByID(ctx, userID, id)
	if err != nil {
		return apperrors.Internal("failed to delete notification", err)
	}
	if n == 0 {
		return apperrors.NotFound("notification not found")
	}
	return nil
}
