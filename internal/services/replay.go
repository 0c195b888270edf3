package services

import (
	"context"
	"errors"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/mentions"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.uber.org/zap"
)

// Replay applies a recorded delta against the current state of the content.
// Deletes remove only matching records the content no longer backs, and
// creates are skipped unless the content still backs them, so later
// mutations win over the recorded ones.
func (s *NotificationService) Replay(ctx context.Context, d models.Delta) error {
	filters := append(append([]models.NotificationFilter{}, d.DeleteMany...), d.DeleteOne...)
	for _, f := range filters {
		records, err := s.notifications.GetByFilter(ctx, f)
		if err != nil {
			return apperrors.Internal("failed to fetch notifications", err)
		}
		for i := range records {
			ok, err := s.backed(ctx, &records[i])
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if _, err := s.notifications.DeleteByID(ctx, records[i].UserID, records[i].ID); err != nil {
				return apperrors.Internal("failed to delete notification", err)
			}
		}
	}

	for i := range d.Create {
		n := d.Create[i]
		ok, err := s.backed(ctx, &n)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("skipping stale notification",
				zap.String("type", string(n.Type)),
				zap.String("user_id", n.UserID.Hex()),
			)
			continue
		}
		if err := s.Create(ctx, &n); err != nil {
			return err
		}
	}
	return nil
}

// backed reports whether the relation or content behind n still exists
func (s *NotificationService) backed(ctx context.Context, n *models.Notification) (bool, error) {
	switch n.Type {
	case models.NotificationFollow:
		actor, err := s.users.GetUserByID(ctx, n.ActionBy)
		if err != nil {
			return missing(err)
		}
		return actor.IsFollowing(n.UserID), nil

	case models.NotificationLike, models.NotificationPostMention:
		if n.Post == nil {
			return false, nil
		}
		post, err := s.posts.GetPostByID(ctx, *n.Post)
		if err != nil {
			return missing(err)
		}
		if n.Type == models.NotificationLike {
			return hasID(post.Likes, n.ActionBy), nil
		}
		return s.mentionedIn(ctx, post.Caption, n)

	case models.NotificationComment, models.NotificationCommentLike, models.NotificationMention:
		if n.Comment == nil {
			return false, nil
		}
		comment, err := s.comments.GetCommentByID(ctx, *n.Comment)
		if err != nil {
			return missing(err)
		}
		if _, err := s.posts.GetPostByID(ctx, comment.PostID); err != nil {
			return missing(err)
		}
		text, likes := comment.Text, comment.Likes
		if n.ReplyID != nil {
			reply, ok := comment.FindReply(*n.ReplyID)
			if !ok {
				return false, nil
			}
			text, likes = reply.Text, reply.Likes
		}

		switch n.Type {
		case models.NotificationComment:
			return comment.User == n.ActionBy, nil
		case models.NotificationCommentLike:
			return hasID(likes, n.ActionBy), nil
		default:
			return s.mentionedIn(ctx, text, n)
		}
	}
	return false, nil
}

// mentionedIn reports whether the recipient of n is mentioned in text
func (s *NotificationService) mentionedIn(ctx context.Context, text string, n *models.Notification) (bool, error) {
	recipient, err := s.users.GetUserByID(ctx, n.UserID)
	if err != nil {
		return missing(err)
	}
	for _, name := range mentions.Extract(text) {
		if name == recipient.Username {
			return true, nil
		}
	}
	return false, nil
}

// missing turns a not-found lookup into an unbacked result
func missing(err error) (bool, error) {
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return false, apperrors.Internal("failed to check notification source", err)
}
