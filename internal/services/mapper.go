package services

import (
	"context"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Mapper turns content mutations into notification deltas and applies them
// after the primary write. The builders are pure; mention names are resolved
// beforehand with ResolveMentions.
type Mapper struct {
	users     repositories.UserRepository
	ledger    *NotificationService
	reconcile repositories.ReconcileRepository
	log       *zap.Logger
}

func NewMapper(users repositories.UserRepository, ledger *NotificationService, reconcile repositories.ReconcileRepository, log *zap.Logger) *Mapper {
	return &Mapper{users: users, ledger: ledger, reconcile: reconcile, log: log}
}

// ResolveMentions maps usernames to user ids, dropping unknown names and the actor.
// The result keeps the order of names and holds each user once.
func (m *Mapper) ResolveMentions(ctx context.Context, actor models.Actor, names []string) ([]primitive.ObjectID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	found, err := m.users.GetUsersByUsernames(ctx, names)
	if err != nil {
		return nil, apperrors.Internal("failed to resolve mentions", err)
	}
	byName := make(map[string]primitive.ObjectID, len(found))
	for _, u := range found {
		byName[u.Username] = u.ID
	}

	seen := map[primitive.ObjectID]bool{}
	ids := []primitive.ObjectID{}
	for _, name := range names {
		id, ok := byName[name]
		if !ok || id == actor.ID || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Apply executes d. When the ledger fails, the unapplied part is written to
// the reconciliation ledger and a PartialFailure is returned.
func (m *Mapper) Apply(ctx context.Context, operation string, d models.Delta) error {
	if d.Empty() {
		return nil
	}
	rest, err := m.ledger.Execute(ctx, d)
	if err == nil {
		return nil
	}

	m.log.Error("notification side effect failed",
		zap.String("operation", operation),
		zap.Int("pending_creates", len(rest.Create)),
		zap.Int("pending_deletes", len(rest.DeleteOne)+len(rest.DeleteMany)),
		zap.Error(err),
	)
	if recErr := m.reconcile.Record(ctx, operation, rest, err); recErr != nil {
		m.log.Error("failed to record pending notification delta",
			zap.String("operation", operation), zap.Error(recErr))
	}
	return apperrors.PartialFailure("notification update failed", err)
}

func ref(id primitive.ObjectID) *primitive.ObjectID { return &id }

func mentionCreates(typ models.NotificationType, actor models.Actor, users []primitive.ObjectID, base models.Notification) []models.Notification {
	out := make([]models.Notification, 0, len(users))
	for _, u := range users {
		if u == actor.ID {
			continue
		}
		n := base
		n.UserID = u
		n.Type = typ
		n.ActionBy = actor.ID
		out = append(out, n)
	}
	return out
}

// PostCreated notifies the users mentioned in the caption
func (m *Mapper) PostCreated(actor models.Actor, post *models.Post, mentioned []primitive.ObjectID) models.Delta {
	return models.Delta{
		Create: mentionCreates(models.NotificationPostMention, actor, mentioned, models.Notification{Post: ref(post.ID)}),
	}
}

// PostCaptionEdited notifies newly mentioned users and withdraws notifications of dropped mentions
func (m *Mapper) PostCaptionEdited(actor models.Actor, post *models.Post, added, removed []primitive.ObjectID) models.Delta {
	d := m.PostCreated(actor, post, added)
	for _, u := range removed {
		d.DeleteMany = append(d.DeleteMany, models.NotificationFilter{
			UserID: ref(u),
			Type:   models.NotificationPostMention,
			Post:   ref(post.ID),
		})
	}
	return d
}

// PostDeleted withdraws every notification that references the post
func (m *Mapper) PostDeleted(postID primitive.ObjectID) models.Delta {
	return models.Delta{DeleteMany: []models.NotificationFilter{{Post: ref(postID)}}}
}

func (m *Mapper) PostLiked(actor models.Actor, post *models.Post) models.Delta {
	if post.Owner == actor.ID {
		return models.Delta{}
	}
	return models.Delta{Create: []models.Notification{{
		UserID:   post.Owner,
		Type:     models.NotificationLike,
		ActionBy: actor.ID,
		Post:     ref(post.ID),
	}}}
}

func (m *Mapper) PostUnliked(actor models.Actor, post *models.Post) models.Delta {
	return models.Delta{DeleteOne: []models.NotificationFilter{{
		UserID:   ref(post.Owner),
		Type:     models.NotificationLike,
		ActionBy: ref(actor.ID),
		Post:     ref(post.ID),
	}}}
}

// CommentCreated notifies the post owner and the users mentioned in the comment
func (m *Mapper) CommentCreated(actor models.Actor, post *models.Post, comment *models.Comment, mentioned []primitive.ObjectID) models.Delta {
	var d models.Delta
	if post.Owner != actor.ID {
		d.Create = append(d.Create, models.Notification{
			UserID:   post.Owner,
			Type:     models.NotificationComment,
			ActionBy: actor.ID,
			Post:     ref(post.ID),
			Comment:  ref(comment.ID),
		})
	}
	d.Create = append(d.Create, m.commentMentions(actor, comment, mentioned)...)
	return d
}

func (m *Mapper) commentMentions(actor models.Actor, comment *models.Comment, users []primitive.ObjectID) []models.Notification {
	return mentionCreates(models.NotificationMention, actor, users, models.Notification{
		Post:    ref(comment.PostID),
		Comment: ref(comment.ID),
	})
}

// CommentEdited applies the mention diff of a comment body; reply mentions are untouched
func (m *Mapper) CommentEdited(actor models.Actor, comment *models.Comment, added, removed []primitive.ObjectID) models.Delta {
	d := models.Delta{Create: m.commentMentions(actor, comment, added)}
	for _, u := range removed {
		d.DeleteMany = append(d.DeleteMany, models.NotificationFilter{
			UserID:       ref(u),
			Type:         models.NotificationMention,
			Comment:      ref(comment.ID),
			WithoutReply: true,
		})
	}
	return d
}

// CommentDeleted withdraws every notification that references the comment,
// including mention and like notifications of its replies
func (m *Mapper) CommentDeleted(commentID primitive.ObjectID) models.Delta {
	return models.Delta{DeleteMany: []models.NotificationFilter{{Comment: ref(commentID)}}}
}

func (m *Mapper) CommentLiked(actor models.Actor, comment *models.Comment) models.Delta {
	if comment.User == actor.ID {
		return models.Delta{}
	}
	return models.Delta{Create: []models.Notification{{
		UserID:   comment.User,
		Type:     models.NotificationCommentLike,
		ActionBy: actor.ID,
		Post:     ref(comment.PostID),
		Comment:  ref(comment.ID),
	}}}
}

func (m *Mapper) CommentUnliked(actor models.Actor, comment *models.Comment) models.Delta {
	return models.Delta{DeleteOne: []models.NotificationFilter{{
		UserID:       ref(comment.User),
		Type:         models.NotificationCommentLike,
		ActionBy:     ref(actor.ID),
		Comment:      ref(comment.ID),
		WithoutReply: true,
	}}}
}

// ReplyAdded notifies the users mentioned in the reply
func (m *Mapper) ReplyAdded(actor models.Actor, comment *models.Comment, reply *models.Reply, mentioned []primitive.ObjectID) models.Delta {
	return models.Delta{Create: mentionCreates(models.NotificationMention, actor, mentioned, models.Notification{
		Post:      ref(comment.PostID),
		Comment:   ref(comment.ID),
		ReplyID:   ref(reply.ID),
		ReplyText: reply.Text,
	})}
}

// ReplyDeleted withdraws the like and mention notifications of one reply
func (m *Mapper) ReplyDeleted(commentID, replyID primitive.ObjectID) models.Delta {
	return models.Delta{DeleteMany: []models.NotificationFilter{{
		Comment: ref(commentID),
		ReplyID: ref(replyID),
	}}}
}

func (m *Mapper) ReplyLiked(actor models.Actor, comment *models.Comment, reply *models.Reply) models.Delta {
	if reply.Owner == actor.ID {
		return models.Delta{}
	}
	return models.Delta{Create: []models.Notification{{
		UserID:    reply.Owner,
		Type:      models.NotificationCommentLike,
		ActionBy:  actor.ID,
		Post:      ref(comment.PostID),
		Comment:   ref(comment.ID),
		ReplyID:   ref(reply.ID),
		ReplyText: reply.Text,
	}}}
}

func (m *Mapper) ReplyUnliked(actor models.Actor, comment *models.Comment, reply *models.Reply) models.Delta {
	return models.Delta{DeleteOne: []models.NotificationFilter{{
		UserID:   ref(reply.Owner),
		Type:     models.NotificationCommentLike,
		ActionBy: ref(actor.ID),
		Comment:  ref(comment.ID),
		ReplyID:  ref(reply.ID),
	}}}
}

func (m *Mapper) Followed(actor models.Actor, target primitive.ObjectID) models.Delta {
	if target == actor.ID {
		return models.Delta{}
	}
	return models.Delta{Create: []models.Notification{{
		UserID:   target,
		Type:     models.NotificationFollow,
		ActionBy: actor.ID,
	}}}
}

func (m *Mapper) Unfollowed(actor models.Actor, target primitive.ObjectID) models.Delta {
	return models.Delta{DeleteOne: []models.NotificationFilter{{
		UserID:   ref(target),
		Type:     models.NotificationFollow,
		ActionBy: ref(actor.ID),
	}}}
}
