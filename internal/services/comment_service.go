package services

import (
	"context"
	"errors"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/mentions"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CommentService struct {
	comments repositories.CommentRepository
	posts    repositories.PostRepository
	users    repositories.UserRepository
	mapper   *Mapper
	log      *zap.Logger
}

func NewCommentService(
	comments repositories.CommentRepository,
	posts repositories.PostRepository,
	users repositories.UserRepository,
	mapper *Mapper,
	log *zap.Logger,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, mapper: mapper, log: log}
}

func (s *CommentService) load(ctx context.Context, commentID primitive.ObjectID) (*models.Comment, error) {
	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, lookupErr(err, "comment")
	}
	return comment, nil
}

func (s *CommentService) loadReply(ctx context.Context, commentID, replyID primitive.ObjectID) (*models.Comment, *models.Reply, error) {
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}
	reply, ok := comment.FindReply(replyID)
	if !ok {
		return nil, nil, apperrors.NotFound("reply not found")
	}
	return comment, reply, nil
}

// Create adds a comment under a post, notifying the owner and mentioned users
func (s *CommentService) Create(ctx context.Context, actor models.Actor, postID primitive.ObjectID, text string) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	text, err := requireText(text, "comment text")
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	mentioned, err := s.mapper.ResolveMentions(ctx, actor, mentions.Unique(mentions.Extract(text)))
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: post.ID, User: actor.ID, Text: text}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, apperrors.Internal("failed to create comment", err)
	}
	return comment, s.mapper.Apply(ctx, "comment.create", s.mapper.CommentCreated(actor, post, comment, mentioned))
}

// Edit rewrites the comment body; only the author may edit
func (s *CommentService) Edit(ctx context.Context, actor models.Actor, commentID primitive.ObjectID, text string) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	text, err := requireText(text, "comment text")
	if err != nil {
		return nil, err
	}
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.User != actor.ID {
		return nil, apperrors.Forbidden("you can only edit your own comments")
	}

	addedNames, removedNames := mentions.Diff(comment.Text, text)
	added, err := s.mapper.ResolveMentions(ctx, actor, addedNames)
	if err != nil {
		return nil, err
	}
	removed, err := s.mapper.ResolveMentions(ctx, actor, removedNames)
	if err != nil {
		return nil, err
	}

	if err := s.comments.UpdateText(ctx, comment.ID, text); err != nil {
		return nil, lookupErr(err, "comment")
	}
	comment.Text = text
	comment.Edit = true
	return comment, s.mapper.Apply(ctx, "comment.edit", s.mapper.CommentEdited(actor, comment, added, removed))
}

// Delete removes a comment; the author or the post owner may delete it
func (s *CommentService) Delete(ctx context.Context, actor models.Actor, commentID primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.User != actor.ID {
		post, err := s.posts.GetPostByID(ctx, comment.PostID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return apperrors.Internal("failed to fetch post", err)
		}
		if post == nil || post.Owner != actor.ID {
			return apperrors.Forbidden("you can only delete your own comments")
		}
	}

	if err := s.comments.DeleteComment(ctx, comment.ID); err != nil {
		return lookupErr(err, "comment")
	}
	return s.mapper.Apply(ctx, "comment.delete", s.mapper.CommentDeleted(comment.ID))
}

func (s *CommentService) Like(ctx context.Context, actor models.Actor, commentID primitive.ObjectID) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.comments.AddLike(ctx, comment.ID, actor.ID); err != nil {
		return nil, lookupErr(err, "comment")
	}
	return comment, s.mapper.Apply(ctx, "comment.like", s.mapper.CommentLiked(actor, comment))
}

func (s *CommentService) Unlike(ctx context.Context, actor models.Actor, commentID primitive.ObjectID) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.comments.RemoveLike(ctx, comment.ID, actor.ID); err != nil {
		return nil, lookupErr(err, "comment")
	}
	return comment, s.mapper.Apply(ctx, "comment.unlike", s.mapper.CommentUnliked(actor, comment))
}

// AddReply appends a reply and notifies the users it mentions
func (s *CommentService) AddReply(ctx context.Context, actor models.Actor, commentID primitive.ObjectID, text string) (*models.Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	text, err := requireText(text, "reply text")
	if err != nil {
		return nil, err
	}
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	mentioned, err := s.mapper.ResolveMentions(ctx, actor, mentions.Unique(mentions.Extract(text)))
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{ID: primitive.NewObjectID(), Owner: actor.ID, Text: text}
	if err := s.comments.AddReply(ctx, comment.ID, reply); err != nil {
		return nil, lookupErr(err, "comment")
	}
	return reply, s.mapper.Apply(ctx, "reply.create", s.mapper.ReplyAdded(actor, comment, reply, mentioned))
}

// DeleteReply removes a reply; the reply owner or the comment author may delete it
func (s *CommentService) DeleteReply(ctx context.Context, actor models.Actor, commentID, replyID primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	comment, reply, err := s.loadReply(ctx, commentID, replyID)
	if err != nil {
		return err
	}
	if reply.Owner != actor.ID && comment.User != actor.ID {
		return apperrors.Forbidden("you can only delete your own replies")
	}

	removed, err := s.comments.RemoveReply(ctx, comment.ID, reply.ID)
	if err != nil {
		return lookupErr(err, "comment")
	}
	if !removed {
		return apperrors.NotFound("reply not found")
	}
	return s.mapper.Apply(ctx, "reply.delete", s.mapper.ReplyDeleted(comment.ID, reply.ID))
}

func (s *CommentService) LikeReply(ctx context.Context, actor models.Actor, commentID, replyID primitive.ObjectID) (*models.Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	comment, reply, err := s.loadReply(ctx, commentID, replyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.comments.AddReplyLike(ctx, comment.ID, reply.ID, actor.ID); err != nil {
		return nil, lookupErr(err, "reply")
	}
	return reply, s.mapper.Apply(ctx, "reply.like", s.mapper.ReplyLiked(actor, comment, reply))
}

func (s *CommentService) UnlikeReply(ctx context.Context, actor models.Actor, commentID, replyID primitive.ObjectID) (*models.Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	comment, reply, err := s.loadReply(ctx, commentID, replyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.comments.RemoveReplyLike(ctx, comment.ID, reply.ID, actor.ID); err != nil {
		return nil, lookupErr(err, "reply")
	}
	return reply, s.mapper.Apply(ctx, "reply.unlike", s.mapper.ReplyUnliked(actor, comment, reply))
}

// LikedUsers lists who liked a comment
func (s *CommentService) LikedUsers(ctx context.Context, commentID primitive.ObjectID) ([]models.UserCard, error) {
	comment, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, comment.Likes)
}

// ReplyLikedUsers lists who liked one reply
func (s *CommentService) ReplyLikedUsers(ctx context.Context, commentID, replyID primitive.ObjectID) ([]models.UserCard, error) {
	_, reply, err := s.loadReply(ctx, commentID, replyID)
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, reply.Likes)
}

func (s *CommentService) cards(ctx context.Context, ids []primitive.ObjectID) ([]models.UserCard, error) {
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch users", err)
	}
	return cardsInOrder(indexUsers(users), ids), nil
}
