package services

import (
	"context"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/mentions"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type PostService struct {
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	users    repositories.UserRepository
	mapper   *Mapper
	media    media.Store
	log      *zap.Logger
}

func NewPostService(
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	users repositories.UserRepository,
	mapper *Mapper,
	store media.Store,
	log *zap.Logger,
) *PostService {
	return &PostService{posts: posts, comments: comments, users: users, mapper: mapper, media: store, log: log}
}

// Upload stores the image, creates the post and notifies mentioned users
func (s *PostService) Upload(ctx context.Context, actor models.Actor, file media.File, caption string) (*models.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if file.Body == nil {
		return nil, apperrors.Validation("post image is required")
	}
	if err := media.CheckImage(file.Name, file.Size); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	mentioned, err := s.mapper.ResolveMentions(ctx, actor, mentions.Unique(mentions.Extract(caption)))
	if err != nil {
		return nil, err
	}

	asset, err := s.media.Upload(ctx, file, media.FolderPosts)
	if err != nil {
		return nil, apperrors.Internal("failed to upload image", err)
	}

	post := &models.Post{
		Owner:    actor.ID,
		URL:      asset.URL,
		PublicID: asset.ID,
		Caption:  caption,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		if delErr := s.media.Delete(ctx, asset.ID, media.FolderPosts); delErr != nil {
			s.log.Warn("failed to remove orphaned upload", zap.String("public_id", asset.ID), zap.Error(delErr))
		}
		return nil, apperrors.Internal("failed to create post", err)
	}
	s.log.Info("post created", zap.String("post_id", post.ID.Hex()), zap.String("owner", actor.ID.Hex()))

	return post, s.mapper.Apply(ctx, "post.create", s.mapper.PostCreated(actor, post, mentioned))
}

func (s *PostService) ownedPost(ctx context.Context, actor models.Actor, postID primitive.ObjectID) (*models.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	if post.Owner != actor.ID {
		return nil, apperrors.Forbidden("you can only change your own posts")
	}
	return post, nil
}

// EditCaption rewrites the caption and reconciles postMention notifications
func (s *PostService) EditCaption(ctx context.Context, actor models.Actor, postID primitive.ObjectID, caption string) (*models.Post, error) {
	caption, err := requireText(caption, "caption")
	if err != nil {
		return nil, err
	}
	post, err := s.ownedPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}

	addedNames, removedNames := mentions.Diff(post.Caption, caption)
	added, err := s.mapper.ResolveMentions(ctx, actor, addedNames)
	if err != nil {
		return nil, err
	}
	removed, err := s.mapper.ResolveMentions(ctx, actor, removedNames)
	if err != nil {
		return nil, err
	}

	if err := s.posts.UpdateCaption(ctx, post.ID, caption); err != nil {
		return nil, lookupErr(err, "post")
	}
	post.Caption = caption
	post.Edit = true

	return post, s.mapper.Apply(ctx, "post.edit", s.mapper.PostCaptionEdited(actor, post, added, removed))
}

// Delete removes the post with its comments, notifications, saved references and media
func (s *PostService) Delete(ctx context.Context, actor models.Actor, postID primitive.ObjectID) error {
	post, err := s.ownedPost(ctx, actor, postID)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, post.ID); err != nil {
		return lookupErr(err, "post")
	}

	var cascadeErr error
	if _, err := s.comments.DeleteByPost(ctx, post.ID); err != nil {
		cascadeErr = err
		s.log.Error("failed to delete post comments", zap.String("post_id", post.ID.Hex()), zap.Error(err))
	}
	for _, set := range []repositories.UserSet{repositories.SetBookmarks, repositories.SetLikedPosts} {
		if err := s.users.PullFromAll(ctx, set, post.ID); err != nil {
			cascadeErr = err
			s.log.Error("failed to unlink deleted post", zap.String("set", string(set)), zap.Error(err))
		}
	}
	if post.PublicID != "" {
		if err := s.media.Delete(ctx, post.PublicID, media.FolderPosts); err != nil {
			s.log.Warn("failed to delete post media", zap.String("public_id", post.PublicID), zap.Error(err))
		}
	}

	if err := s.mapper.Apply(ctx, "post.delete", s.mapper.PostDeleted(post.ID)); err != nil {
		return err
	}
	if cascadeErr != nil {
		return apperrors.PartialFailure("post deleted but cleanup failed", cascadeErr)
	}
	return nil
}

// Like adds the actor to the post likes and notifies the owner
func (s *PostService) Like(ctx context.Context, actor models.Actor, postID primitive.ObjectID) (*models.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	if _, err := s.posts.AddLike(ctx, post.ID, actor.ID); err != nil {
		return nil, lookupErr(err, "post")
	}
	notifyErr := s.mapper.Apply(ctx, "post.like", s.mapper.PostLiked(actor, post))
	if _, err := s.users.AddToSet(ctx, actor.ID, repositories.SetLikedPosts, post.ID); err != nil {
		return post, apperrors.PartialFailure("failed to update liked posts", err)
	}
	return post, notifyErr
}

// Unlike removes the actor from the post likes; unliking twice is a no-op
func (s *PostService) Unlike(ctx context.Context, actor models.Actor, postID primitive.ObjectID) (*models.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	if _, err := s.posts.RemoveLike(ctx, post.ID, actor.ID); err != nil {
		return nil, lookupErr(err, "post")
	}
	notifyErr := s.mapper.Apply(ctx, "post.unlike", s.mapper.PostUnliked(actor, post))
	if _, err := s.users.Pull(ctx, actor.ID, repositories.SetLikedPosts, post.ID); err != nil {
		return post, apperrors.PartialFailure("failed to update liked posts", err)
	}
	return post, notifyErr
}

// LikedUsers lists the previews of everyone who liked the post
func (s *PostService) LikedUsers(ctx context.Context, postID primitive.ObjectID) ([]models.UserPreview, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, lookupErr(err, "post")
	}
	users, err := s.users.GetUsersByIDs(ctx, post.Likes)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch users", err)
	}
	return previews(indexUsers(users), post.Likes), nil
}
