package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	suggestedLimit = 5
	searchLimit    = 20
)

type UserService struct {
	users  repositories.UserRepository
	posts  repositories.PostRepository
	mapper *Mapper
	media  media.Store
	log    *zap.Logger
}

func NewUserService(users repositories.UserRepository, posts repositories.PostRepository, mapper *Mapper, store media.Store, log *zap.Logger) *UserService {
	return &UserService{users: users, posts: posts, mapper: mapper, media: store, log: log}
}

func (s *UserService) load(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	return user, nil
}

func (s *UserService) relationTarget(ctx context.Context, actor models.Actor, target primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if target == actor.ID {
		return apperrors.Validation("you cannot follow yourself")
	}
	_, err := s.load(ctx, target)
	return err
}

// Follow links actor -> target on both documents and notifies the target
func (s *UserService) Follow(ctx context.Context, actor models.Actor, target primitive.ObjectID) error {
	if err := s.relationTarget(ctx, actor, target); err != nil {
		return err
	}
	if _, err := s.users.AddToSet(ctx, actor.ID, repositories.SetFollowing, target); err != nil {
		return lookupErr(err, "user")
	}
	if _, err := s.users.AddToSet(ctx, target, repositories.SetFollower, actor.ID); err != nil {
		return apperrors.PartialFailure("failed to update follower list", err)
	}
	return s.mapper.Apply(ctx, "user.follow", s.mapper.Followed(actor, target))
}

// Unfollow removes the link; unfollowing someone you do not follow is a no-op
func (s *UserService) Unfollow(ctx context.Context, actor models.Actor, target primitive.ObjectID) error {
	if err := s.relationTarget(ctx, actor, target); err != nil {
		return err
	}
	if _, err := s.users.Pull(ctx, actor.ID, repositories.SetFollowing, target); err != nil {
		return lookupErr(err, "user")
	}
	if _, err := s.users.Pull(ctx, target, repositories.SetFollower, actor.ID); err != nil {
		return apperrors.PartialFailure("failed to update follower list", err)
	}
	return s.mapper.Apply(ctx, "user.unfollow", s.mapper.Unfollowed(actor, target))
}

// RemoveFollower drops follower from the actor's followers without notifying anyone
func (s *UserService) RemoveFollower(ctx context.Context, actor models.Actor, follower primitive.ObjectID) error {
	if err := s.relationTarget(ctx, actor, follower); err != nil {
		return err
	}
	if _, err := s.users.Pull(ctx, actor.ID, repositories.SetFollower, follower); err != nil {
		return lookupErr(err, "user")
	}
	if _, err := s.users.Pull(ctx, follower, repositories.SetFollowing, actor.ID); err != nil {
		return apperrors.PartialFailure("failed to update following list", err)
	}
	return nil
}

func (s *UserService) cards(ctx context.Context, ids []primitive.ObjectID) ([]models.UserCard, error) {
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch users", err)
	}
	return cardsInOrder(indexUsers(users), ids), nil
}

func (s *UserService) Followers(ctx context.Context, userID primitive.ObjectID) ([]models.UserCard, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, user.Follower)
}

func (s *UserService) Following(ctx context.Context, userID primitive.ObjectID) ([]models.UserCard, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, user.Following)
}

func (s *UserService) postExists(ctx context.Context, postID primitive.ObjectID) error {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return lookupErr(err, "post")
	}
	return nil
}

func (s *UserService) AddBookmark(ctx context.Context, actor models.Actor, postID primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.postExists(ctx, postID); err != nil {
		return err
	}
	if _, err := s.users.AddToSet(ctx, actor.ID, repositories.SetBookmarks, postID); err != nil {
		return lookupErr(err, "user")
	}
	return nil
}

// RemoveBookmark is a no-op when the post was not saved
func (s *UserService) RemoveBookmark(ctx context.Context, actor models.Actor, postID primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if _, err := s.users.Pull(ctx, actor.ID, repositories.SetBookmarks, postID); err != nil {
		return lookupErr(err, "user")
	}
	return nil
}

// SearchList returns the actor's recent searches in the order they were added
func (s *UserService) SearchList(ctx context.Context, actor models.Actor) ([]models.UserCard, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, user.SearchList)
}

func (s *UserService) AddSearch(ctx context.Context, actor models.Actor, userID primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if _, err := s.users.AddToSet(ctx, actor.ID, repositories.SetSearchList, userID); err != nil {
		return lookupErr(err, "user")
	}
	return nil
}

func (s *UserService) RemoveSearch(ctx context.Context, actor models.Actor, userID primitive.ObjectID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if _, err := s.users.Pull(ctx, actor.ID, repositories.SetSearchList, userID); err != nil {
		return lookupErr(err, "user")
	}
	return nil
}

func (s *UserService) ClearSearch(ctx context.Context, actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.users.ClearSet(ctx, actor.ID, repositories.SetSearchList); err != nil {
		return lookupErr(err, "user")
	}
	return nil
}

// Search matches usernames and full names case-insensitively, never returning the actor
func (s *UserService) Search(ctx context.Context, actor models.Actor, query string) ([]models.UserCard, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("search query is required")
	}
	users, err := s.users.SearchUsers(ctx, query, actor.ID, searchLimit)
	if err != nil {
		return nil, apperrors.Internal("failed to search users", err)
	}
	out := make([]models.UserCard, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCard())
	}
	return out, nil
}

// Suggested returns up to five users the actor does not follow yet
func (s *UserService) Suggested(ctx context.Context, actor models.Actor) ([]models.UserCard, error) {
	me, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	exclude := append([]primitive.ObjectID{me.ID}, me.Following...)
	users, err := s.users.SuggestedUsers(ctx, exclude, suggestedLimit)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch suggested users", err)
	}
	out := make([]models.UserCard, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCard())
	}
	return out, nil
}

// Guests lists the demo accounts offered on the login screen
func (s *UserService) Guests(ctx context.Context) ([]models.UserPreview, error) {
	users, err := s.users.GuestUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch guest users", err)
	}
	out := make([]models.UserPreview, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToPreview())
	}
	return out, nil
}

func (s *UserService) profile(ctx context.Context, user *models.User) (*models.ProfileView, error) {
	posts, err := s.posts.GetPostsByOwner(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch posts", err)
	}
	return &models.ProfileView{User: user, Posts: posts}, nil
}

func (s *UserService) ProfileByID(ctx context.Context, id primitive.ObjectID) (*models.ProfileView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, user)
}

func (s *UserService) ProfileByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	return s.profile(ctx, user)
}

// EditProfile updates the profile. A new avatar file replaces the stored one,
// otherwise a preset avatar url may be chosen.
func (s *UserService) EditProfile(ctx context.Context, actor models.Actor, req models.UpdateProfileRequest, avatar *media.File) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.ContainsAny(req.Username, " \t\n") {
		return nil, apperrors.Validation("username must not contain spaces")
	}
	me, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if req.Username != me.Username {
		if taken, err := s.users.GetUserByUsername(ctx, req.Username); err == nil && taken.ID != me.ID {
			return nil, apperrors.Conflict("username already taken")
		} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Internal("failed to check username", err)
		}
	}

	update := repositories.ProfileUpdate{
		Username:  req.Username,
		FullName:  req.FullName,
		Bio:       req.Bio,
		Portfolio: req.Portfolio,
	}
	switch {
	case avatar != nil:
		if err := media.CheckImage(avatar.Name, avatar.Size); err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		asset, err := s.media.Upload(ctx, *avatar, media.FolderAvatars)
		if err != nil {
			return nil, apperrors.Internal("failed to upload avatar", err)
		}
		update.Avatar = &models.Avatar{URL: asset.URL, PublicID: asset.ID}
	case req.Avatar != "":
		update.Avatar = &models.Avatar{URL: req.Avatar}
	}

	if err := s.users.UpdateProfile(ctx, me.ID, update); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Conflict("username already taken")
		}
		return nil, lookupErr(err, "user")
	}

	if update.Avatar != nil && me.Avatar.PublicID != "" && me.Avatar.PublicID != update.Avatar.PublicID {
		if err := s.media.Delete(ctx, me.Avatar.PublicID, media.FolderAvatars); err != nil {
			s.log.Warn("failed to delete old avatar", zap.String("public_id", me.Avatar.PublicID), zap.Error(err))
		}
	}
	return s.load(ctx, me.ID)
}

// Availability reports whether a username and an email are still free
type Availability struct {
	Username *bool `json:"usernameAvailable,omitempty"`
	Email    *bool `json:"emailAvailable,omitempty"`
}

func (s *UserService) CheckAvailability(ctx context.Context, username, email string) (*Availability, error) {
	if username == "" && email == "" {
		return nil, apperrors.Validation("username or email is required")
	}
	free := func(lookup func(context.Context, string) (*models.User, error), value string) (*bool, error) {
		if value == "" {
			return nil, nil
		}
		_, err := lookup(ctx, value)
		if errors.Is(err, repositories.ErrNotFound) {
			ok := true
			return &ok, nil
		}
		if err != nil {
			return nil, apperrors.Internal("failed to check availability", err)
		}
		ok := false
		return &ok, nil
	}

	var out Availability
	var err error
	if out.Username, err = free(s.users.GetUserByUsername, username); err != nil {
		return nil, err
	}
	if out.Email, err = free(s.users.GetUserByEmail, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &out, nil
}
