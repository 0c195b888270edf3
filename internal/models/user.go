package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Avatar is the profile picture hosted on the media store
type Avatar struct {
	URL      string `json:"url" bson:"url"`
	PublicID string `json:"publicId" bson:"publicId"`
}

// User represents an account stored in MongoDB
type User struct {
	ID         primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Username   string               `json:"username" bson:"username"`
	FullName   string               `json:"fullName" bson:"fullName"`
	Email      string               `json:"email" bson:"email"`
	Password   string               `json:"-" bson:"password"` // bcrypt hash
	Avatar     Avatar               `json:"avatar" bson:"avatar"`
	Bio        string               `json:"bio" bson:"bio"`
	Portfolio  string               `json:"portfolio" bson:"portfolio"`
	Follower   []primitive.ObjectID `json:"follower" bson:"follower"`
	Following  []primitive.ObjectID `json:"following" bson:"following"`
	Bookmarks  []primitive.ObjectID `json:"bookmarks" bson:"bookmarks"`
	LikedPosts []primitive.ObjectID `json:"likedPosts" bson:"likedPosts"`
	SearchList []primitive.ObjectID `json:"searchList" bson:"searchList"`
	Guest      bool                 `json:"guest" bson:"guest"`
	CreatedAt  time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// UserPreview is the trimmed user projection embedded in read views
type UserPreview struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
	FullName string             `json:"fullName,omitempty"`
	Avatar   string             `json:"avatar"`
}

// UserCard is a preview plus the relation ids the client needs to render follow buttons
type UserCard struct {
	UserPreview
	Follower  []primitive.ObjectID `json:"follower"`
	Following []primitive.ObjectID `json:"following"`
}

// ToPreview converts a user into its preview projection
func (u *User) ToPreview() UserPreview {
	return UserPreview{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Avatar:   u.Avatar.URL,
	}
}

// ToCard converts a user into a card projection
func (u *User) ToCard() UserCard {
	return UserCard{
		UserPreview: u.ToPreview(),
		Follower:    nonNil(u.Follower),
		Following:   nonNil(u.Following),
	}
}

// IsFollowing reports whether u follows the given user
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

func nonNil(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}

// ProfileView is a public profile with the user's posts, newest first
type ProfileView struct {
	*User
	Posts []Post `json:"posts"`
}

// Actor is the authenticated identity attached to a request
type Actor struct {
	ID       primitive.ObjectID
	Username string
}

// SignUpRequest defines the request body for creating a local account
type SignUpRequest struct {
	FullName string `json:"fullName" validate:"required,min=1,max=80"`
	Username string `json:"username" validate:"required,min=2,max=30,nospaces"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LogInRequest accepts either an email or a username as identifier
type LogInRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// CheckAvailabilityRequest asks whether a username or email is still free
type CheckAvailabilityRequest struct {
	Username string `json:"username" validate:"omitempty,nospaces"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// UpdateProfileRequest defines the form fields of a profile edit
type UpdateProfileRequest struct {
	Username  string `json:"username" form:"username" validate:"required,min=2,max=30,nospaces"`
	FullName  string `json:"fullName" form:"fullName" validate:"max=80"`
	Bio       string `json:"bio" form:"bio" validate:"max=300"`
	Portfolio string `json:"portfolio" form:"portfolio" validate:"omitempty,url"`
	Avatar    string `json:"avatar" form:"avatar" validate:"omitempty,url"` // preset avatar url
}
