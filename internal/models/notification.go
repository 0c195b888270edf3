package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType enumerates what caused a notification
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationComment     NotificationType = "comment"
	NotificationFollow      NotificationType = "follow"
	NotificationCommentLike NotificationType = "commentLike"
	NotificationMention     NotificationType = "mention"
	NotificationPostMention NotificationType = "postMention"
)

// Notification represents a user notification stored in MongoDB.
// Only Read ever changes after creation.
type Notification struct {
	ID        primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID  `json:"userId" bson:"userId"`
	Type      NotificationType    `json:"type" bson:"type"`
	ActionBy  primitive.ObjectID  `json:"actionBy" bson:"actionBy"`
	Post      *primitive.ObjectID `json:"post,omitempty" bson:"post,omitempty"`
	Comment   *primitive.ObjectID `json:"comment,omitempty" bson:"comment,omitempty"`
	ReplyID   *primitive.ObjectID `json:"replyId,omitempty" bson:"replyId,omitempty"`
	ReplyText string              `json:"replyText,omitempty" bson:"replyText,omitempty"`
	Read      bool                `json:"read" bson:"read"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// Identity returns the filter selecting exactly the records that share n's
// (userId, type, actionBy, post, comment, replyId) tuple.
func (n *Notification) Identity() NotificationFilter {
	userID, actionBy := n.UserID, n.ActionBy
	return NotificationFilter{
		UserID:       &userID,
		Type:         n.Type,
		ActionBy:     &actionBy,
		Post:         n.Post,
		Comment:      n.Comment,
		ReplyID:      n.ReplyID,
		Exact:        true,
		WithoutReply: n.ReplyID == nil,
	}
}

// NotificationFilter selects notification records. Nil fields match anything
// unless Exact is set, in which case nil Post/Comment/ReplyID must be absent.
type NotificationFilter struct {
	UserID       *primitive.ObjectID `json:"userId,omitempty"`
	Type         NotificationType    `json:"type,omitempty"`
	ActionBy     *primitive.ObjectID `json:"actionBy,omitempty"`
	Post         *primitive.ObjectID `json:"post,omitempty"`
	Comment      *primitive.ObjectID `json:"comment,omitempty"`
	ReplyID      *primitive.ObjectID `json:"replyId,omitempty"`
	WithoutReply bool                `json:"withoutReply,omitempty"`
	Exact        bool                `json:"exact,omitempty"`
}

// Matches reports whether n is selected by f
func (f NotificationFilter) Matches(n *Notification) bool {
	if f.UserID != nil && *f.UserID != n.UserID {
		return false
	}
	if f.Type != "" && f.Type != n.Type {
		return false
	}
	if f.ActionBy != nil && *f.ActionBy != n.ActionBy {
		return false
	}
	if !matchRef(f.Post, n.Post, f.Exact) || !matchRef(f.Comment, n.Comment, f.Exact) {
		return false
	}
	if f.WithoutReply && n.ReplyID != nil {
		return false
	}
	return matchRef(f.ReplyID, n.ReplyID, f.Exact)
}

func matchRef(want, got *primitive.ObjectID, exact bool) bool {
	if want == nil {
		return !exact || got == nil
	}
	return got != nil && *got == *want
}

// PostPreview is the post projection embedded in a notification view
type PostPreview struct {
	ID  primitive.ObjectID `json:"_id"`
	URL string             `json:"url"`
}

// CommentPreview is the comment projection embedded in a notification view
type CommentPreview struct {
	ID   primitive.ObjectID `json:"_id"`
	Text string             `json:"text"`
}

// NotificationView is the single read projection of a notification
type NotificationView struct {
	ID        primitive.ObjectID  `json:"_id"`
	Type      NotificationType    `json:"type"`
	Read      bool                `json:"read"`
	ActionBy  UserPreview         `json:"actionBy"`
	Post      *PostPreview        `json:"post,omitempty"`
	Comment   *CommentPreview     `json:"comment,omitempty"`
	ReplyID   *primitive.ObjectID `json:"replyId,omitempty"`
	ReplyText string              `json:"replyText,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Delta is the set of ledger changes caused by one content mutation
type Delta struct {
	Create     []Notification       `json:"create,omitempty"`
	DeleteOne  []NotificationFilter `json:"deleteOne,omitempty"`
	DeleteMany []NotificationFilter `json:"deleteMany,omitempty"`
}

// Empty reports whether the delta changes nothing
func (d Delta) Empty() bool {
	return len(d.Create) == 0 && len(d.DeleteOne) == 0 && len(d.DeleteMany) == 0
}
