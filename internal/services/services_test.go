package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anonto42/instaverse/backend/internal/apperrors"
	"github.com/anonto42/instaverse/backend/internal/media"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"github.com/anonto42/instaverse/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	ctx      context.Context
	store    *testutil.Store
	pending  repositories.ReconcileRepository
	ledger   *NotificationService
	posts    *PostService
	comments *CommentService
	users    *UserService
	reader   *Reader
	recon    *Reconciler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zap.NewNop()
	store := testutil.NewStore()
	pending := testutil.NewReconcileRepository(t)
	files := media.NewLocalStore(t.TempDir(), "http://localhost:8080/uploads/")

	ledger := NewNotificationService(store.Notifications, store.Users, store.Posts, store.Comments, log)
	mapper := NewMapper(store.Users, ledger, pending, log)
	return &env{
		ctx:      context.Background(),
		store:    store,
		pending:  pending,
		ledger:   ledger,
		posts:    NewPostService(store.Posts, store.Comments, store.Users, mapper, files, log),
		comments: NewCommentService(store.Comments, store.Posts, store.Users, mapper, log),
		users:    NewUserService(store.Users, store.Posts, mapper, files, log),
		reader:   NewReader(store.Posts, store.Comments, store.Users, 2),
		recon:    NewReconciler(pending, ledger, log, 10),
	}
}

func (e *env) user(t *testing.T, username string) models.Actor {
	t.Helper()
	u := &models.User{Username: username, FullName: strings.ToUpper(username), Email: username + "@example.com"}
	require.NoError(t, e.store.Users.CreateUser(e.ctx, u))
	return models.Actor{ID: u.ID, Username: u.Username}
}

func (e *env) post(t *testing.T, owner models.Actor, caption string) *models.Post {
	t.Helper()
	post, err := e.posts.Upload(e.ctx, owner, media.File{Name: "shot.jpg", Size: 4, Body: strings.NewReader("jpeg")}, caption)
	require.NoError(t, err)
	return post
}

func (e *env) inbox(userID primitive.ObjectID) []models.Notification {
	return e.store.Notifications.Find(models.NotificationFilter{UserID: &userID})
}

func (e *env) inboxOf(userID primitive.ObjectID, typ models.NotificationType) []models.Notification {
	return e.store.Notifications.Find(models.NotificationFilter{UserID: &userID, Type: typ})
}

func TestPostLikeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	post := e.post(t, alice, "sunset")

	for i := 0; i < 2; i++ {
		_, err := e.posts.Like(e.ctx, bob, post.ID)
		require.NoError(t, err)
	}
	likes := e.inboxOf(alice.ID, models.NotificationLike)
	require.Len(t, likes, 1)
	assert.Equal(t, bob.ID, likes[0].ActionBy)
	assert.False(t, likes[0].Read)

	stored, err := e.store.Posts.GetPostByID(e.ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{bob.ID}, stored.Likes)

	for i := 0; i < 2; i++ {
		_, err := e.posts.Unlike(e.ctx, bob, post.ID)
		require.NoError(t, err)
	}
	assert.Empty(t, e.inbox(alice.ID))

	me, err := e.store.Users.GetUserByID(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, me.LikedPosts)
}

func TestSelfActionsDoNotNotify(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	post := e.post(t, alice, "me @alice")

	_, err := e.posts.Like(e.ctx, alice, post.ID)
	require.NoError(t, err)
	comment, err := e.comments.Create(e.ctx, alice, post.ID, "nice one @alice")
	require.NoError(t, err)
	_, err = e.comments.Like(e.ctx, alice, comment.ID)
	require.NoError(t, err)

	assert.Empty(t, e.store.Notifications.All())
}

func TestCommentNotifiesOwnerAndMentioned(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "beach")

	comment, err := e.comments.Create(e.ctx, carol, post.ID, "hello @bob")
	require.NoError(t, err)

	owner := e.inbox(alice.ID)
	require.Len(t, owner, 1)
	assert.Equal(t, models.NotificationComment, owner[0].Type)
	assert.Equal(t, carol.ID, owner[0].ActionBy)
	assert.Equal(t, comment.ID, *owner[0].Comment)

	mentioned := e.inbox(bob.ID)
	require.Len(t, mentioned, 1)
	assert.Equal(t, models.NotificationMention, mentioned[0].Type)
	assert.Equal(t, post.ID, *mentioned[0].Post)
	assert.Nil(t, mentioned[0].ReplyID)
}

func TestRepeatedAndUnknownMentions(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	post := e.post(t, alice, "hi @bob @bob @nobody")

	got := e.inboxOf(bob.ID, models.NotificationPostMention)
	require.Len(t, got, 1)
	assert.Equal(t, post.ID, *got[0].Post)
	assert.Len(t, e.store.Notifications.All(), 1)
}

func TestEditCaptionReconcilesMentions(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "with @bob")
	require.Len(t, e.inbox(bob.ID), 1)

	edited, err := e.posts.EditCaption(e.ctx, alice, post.ID, "with @carol now")
	require.NoError(t, err)
	assert.True(t, edited.Edit)

	assert.Empty(t, e.inbox(bob.ID))
	assert.Len(t, e.inboxOf(carol.ID, models.NotificationPostMention), 1)

	_, err = e.posts.EditCaption(e.ctx, bob, post.ID, "hijack")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestEditCommentKeepsReplyMentions(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "trip")

	comment, err := e.comments.Create(e.ctx, carol, post.ID, "cc @bob")
	require.NoError(t, err)
	_, err = e.comments.AddReply(e.ctx, carol, comment.ID, "again @bob")
	require.NoError(t, err)
	require.Len(t, e.inbox(bob.ID), 2)

	_, err = e.comments.Edit(e.ctx, carol, comment.ID, "never mind")
	require.NoError(t, err)

	left := e.inbox(bob.ID)
	require.Len(t, left, 1)
	assert.NotNil(t, left[0].ReplyID)

	_, err = e.comments.Edit(e.ctx, alice, comment.ID, "owner edit")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestFollowTwiceThenUnfollowTwice(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")

	require.NoError(t, e.users.Follow(e.ctx, alice, bob.ID))
	require.NoError(t, e.users.Follow(e.ctx, alice, bob.ID))
	assert.Len(t, e.inboxOf(bob.ID, models.NotificationFollow), 1)

	followers, err := e.users.Followers(e.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)
	assert.Equal(t, []primitive.ObjectID{bob.ID}, followers[0].Following)

	require.NoError(t, e.users.Unfollow(e.ctx, alice, bob.ID))
	require.NoError(t, e.users.Unfollow(e.ctx, alice, bob.ID))
	assert.Empty(t, e.inbox(bob.ID))

	following, err := e.users.Following(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, following)

	err = e.users.Follow(e.ctx, alice, alice.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	err = e.users.Follow(e.ctx, alice, primitive.NewObjectID())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRemoveFollowerLeavesNotifications(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	require.NoError(t, e.users.Follow(e.ctx, alice, bob.ID))

	require.NoError(t, e.users.RemoveFollower(e.ctx, bob, alice.ID))
	followers, err := e.users.Followers(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
	assert.Len(t, e.inbox(bob.ID), 1)
}

func TestDeletePostCascades(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "hey @carol")
	other := e.post(t, alice, "keep me")

	_, err := e.posts.Like(e.ctx, bob, post.ID)
	require.NoError(t, err)
	_, err = e.posts.Like(e.ctx, bob, other.ID)
	require.NoError(t, err)
	comment, err := e.comments.Create(e.ctx, bob, post.ID, "great @carol")
	require.NoError(t, err)
	_, err = e.comments.AddReply(e.ctx, carol, comment.ID, "thanks @bob")
	require.NoError(t, err)
	require.NoError(t, e.users.AddBookmark(e.ctx, bob, post.ID))

	err = e.posts.Delete(e.ctx, bob, post.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	require.NoError(t, e.posts.Delete(e.ctx, alice, post.ID))

	for _, n := range e.store.Notifications.All() {
		require.NotNil(t, n.Post)
		assert.Equal(t, other.ID, *n.Post)
	}
	assert.Len(t, e.store.Notifications.All(), 1)

	_, err = e.store.Comments.GetCommentByID(e.ctx, comment.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	me, err := e.store.Users.GetUserByID(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, me.Bookmarks)
	assert.Equal(t, []primitive.ObjectID{other.ID}, me.LikedPosts)

	_, err = e.reader.PostView(e.ctx, post.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDeleteCommentCascades(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "food")

	comment, err := e.comments.Create(e.ctx, bob, post.ID, "yum @carol")
	require.NoError(t, err)
	_, err = e.comments.Like(e.ctx, carol, comment.ID)
	require.NoError(t, err)
	reply, err := e.comments.AddReply(e.ctx, carol, comment.ID, "@bob agreed")
	require.NoError(t, err)
	_, err = e.comments.LikeReply(e.ctx, alice, comment.ID, reply.ID)
	require.NoError(t, err)
	_, err = e.posts.Like(e.ctx, carol, post.ID)
	require.NoError(t, err)

	err = e.comments.Delete(e.ctx, carol, comment.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	// the post owner may remove comments under their post
	require.NoError(t, e.comments.Delete(e.ctx, alice, comment.ID))

	all := e.store.Notifications.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.NotificationLike, all[0].Type)
}

func TestRepliesAreTrackedByID(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "city")
	comment, err := e.comments.Create(e.ctx, bob, post.ID, "view")
	require.NoError(t, err)

	first, err := e.comments.AddReply(e.ctx, carol, comment.ID, "same @bob")
	require.NoError(t, err)
	second, err := e.comments.AddReply(e.ctx, carol, comment.ID, "same @bob")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	_, err = e.comments.LikeReply(e.ctx, bob, comment.ID, first.ID)
	require.NoError(t, err)
	_, err = e.comments.LikeReply(e.ctx, bob, comment.ID, second.ID)
	require.NoError(t, err)
	assert.Len(t, e.inboxOf(carol.ID, models.NotificationCommentLike), 2)
	assert.Len(t, e.inboxOf(bob.ID, models.NotificationMention), 2)

	_, err = e.comments.UnlikeReply(e.ctx, bob, comment.ID, first.ID)
	require.NoError(t, err)
	likes := e.inboxOf(carol.ID, models.NotificationCommentLike)
	require.Len(t, likes, 1)
	assert.Equal(t, second.ID, *likes[0].ReplyID)

	err = e.comments.DeleteReply(e.ctx, alice, comment.ID, first.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	require.NoError(t, e.comments.DeleteReply(e.ctx, carol, comment.ID, first.ID))

	mentions := e.inboxOf(bob.ID, models.NotificationMention)
	require.Len(t, mentions, 1)
	assert.Equal(t, second.ID, *mentions[0].ReplyID)

	err = e.comments.DeleteReply(e.ctx, carol, comment.ID, first.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	users, err := e.comments.ReplyLikedUsers(e.ctx, comment.ID, second.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestCommentLikeIgnoresReplyLikes(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	post := e.post(t, alice, "lake")
	comment, err := e.comments.Create(e.ctx, bob, post.ID, "calm")
	require.NoError(t, err)
	reply, err := e.comments.AddReply(e.ctx, bob, comment.ID, "so calm")
	require.NoError(t, err)

	_, err = e.comments.Like(e.ctx, alice, comment.ID)
	require.NoError(t, err)
	_, err = e.comments.LikeReply(e.ctx, alice, comment.ID, reply.ID)
	require.NoError(t, err)
	require.Len(t, e.inboxOf(bob.ID, models.NotificationCommentLike), 2)

	_, err = e.comments.Unlike(e.ctx, alice, comment.ID)
	require.NoError(t, err)
	left := e.inboxOf(bob.ID, models.NotificationCommentLike)
	require.Len(t, left, 1)
	assert.Equal(t, reply.ID, *left[0].ReplyID)
}

func TestPartialFailureIsReconciled(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	post := e.post(t, alice, "night")

	e.store.Notifications.FailWrites = errors.New("mongo unavailable")
	comment, err := e.comments.Create(e.ctx, bob, post.ID, "stars")
	require.Error(t, err)
	assert.True(t, apperrors.IsPartial(err))
	require.NotNil(t, comment)

	_, err = e.store.Comments.GetCommentByID(e.ctx, comment.ID)
	require.NoError(t, err, "primary write stays committed")

	count, err := e.pending.CountPending(e.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	applied, err := e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
	rows, err := e.pending.Pending(e.ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Attempts)

	e.store.Notifications.FailWrites = nil
	applied, err = e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	got := e.inboxOf(alice.ID, models.NotificationComment)
	require.Len(t, got, 1)
	assert.Equal(t, comment.ID, *got[0].Comment)

	count, err = e.pending.CountPending(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListForUserEnrichesRecords(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "park")

	_, err := e.posts.Like(e.ctx, bob, post.ID)
	require.NoError(t, err)
	comment, err := e.comments.Create(e.ctx, carol, post.ID, "lovely")
	require.NoError(t, err)
	require.NoError(t, e.users.Follow(e.ctx, carol, alice.ID))

	views, err := e.ledger.ListForUser(e.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, models.NotificationFollow, views[0].Type)
	assert.Nil(t, views[0].Post)
	assert.Equal(t, "carol", views[0].ActionBy.Username)

	assert.Equal(t, models.NotificationComment, views[1].Type)
	require.NotNil(t, views[1].Comment)
	assert.Equal(t, "lovely", views[1].Comment.Text)
	assert.Equal(t, comment.ID, views[1].Comment.ID)

	assert.Equal(t, models.NotificationLike, views[2].Type)
	require.NotNil(t, views[2].Post)
	assert.Equal(t, post.URL, views[2].Post.URL)
	assert.Equal(t, "bob", views[2].ActionBy.Username)
}

func TestMarkAllReadAndDelete(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	require.NoError(t, e.users.Follow(e.ctx, bob, alice.ID))
	post := e.post(t, alice, "hill")
	_, err := e.posts.Like(e.ctx, bob, post.ID)
	require.NoError(t, err)

	unread, err := e.ledger.UnreadCount(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	n, err := e.ledger.MarkAllRead(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = e.ledger.MarkAllRead(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err = e.ledger.UnreadCount(e.ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	record := e.inbox(alice.ID)[0]
	err = e.ledger.Delete(e.ctx, bob.ID, record.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	require.NoError(t, e.ledger.Delete(e.ctx, alice.ID, record.ID))
	assert.Len(t, e.inbox(alice.ID), 1)
}

func TestReaderViews(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	first := e.post(t, alice, "one")
	e.post(t, bob, "two")
	third := e.post(t, alice, "three")

	older, err := e.comments.Create(e.ctx, bob, first.ID, "older")
	require.NoError(t, err)
	_, err = e.comments.Create(e.ctx, alice, first.ID, "newer")
	require.NoError(t, err)
	_, err = e.comments.AddReply(e.ctx, alice, older.ID, "r1")
	require.NoError(t, err)
	_, err = e.comments.AddReply(e.ctx, bob, older.ID, "r2")
	require.NoError(t, err)
	_, err = e.posts.Like(e.ctx, bob, first.ID)
	require.NoError(t, err)

	view, err := e.reader.PostView(e.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Owner.Username)
	require.Len(t, view.Likes, 1)
	assert.Equal(t, "bob", view.Likes[0].Username)
	require.Len(t, view.Comments, 2)
	assert.Equal(t, "newer", view.Comments[0].Text)
	require.Len(t, view.Comments[1].Replies, 2)
	assert.Equal(t, "r1", view.Comments[1].Replies[0].Text)
	assert.Equal(t, "bob", view.Comments[1].Replies[1].Owner.Username)

	feed, err := e.reader.Feed(e.ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, feed.TotalDocs)
	assert.Equal(t, 2, feed.TotalPages)
	assert.True(t, feed.HasNextPage)
	assert.False(t, feed.HasPrevPage)
	require.Len(t, feed.Docs, 2)
	assert.Equal(t, third.ID, feed.Docs[0].ID)
	assert.Nil(t, feed.Docs[0].Comments)

	last, err := e.reader.Feed(e.ctx, 2)
	require.NoError(t, err)
	require.Len(t, last.Docs, 1)
	require.NotNil(t, last.Docs[0].TotalComments)
	assert.Equal(t, 2, *last.Docs[0].TotalComments)
	assert.True(t, last.HasPrevPage)

	home, err := e.reader.Home(e.ctx, bob, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, home.TotalDocs)

	require.NoError(t, e.users.Follow(e.ctx, bob, alice.ID))
	home, err = e.reader.Home(e.ctx, bob, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, home.TotalDocs)

	_, err = e.reader.Comments(e.ctx, primitive.NewObjectID())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestBookmarksKeepSaveOrder(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	first := e.post(t, alice, "a")
	second := e.post(t, alice, "b")

	require.NoError(t, e.users.AddBookmark(e.ctx, bob, first.ID))
	require.NoError(t, e.users.AddBookmark(e.ctx, bob, second.ID))
	require.NoError(t, e.users.AddBookmark(e.ctx, bob, first.ID))

	saved, err := e.reader.Bookmarks(e.ctx, bob)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, first.ID, saved[0].ID)
	assert.Equal(t, second.ID, saved[1].ID)

	require.NoError(t, e.users.RemoveBookmark(e.ctx, bob, first.ID))
	require.NoError(t, e.users.RemoveBookmark(e.ctx, bob, first.ID))
	saved, err = e.reader.Bookmarks(e.ctx, bob)
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	err = e.users.AddBookmark(e.ctx, bob, primitive.NewObjectID())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSearchAndSuggestions(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	e.user(t, "alicia")

	found, err := e.users.Search(e.ctx, alice, "ALI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)

	_, err = e.users.Search(e.ctx, alice, "  ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	require.NoError(t, e.users.Follow(e.ctx, alice, bob.ID))
	suggested, err := e.users.Suggested(e.ctx, alice)
	require.NoError(t, err)
	require.Len(t, suggested, 1)
	assert.Equal(t, "alicia", suggested[0].Username)

	require.NoError(t, e.users.AddSearch(e.ctx, alice, bob.ID))
	list, err := e.users.SearchList(e.ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, e.users.ClearSearch(e.ctx, alice))
	list, err = e.users.SearchList(e.ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEditProfile(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	e.user(t, "bob")

	_, err := e.users.EditProfile(e.ctx, alice, models.UpdateProfileRequest{Username: "bob"}, nil)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	avatar := &media.File{Name: "me.png", Size: 3, Body: strings.NewReader("png")}
	user, err := e.users.EditProfile(e.ctx, alice, models.UpdateProfileRequest{Username: "alice_2", Bio: "hi"}, avatar)
	require.NoError(t, err)
	assert.Equal(t, "alice_2", user.Username)
	assert.Equal(t, "hi", user.Bio)
	assert.NotEmpty(t, user.Avatar.PublicID)

	avail, err := e.users.CheckAvailability(e.ctx, "alice", "bob@example.com")
	require.NoError(t, err)
	assert.True(t, *avail.Username)
	assert.False(t, *avail.Email)

	profile, err := e.users.ProfileByUsername(e.ctx, "alice_2")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, profile.ID)
	assert.Empty(t, profile.Posts)
}

func TestReplaySkipsLikeUndoneBeforeReconcile(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	post := e.post(t, alice, "harbor")

	e.store.Notifications.FailWrites = errors.New("mongo unavailable")
	_, err := e.posts.Like(e.ctx, bob, post.ID)
	require.True(t, apperrors.IsPartial(err))
	e.store.Notifications.FailWrites = nil

	_, err = e.posts.Unlike(e.ctx, bob, post.ID)
	require.NoError(t, err)

	applied, err := e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Empty(t, e.inboxOf(alice.ID, models.NotificationLike))

	count, err := e.pending.CountPending(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReplaySkipsDeletedComment(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	e.user(t, "carol")
	post := e.post(t, alice, "dunes")

	e.store.Notifications.FailWrites = errors.New("mongo unavailable")
	comment, err := e.comments.Create(e.ctx, bob, post.ID, "wow @carol")
	require.True(t, apperrors.IsPartial(err))
	e.store.Notifications.FailWrites = nil

	require.NoError(t, e.comments.Delete(e.ctx, bob, comment.ID))

	_, err = e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, e.store.Notifications.Find(models.NotificationFilter{Comment: &comment.ID}))
}

func TestReplayKeepsRelikedNotification(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	post := e.post(t, alice, "forest")

	_, err := e.posts.Like(e.ctx, bob, post.ID)
	require.NoError(t, err)

	e.store.Notifications.FailWrites = errors.New("mongo unavailable")
	_, err = e.posts.Unlike(e.ctx, bob, post.ID)
	require.True(t, apperrors.IsPartial(err))
	e.store.Notifications.FailWrites = nil

	_, err = e.posts.Like(e.ctx, bob, post.ID)
	require.NoError(t, err)

	_, err = e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Len(t, e.inboxOf(alice.ID, models.NotificationLike), 1)
}

func TestReplayDropsWithdrawnMention(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")

	e.store.Notifications.FailWrites = errors.New("mongo unavailable")
	post, err := e.posts.Upload(e.ctx, alice, media.File{Name: "shot.jpg", Size: 4, Body: strings.NewReader("jpeg")}, "with @bob")
	require.True(t, apperrors.IsPartial(err))
	e.store.Notifications.FailWrites = nil

	_, err = e.posts.EditCaption(e.ctx, alice, post.ID, "alone")
	require.NoError(t, err)

	_, err = e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, e.inboxOf(bob.ID, models.NotificationPostMention))
}

func TestLikeNotifiesWhenLikedPostsUpdateFails(t *testing.T) {
	e := newEnv(t)
	alice, bob, carol := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "carol")
	post := e.post(t, alice, "river")

	e.store.Users.FailSetUpdates = errors.New("mongo unavailable")
	_, err := e.posts.Like(e.ctx, bob, post.ID)
	require.True(t, apperrors.IsPartial(err))
	assert.Len(t, e.inboxOf(alice.ID, models.NotificationLike), 1)

	e.store.Notifications.FailWrites = errors.New("mongo unavailable")
	_, err = e.posts.Like(e.ctx, carol, post.ID)
	require.True(t, apperrors.IsPartial(err))
	e.store.Users.FailSetUpdates = nil
	e.store.Notifications.FailWrites = nil

	count, err := e.pending.CountPending(e.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = e.recon.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Len(t, e.inboxOf(alice.ID, models.NotificationLike), 2)
}
