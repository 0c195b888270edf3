// Package testutil provides in-memory repositories for service and handler tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// clock hands out strictly increasing timestamps so ordering is deterministic
type clock struct {
	mu   sync.Mutex
	next time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next.IsZero() {
		c.next = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c.next = c.next.Add(time.Millisecond)
	return c.next
}

// Store bundles the in-memory repositories over one shared clock
type Store struct {
	Users         *Users
	Posts         *Posts
	Comments      *Comments
	Notifications *Notifications
}

func NewStore() *Store {
	c := &clock{}
	return &Store{
		Users:         &Users{clock: c, byID: map[primitive.ObjectID]*models.User{}},
		Posts:         &Posts{clock: c, byID: map[primitive.ObjectID]*models.Post{}},
		Comments:      &Comments{clock: c, byID: map[primitive.ObjectID]*models.Comment{}},
		Notifications: &Notifications{clock: c},
	}
}

func addID(set []primitive.ObjectID, id primitive.ObjectID) ([]primitive.ObjectID, bool) {
	for _, v := range set {
		if v == id {
			return set, false
		}
	}
	return append(set, id), true
}

func pullID(set []primitive.ObjectID, id primitive.ObjectID) ([]primitive.ObjectID, bool) {
	out := make([]primitive.ObjectID, 0, len(set))
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out, len(out) != len(set)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Users is an in-memory repositories.UserRepository
type Users struct {
	mu    sync.Mutex
	clock *clock
	byID  map[primitive.ObjectID]*models.User

	// FailSetUpdates makes AddToSet and Pull return that error
	FailSetUpdates error
}

var _ repositories.UserRepository = (*Users)(nil)

func (r *Users) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = r.clock.now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.byID[user.ID] = &cp
	return nil
}

func (r *Users) copyOf(u *models.User) *models.User {
	cp := *u
	cp.Follower = append([]primitive.ObjectID{}, u.Follower...)
	cp.Following = append([]primitive.ObjectID{}, u.Following...)
	cp.Bookmarks = append([]primitive.ObjectID{}, u.Bookmarks...)
	cp.LikedPosts = append([]primitive.ObjectID{}, u.LikedPosts...)
	cp.SearchList = append([]primitive.ObjectID{}, u.SearchList...)
	return &cp
}

func (r *Users) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r.copyOf(u), nil
}

func (r *Users) findBy(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if match(u) {
			return r.copyOf(u), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *Users) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Username == username })
}

func (r *Users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Email == email })
}

func (r *Users) list(match func(*models.User) bool) []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, u := range r.byID {
		if match(u) {
			out = append(out, *r.copyOf(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *Users) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	return r.list(func(u *models.User) bool { return containsID(ids, u.ID) }), nil
}

func (r *Users) GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	want := map[string]bool{}
	for _, n := range usernames {
		want[n] = true
	}
	return r.list(func(u *models.User) bool { return want[u.Username] }), nil
}

func (r *Users) setOf(u *models.User, set repositories.UserSet) *[]primitive.ObjectID {
	switch set {
	case repositories.SetFollower:
		return &u.Follower
	case repositories.SetFollowing:
		return &u.Following
	case repositories.SetBookmarks:
		return &u.Bookmarks
	case repositories.SetLikedPosts:
		return &u.LikedPosts
	default:
		return &u.SearchList
	}
}

func (r *Users) AddToSet(ctx context.Context, id primitive.ObjectID, set repositories.UserSet, value primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSetUpdates != nil {
		return false, r.FailSetUpdates
	}
	u, ok := r.byID[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	s := r.setOf(u, set)
	var changed bool
	*s, changed = addID(*s, value)
	return changed, nil
}

func (r *Users) Pull(ctx context.Context, id primitive.ObjectID, set repositories.UserSet, value primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSetUpdates != nil {
		return false, r.FailSetUpdates
	}
	u, ok := r.byID[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	s := r.setOf(u, set)
	var changed bool
	*s, changed = pullID(*s, value)
	return changed, nil
}

func (r *Users) PullFromAll(ctx context.Context, set repositories.UserSet, value primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		s := r.setOf(u, set)
		*s, _ = pullID(*s, value)
	}
	return nil
}

func (r *Users) ClearSet(ctx context.Context, id primitive.ObjectID, set repositories.UserSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	*r.setOf(u, set) = []primitive.ObjectID{}
	return nil
}

func (r *Users) UpdateProfile(ctx context.Context, id primitive.ObjectID, update repositories.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, other := range r.byID {
		if other.ID != id && other.Username == update.Username {
			return repositories.ErrDuplicate
		}
	}
	u.Username = update.Username
	u.FullName = update.FullName
	u.Bio = update.Bio
	u.Portfolio = update.Portfolio
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	u.UpdatedAt = r.clock.now()
	return nil
}

func (r *Users) SearchUsers(ctx context.Context, query string, exclude primitive.ObjectID, limit int64) ([]models.User, error) {
	q := strings.ToLower(query)
	out := r.list(func(u *models.User) bool {
		return u.ID != exclude &&
			(strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q))
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) SuggestedUsers(ctx context.Context, exclude []primitive.ObjectID, limit int64) ([]models.User, error) {
	out := r.list(func(u *models.User) bool { return !u.Guest && !containsID(exclude, u.ID) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) GuestUsers(ctx context.Context) ([]models.User, error) {
	return r.list(func(u *models.User) bool { return u.Guest }), nil
}

// Posts is an in-memory repositories.PostRepository
type Posts struct {
	mu    sync.Mutex
	clock *clock
	byID  map[primitive.ObjectID]*models.Post
}

var _ repositories.PostRepository = (*Posts)(nil)

func copyPost(p *models.Post) models.Post {
	cp := *p
	cp.Likes = append([]primitive.ObjectID{}, p.Likes...)
	return cp
}

func (r *Posts) CreatePost(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = r.clock.now()
	post.UpdatedAt = post.CreatedAt
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	cp := copyPost(post)
	r.byID[post.ID] = &cp
	return nil
}

func (r *Posts) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := copyPost(p)
	return &cp, nil
}

func (r *Posts) list(match func(*models.Post) bool) []models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Post{}
	for _, p := range r.byID {
		if match(p) {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *Posts) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	return r.list(func(p *models.Post) bool { return containsID(ids, p.ID) }), nil
}

func (r *Posts) GetPostsByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Post, error) {
	return r.list(func(p *models.Post) bool { return p.Owner == owner }), nil
}

func (r *Posts) ListPosts(ctx context.Context, owners []primitive.ObjectID, skip, limit int64) ([]models.Post, int64, error) {
	all := r.list(func(p *models.Post) bool { return owners == nil || containsID(owners, p.Owner) })
	total := int64(len(all))
	if skip >= total {
		return []models.Post{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (r *Posts) UpdateCaption(ctx context.Context, id primitive.ObjectID, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Caption = caption
	p.Edit = true
	p.UpdatedAt = r.clock.now()
	return nil
}

func (r *Posts) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Posts) AddLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	return r.toggle(postID, func(likes []primitive.ObjectID) ([]primitive.ObjectID, bool) { return addID(likes, userID) })
}

func (r *Posts) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	return r.toggle(postID, func(likes []primitive.ObjectID) ([]primitive.ObjectID, bool) { return pullID(likes, userID) })
}

func (r *Posts) toggle(id primitive.ObjectID, fn func([]primitive.ObjectID) ([]primitive.ObjectID, bool)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	var changed bool
	p.Likes, changed = fn(p.Likes)
	return changed, nil
}

// Comments is an in-memory repositories.CommentRepository
type Comments struct {
	mu    sync.Mutex
	clock *clock
	byID  map[primitive.ObjectID]*models.Comment
}

var _ repositories.CommentRepository = (*Comments)(nil)

func copyComment(c *models.Comment) models.Comment {
	cp := *c
	cp.Likes = append([]primitive.ObjectID{}, c.Likes...)
	cp.Replies = make([]models.Reply, len(c.Replies))
	for i, r := range c.Replies {
		r.Likes = append([]primitive.ObjectID{}, r.Likes...)
		cp.Replies[i] = r
	}
	return cp
}

func (r *Comments) CreateComment(ctx context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = r.clock.now()
	comment.UpdatedAt = comment.CreatedAt
	if comment.Likes == nil {
		comment.Likes = []primitive.ObjectID{}
	}
	if comment.Replies == nil {
		comment.Replies = []models.Reply{}
	}
	cp := copyComment(comment)
	r.byID[comment.ID] = &cp
	return nil
}

func (r *Comments) GetCommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := copyComment(c)
	return &cp, nil
}

func (r *Comments) list(match func(*models.Comment) bool) []models.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Comment{}
	for _, c := range r.byID {
		if match(c) {
			out = append(out, copyComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *Comments) GetCommentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error) {
	return r.list(func(c *models.Comment) bool { return containsID(ids, c.ID) }), nil
}

func (r *Comments) GetCommentsByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	return r.list(func(c *models.Comment) bool { return c.PostID == postID }), nil
}

func (r *Comments) CountByPosts(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	counts := map[primitive.ObjectID]int{}
	for _, c := range r.list(func(c *models.Comment) bool { return containsID(postIDs, c.PostID) }) {
		counts[c.PostID]++
	}
	return counts, nil
}

func (r *Comments) UpdateText(ctx context.Context, id primitive.ObjectID, text string) error {
	_, err := r.mutate(id, func(c *models.Comment) bool {
		c.Text = text
		c.Edit = true
		c.UpdatedAt = r.clock.now()
		return true
	})
	return err
}

func (r *Comments) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Comments) DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.byID {
		if c.PostID == postID {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func (r *Comments) AddLike(ctx context.Context, commentID, userID primitive.ObjectID) (bool, error) {
	return r.mutate(commentID, func(c *models.Comment) bool {
		var changed bool
		c.Likes, changed = addID(c.Likes, userID)
		return changed
	})
}

func (r *Comments) RemoveLike(ctx context.Context, commentID, userID primitive.ObjectID) (bool, error) {
	return r.mutate(commentID, func(c *models.Comment) bool {
		var changed bool
		c.Likes, changed = pullID(c.Likes, userID)
		return changed
	})
}

func (r *Comments) AddReply(ctx context.Context, commentID primitive.ObjectID, reply *models.Reply) error {
	_, err := r.mutate(commentID, func(c *models.Comment) bool {
		if reply.ID.IsZero() {
			reply.ID = primitive.NewObjectID()
		}
		reply.CreatedAt = r.clock.now()
		reply.UpdatedAt = reply.CreatedAt
		if reply.Likes == nil {
			reply.Likes = []primitive.ObjectID{}
		}
		c.Replies = append(c.Replies, *reply)
		return true
	})
	return err
}

func (r *Comments) RemoveReply(ctx context.Context, commentID, replyID primitive.ObjectID) (bool, error) {
	return r.mutate(commentID, func(c *models.Comment) bool {
		for i := range c.Replies {
			if c.Replies[i].ID == replyID {
				c.Replies = append(c.Replies[:i], c.Replies[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (r *Comments) replyLike(commentID, replyID primitive.ObjectID, fn func([]primitive.ObjectID) ([]primitive.ObjectID, bool)) (bool, error) {
	found := false
	changed, err := r.mutate(commentID, func(c *models.Comment) bool {
		reply, ok := c.FindReply(replyID)
		if !ok {
			return false
		}
		found = true
		var changed bool
		reply.Likes, changed = fn(reply.Likes)
		return changed
	})
	if err == nil && !found {
		return false, repositories.ErrNotFound
	}
	return changed, err
}

func (r *Comments) AddReplyLike(ctx context.Context, commentID, replyID, userID primitive.ObjectID) (bool, error) {
	return r.replyLike(commentID, replyID, func(l []primitive.ObjectID) ([]primitive.ObjectID, bool) { return addID(l, userID) })
}

func (r *Comments) RemoveReplyLike(ctx context.Context, commentID, replyID, userID primitive.ObjectID) (bool, error) {
	return r.replyLike(commentID, replyID, func(l []primitive.ObjectID) ([]primitive.ObjectID, bool) { return pullID(l, userID) })
}

func (r *Comments) mutate(id primitive.ObjectID, fn func(*models.Comment) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	return fn(c), nil
}

// Notifications is an in-memory repositories.NotificationRepository.
// Setting FailWrites makes every write return that error.
type Notifications struct {
	mu         sync.Mutex
	clock      *clock
	records    []models.Notification
	FailWrites error
}

var _ repositories.NotificationRepository = (*Notifications)(nil)

func (r *Notifications) Upsert(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return r.FailWrites
	}
	identity := n.Identity()
	for i := range r.records {
		if identity.Matches(&r.records[i]) {
			return nil
		}
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = r.clock.now()
	n.UpdatedAt = n.CreatedAt
	n.Read = false
	r.records = append(r.records, *n)
	return nil
}

func (r *Notifications) remove(match func(*models.Notification) bool, max int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return 0, r.FailWrites
	}
	kept := r.records[:0]
	var n int64
	for i := range r.records {
		if (max < 0 || n < int64(max)) && match(&r.records[i]) {
			n++
			continue
		}
		kept = append(kept, r.records[i])
	}
	r.records = kept
	return n, nil
}

func (r *Notifications) DeleteOne(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	return r.remove(filter.Matches, 1)
}

func (r *Notifications) DeleteMany(ctx context.Context, filter models.NotificationFilter) (int64, error) {
	return r.remove(filter.Matches, -1)
}

func (r *Notifications) DeleteByID(ctx context.Context, userID, id primitive.ObjectID) (int64, error) {
	return r.remove(func(n *models.Notification) bool { return n.ID == id && n.UserID == userID }, 1)
}

func (r *Notifications) GetByRecipientID(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	out := r.Find(models.NotificationFilter{UserID: &userID})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Notifications) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	for _, rec := range r.Find(models.NotificationFilter{UserID: &userID}) {
		if !rec.Read {
			n++
		}
	}
	return n, nil
}

func (r *Notifications) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return 0, r.FailWrites
	}
	var n int64
	for i := range r.records {
		if r.records[i].UserID == userID && !r.records[i].Read {
			r.records[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *Notifications) GetByFilter(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	return r.Find(filter), nil
}

// Find returns copies of the records matching filter
func (r *Notifications) Find(filter models.NotificationFilter) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for i := range r.records {
		if filter.Matches(&r.records[i]) {
			out = append(out, r.records[i])
		}
	}
	return out
}

// All returns every stored record
func (r *Notifications) All() []models.Notification {
	return r.Find(models.NotificationFilter{})
}
