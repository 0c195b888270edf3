package repositories

import (
	"context"
	"regexp"
	"time"

	"github.com/anonto42/instaverse/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserSet names one of the id sets kept on a user document
type UserSet string

const (
	SetFollower   UserSet = "follower"
	SetFollowing  UserSet = "following"
	SetBookmarks  UserSet = "bookmarks"
	SetLikedPosts UserSet = "likedPosts"
	SetSearchList UserSet = "searchList"
)

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	Username  string
	FullName  string
	Bio       string
	Portfolio string
	Avatar    *models.Avatar
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	// AddToSet and Pull report whether the set changed
	AddToSet(ctx context.Context, id primitive.ObjectID, set UserSet, value primitive.ObjectID) (bool, error)
	Pull(ctx context.Context, id primitive.ObjectID, set UserSet, value primitive.ObjectID) (bool, error)
	PullFromAll(ctx context.Context, set UserSet, value primitive.ObjectID) error
	ClearSet(ctx context.Context, id primitive.ObjectID, set UserSet) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) error
	SearchUsers(ctx context.Context, query string, exclude primitive.ObjectID, limit int64) ([]models.User, error)
	SuggestedUsers(ctx context.Context, exclude []primitive.ObjectID, limit int64) ([]models.User, error)
	GuestUsers(ctx context.Context) ([]models.User, error)
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique username and email indexes
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// CreateUser inserts a user, returning ErrDuplicate on a taken username or email
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	for _, set := range []*[]primitive.ObjectID{&user.Follower, &user.Following, &user.Bookmarks, &user.LikedPosts, &user.SearchList} {
		if *set == nil {
			*set = []primitive.ObjectID{}
		}
	}
	_, err := r.collection.InsertOne(ctx, user)
	return mapErr(err)
}

// GetUserByID retrieves a user by ID
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByUsername retrieves a user by exact username
func (r *MongoUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// GetUserByEmail retrieves a user by email
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetUsersByIDs retrieves the users with the given ids in one query
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
}

// GetUsersByUsernames resolves usernames to users; unknown names are skipped
func (r *MongoUserRepository) GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, bson.M{"username": bson.M{"$in": usernames}}, nil)
}

// AddToSet adds value to one of the user's id sets
func (r *MongoUserRepository) AddToSet(ctx context.Context, id primitive.ObjectID, set UserSet, value primitive.ObjectID) (bool, error) {
	return r.update(ctx, id, bson.M{"$addToSet": bson.M{string(set): value}})
}

// Pull removes value from one of the user's id sets
func (r *MongoUserRepository) Pull(ctx context.Context, id primitive.ObjectID, set UserSet, value primitive.ObjectID) (bool, error) {
	return r.update(ctx, id, bson.M{"$pull": bson.M{string(set): value}})
}

// PullFromAll removes value from the set on every user holding it
func (r *MongoUserRepository) PullFromAll(ctx context.Context, set UserSet, value primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{string(set): value}, bson.M{"$pull": bson.M{string(set): value}})
	return err
}

// ClearSet empties one of the user's id sets
func (r *MongoUserRepository) ClearSet(ctx context.Context, id primitive.ObjectID, set UserSet) error {
	_, err := r.update(ctx, id, bson.M{"$set": bson.M{string(set): []primitive.ObjectID{}}})
	return err
}

// UpdateProfile rewrites the editable profile fields
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) error {
	fields := bson.M{
		"username":  update.Username,
		"fullName":  update.FullName,
		"bio":       update.Bio,
		"portfolio": update.Portfolio,
		"updatedAt": time.Now(),
	}
	if update.Avatar != nil {
		fields["avatar"] = update.Avatar
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchUsers matches username or full name case-insensitively
func (r *MongoUserRepository) SearchUsers(ctx context.Context, query string, exclude primitive.ObjectID, limit int64) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"_id": bson.M{"$ne": exclude},
		"$or": bson.A{
			bson.M{"username": pattern},
			bson.M{"fullName": pattern},
		},
	}
	return r.find(ctx, filter, options.Find().SetLimit(limit))
}

// SuggestedUsers returns users outside the exclude list, newest accounts first
func (r *MongoUserRepository) SuggestedUsers(ctx context.Context, exclude []primitive.ObjectID, limit int64) ([]models.User, error) {
	filter := bson.M{"_id": bson.M{"$nin": exclude}, "guest": bson.M{"$ne": true}}
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, filter, findOptions)
}

// GuestUsers returns the demo accounts
func (r *MongoUserRepository) GuestUsers(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, bson.M{"guest": true}, nil)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	if opts == nil {
		opts = options.Find()
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepository) update(ctx context.Context, id primitive.ObjectID, update bson.M) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}
