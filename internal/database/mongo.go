package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/account-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names in the document store.
const (
	usersCollection  = "users"
	eventsCollection = "events"
)

// ConnectMongo opens a client and verifies the server is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureMongoIndexes creates the unique email index and the event timestamp index.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	_, err = db.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create events index: %w", err)
	}
	return nil
}

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"` // bcrypt hash
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d userDocument) toModel() models.User {
	return models.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoUserStore is the MongoDB-backed user directory.
type MongoUserStore struct {
	db   *mongo.Database
	coll *mongo.Collection
}

// NewMongoUserStore creates a user directory over the users collection of db.
func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{db: db, coll: db.Collection(usersCollection)}
}

// Create inserts a new user, assigning its ID and creation time.
func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.PasswordHash,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt
	return nil
}

// FindByID retrieves a user by the hex form of its ObjectID.
func (s *MongoUserStore) FindByID(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmail retrieves a user by email.
func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// List returns every user in natural order.
func (s *MongoUserStore) List(ctx context.Context) ([]models.User, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

// Update applies the non-nil fields of upd and returns the updated record.
func (s *MongoUserStore) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, ErrNotFound
	}

	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
	}
	if len(set) == 0 {
		return s.findOne(ctx, bson.M{"_id": oid})
	}

	var doc userDocument
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return models.User{}, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return doc.toModel(), nil
}

// Delete removes a user and returns the record as it was before removal.
func (s *MongoUserStore) Delete(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, ErrNotFound
	}
	var doc userDocument
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("delete user: %w", err)
	}
	return doc.toModel(), nil
}

// Ping checks the connection to the primary.
func (s *MongoUserStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}

type eventDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Type      string             `bson:"type"`
	Level     string             `bson:"level"`
	Message   string             `bson:"message"`
	UserID    *string            `bson:"userId,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoEventStore persists audit events in the events collection.
type MongoEventStore struct {
	coll *mongo.Collection
}

// NewMongoEventStore creates an event store over the events collection of db.
func NewMongoEventStore(db *mongo.Database) *MongoEventStore {
	return &MongoEventStore{coll: db.Collection(eventsCollection)}
}

// Insert stores event, filling in its ID and timestamp.
func (s *MongoEventStore) Insert(ctx context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	doc := eventDocument{
		ID:        primitive.NewObjectID(),
		Type:      event.Type,
		Level:     event.Level,
		Message:   event.Message,
		UserID:    event.UserID,
		CreatedAt: event.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	event.ID = doc.ID.Hex()
	return nil
}

// Recent returns up to limit events, newest first.
func (s *MongoEventStore) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, models.Event{
			ID:        d.ID.Hex(),
			Type:      d.Type,
			Level:     d.Level,
			Message:   d.Message,
			UserID:    d.UserID,
			CreatedAt: d.CreatedAt,
		})
	}
	return events, nil
}

// DeleteBefore removes events created before cutoff.
func (s *MongoEventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
