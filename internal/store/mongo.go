package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/interviewdeck/clip-recorder/internal/config"
)

const (
	clipsCollection = "videos"
	usersCollection = "users"

	connectTimeout = 10 * time.Second
)

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ ClipStore = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, cfg config.Store) (*MongoStore, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "mongo ping")
	}

	log.WithField("database", cfg.Database).Info("connected to mongodb")

	return &MongoStore{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

func (s *MongoStore) clips() *mongo.Collection {
	return s.db.Collection(clipsCollection)
}

func (s *MongoStore) users() *mongo.Collection {
	return s.db.Collection(usersCollection)
}

// SaveClip inserts rec with a store-assigned timestamp and returns the
// new document id.
func (s *MongoStore) SaveClip(ctx context.Context, rec *ClipRecord) (string, error) {
	rec.CreatedAt = time.Now().UTC()

	res, err := s.clips().InsertOne(ctx, rec)
	if err != nil {
		return "", errors.Wrap(err, "insert clip")
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted id type")
	}
	rec.ID = id
	return id.Hex(), nil
}

func (s *MongoStore) GetClip(ctx context.Context, id string) (*ClipRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}

	var rec ClipRecord
	err = s.clips().FindOne(ctx, bson.M{"_id": oid}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find clip")
	}
	return &rec, nil
}

func (s *MongoStore) DeleteClip(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Wrap(ErrNotFound, err.Error())
	}

	res, err := s.clips().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "delete clip")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListClips(ctx context.Context) ([]ClipRecord, error) {
	cur, err := s.clips().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list clips")
	}
	defer cur.Close(ctx)

	var out []ClipRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode clips")
	}
	return out, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]UserRecord, error) {
	cur, err := s.users().Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer cur.Close(ctx)

	var out []UserRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return out, nil
}

// WatchClips tails the clips change stream until ctx is done. Each
// event is delivered on the caller's goroutine.
func (s *MongoStore) WatchClips(ctx context.Context, onChange func(ClipChange)) error {
	stream, err := s.clips().Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return errors.Wrap(err, "watch clips")
	}
	defer stream.Close(ctx)

	for stream.Next(ctx) {
		var ev struct {
			OperationType string      `bson:"operationType"`
			FullDocument  *ClipRecord `bson:"fullDocument"`
			DocumentKey   struct {
				ID primitive.ObjectID `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&ev); err != nil {
			log.Warnf("undecodable clip change event: %s", err)
			continue
		}
		onChange(ClipChange{
			Kind:  changeKind(ev.OperationType),
			DocID: ev.DocumentKey.ID.Hex(),
			Clip:  ev.FullDocument,
		})
	}
	return stream.Err()
}

func (s *MongoStore) WatchUsers(ctx context.Context, onChange func(UserChange)) error {
	stream, err := s.users().Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return errors.Wrap(err, "watch users")
	}
	defer stream.Close(ctx)

	for stream.Next(ctx) {
		var ev struct {
			OperationType string      `bson:"operationType"`
			FullDocument  *UserRecord `bson:"fullDocument"`
			DocumentKey   struct {
				ID primitive.ObjectID `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&ev); err != nil {
			log.Warnf("undecodable user change event: %s", err)
			continue
		}
		onChange(UserChange{
			Kind:  changeKind(ev.OperationType),
			DocID: ev.DocumentKey.ID.Hex(),
			User:  ev.FullDocument,
		})
	}
	return stream.Err()
}

func changeKind(op string) ChangeKind {
	switch op {
	case "insert":
		return ChangeInsert
	case "delete":
		return ChangeDelete
	default:
		return ChangeReplace
	}
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
