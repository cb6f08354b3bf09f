package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// DefaultCollection is the remote collection id for rocks.
const DefaultCollection = "rocks"

// MongoRemote keeps one document per rock, keyed by rock id.
type MongoRemote struct {
	coll *mongo.Collection
}

func NewMongoRemote(db *mongo.Database, collection string) *MongoRemote {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoRemote{coll: db.Collection(collection)}
}

func (m *MongoRemote) Set(ctx context.Context, id string, rock models.Rock) error {
	rock.ID = id
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": id}, rock, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set rock %s: %w", id, err)
	}
	return nil
}

func (m *MongoRemote) Delete(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete rock %s: %w", id, err)
	}
	return nil
}

func (m *MongoRemote) GetAll(ctx context.Context) ([]models.Rock, error) {
	cursor, err := m.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find rocks: %w", err)
	}
	defer cursor.Close(ctx)

	rocks := []models.Rock{}
	if err := cursor.All(ctx, &rocks); err != nil {
		return nil, fmt.Errorf("decode rocks: %w", err)
	}
	return rocks, nil
}

type changeEvent struct {
	OperationType string       `bson:"operationType"`
	FullDocument  *models.Rock `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

func (e changeEvent) change() (Change, bool) {
	switch e.OperationType {
	case "insert":
		if e.FullDocument == nil {
			return Change{}, false
		}
		return Change{Kind: ChangeAdded, ID: e.DocumentKey.ID, Rock: e.FullDocument}, true
	case "update", "replace":
		if e.FullDocument == nil {
			return Change{}, false
		}
		return Change{Kind: ChangeModified, ID: e.DocumentKey.ID, Rock: e.FullDocument}, true
	case "delete":
		return Change{Kind: ChangeRemoved, ID: e.DocumentKey.ID}, true
	default:
		return Change{}, false
	}
}

// Subscribe opens a change stream, then reads the collection, so nothing
// written between the two is missed. The first batch carries every rock as
// added; later batches carry one change each.
func (m *MongoRemote) Subscribe(ctx context.Context, onBatch func(Batch), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := m.coll.Watch(ctx, mongo.Pipeline{}, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch rocks: %w", err)
	}

	rocks, err := m.GetAll(ctx)
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, err
	}

	go func() {
		defer stream.Close(context.Background())

		initial := Batch{Rocks: rocks, Changes: make([]Change, 0, len(rocks))}
		for i := range rocks {
			r := rocks[i]
			initial.Changes = append(initial.Changes, Change{Kind: ChangeAdded, ID: r.ID, Rock: &r})
		}
		onBatch(initial)

		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				onError(fmt.Errorf("decode change: %w", err))
				continue
			}
			if ch, ok := ev.change(); ok {
				onBatch(Batch{Changes: []Change{ch}})
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			onError(fmt.Errorf("rock change stream: %w", err))
		}
	}()

	return cancel, nil
}
