package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"batterystock/internal/core/changefeed"
	"batterystock/pkg/logger"
)

var _ changefeed.Feed = (*Feed)(nil)

// Feed implements changefeed.Feed with change streams.
//
// The stream is opened before the snapshot is read, so no change committed
// around the snapshot is lost. Such a change may be delivered twice (in
// the snapshot and again as an event); watchers tolerate duplicates.
type Feed struct {
	db  *mongo.Database
	log *logger.Logger
}

// NewFeed creates a change stream feed over c.
func NewFeed(c *Client, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{db: c.database, log: log.WithComponent("mongodb.feed")}
}

// changeEvent is the part of a change stream document the feed reads.
type changeEvent struct {
	OperationType string   `bson:"operationType"`
	DocumentKey   bson.Raw `bson:"documentKey"`
	FullDocument  bson.Raw `bson:"fullDocument"`
}

// Watch implements changefeed.Feed.
func (f *Feed) Watch(ctx context.Context, coll changefeed.Collection, handler changefeed.Handler) error {
	c := f.db.Collection(string(coll))

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}}}}},
	}
	stream, err := c.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return fmt.Errorf("open change stream on %s: %w", coll, err)
	}
	defer stream.Close(context.Background())

	initial, err := f.snapshot(ctx, c, coll)
	if err != nil {
		return err
	}
	handler(ctx, changefeed.Batch{Initial: true, Events: initial})
	f.log.Debugw("change stream opened", "collection", string(coll), "snapshot", len(initial))

	var pending []changefeed.Event
	for stream.Next(ctx) {
		var raw changeEvent
		if err := stream.Decode(&raw); err != nil {
			return fmt.Errorf("decode change on %s: %w", coll, err)
		}
		ev, err := toEvent(coll, raw)
		if err != nil {
			return err
		}
		pending = append(pending, ev)
		if stream.RemainingBatchLength() == 0 {
			handler(ctx, changefeed.Batch{Events: pending})
			pending = nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("change stream on %s: %w", coll, err)
	}
	return fmt.Errorf("change stream on %s closed", coll)
}

func (f *Feed) snapshot(ctx context.Context, c *mongo.Collection, coll changefeed.Collection) ([]changefeed.Event, error) {
	if !coll.Snapshotted() {
		return nil, nil
	}
	cursor, err := c.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", coll, err)
	}
	defer cursor.Close(ctx)

	events := make([]changefeed.Event, 0)
	for cursor.Next(ctx) {
		doc := bson.Raw(append([]byte(nil), cursor.Current...))
		id, err := documentID(doc)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", coll, err)
		}
		events = append(events, rawEvent(changefeed.Added, coll, id, doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", coll, err)
	}
	return events, nil
}

// toEvent maps a change stream document to a feed event. Updates whose
// document was deleted before the lookup carry no body.
func toEvent(coll changefeed.Collection, raw changeEvent) (changefeed.Event, error) {
	id, err := documentID(raw.DocumentKey)
	if err != nil {
		return changefeed.Event{}, fmt.Errorf("change on %s: %w", coll, err)
	}

	var kind changefeed.Kind
	switch raw.OperationType {
	case "insert":
		kind = changefeed.Added
	case "update", "replace":
		kind = changefeed.Modified
	case "delete":
		return changefeed.NewEvent(changefeed.Removed, coll, id, nil), nil
	default:
		return changefeed.Event{}, fmt.Errorf("unexpected %q change on %s", raw.OperationType, coll)
	}
	if len(raw.FullDocument) == 0 {
		return changefeed.NewEvent(kind, coll, id, nil), nil
	}
	return rawEvent(kind, coll, id, raw.FullDocument), nil
}

func rawEvent(kind changefeed.Kind, coll changefeed.Collection, id string, doc bson.Raw) changefeed.Event {
	return changefeed.NewEvent(kind, coll, id, func(v any) error {
		return bson.UnmarshalWithRegistry(Registry(), doc, v)
	})
}

func documentID(doc bson.Raw) (string, error) {
	val, err := doc.LookupErr("_id")
	if err != nil {
		return "", fmt.Errorf("document has no _id: %w", err)
	}
	id, ok := val.StringValueOK()
	if !ok {
		return "", fmt.Errorf("document _id is %s, want string", val.Type)
	}
	return id, nil
}
