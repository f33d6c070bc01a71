package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"batterystock/internal/core/apperror"
)

// Collection names.
const (
	collWarehouses = "warehouses"
	collProducts   = "products"
	collVariants   = "product_variants"
	collSuppliers  = "suppliers"
	collMovements  = "stock_movements"
	collEntries    = "stock_entries"
	collBills      = "bills"
	collTransfers  = "transfers"
	collInvoices   = "invoices"
)

// collection is the typed view of one MongoDB collection.
type collection[T any] struct {
	coll   *mongo.Collection
	entity string
}

func newCollection[T any](db *mongo.Database, name, entity string) collection[T] {
	return collection[T]{coll: db.Collection(name), entity: entity}
}

func (c collection[T]) insert(ctx context.Context, id string, doc *T) error {
	if id == "" {
		return apperror.NewValidation(c.entity + " id is required")
	}
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.NewDuplicate(c.entity, "id", id)
		}
		return fmt.Errorf("insert %s: %w", c.entity, err)
	}
	return nil
}

func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	var doc T
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NewNotFound(c.entity, id)
		}
		return nil, fmt.Errorf("find %s: %w", c.entity, err)
	}
	return &doc, nil
}

func (c collection[T]) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.entity, err)
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.entity, err)
	}
	return out, nil
}

// updateVersioned applies update to the document only if its stored
// version equals expectedVersion, and increments the version.
func (c collection[T]) updateVersioned(ctx context.Context, id string, expectedVersion int64, set bson.M) error {
	update := bson.M{"$inc": bson.M{"version": 1}}
	if len(set) > 0 {
		update["$set"] = set
	}
	res, err := c.coll.UpdateOne(ctx, versionFilter(id, expectedVersion), update)
	if err != nil {
		return fmt.Errorf("update %s: %w", c.entity, err)
	}
	if res.MatchedCount == 0 {
		return c.missOrConflict(ctx, id, expectedVersion)
	}
	return nil
}

// replaceVersioned swaps the whole document, which must already carry
// the new version.
func (c collection[T]) replaceVersioned(ctx context.Context, id string, expectedVersion int64, doc *T) error {
	res, err := c.coll.ReplaceOne(ctx, versionFilter(id, expectedVersion), doc)
	if err != nil {
		return fmt.Errorf("replace %s: %w", c.entity, err)
	}
	if res.MatchedCount == 0 {
		return c.missOrConflict(ctx, id, expectedVersion)
	}
	return nil
}

func (c collection[T]) missOrConflict(ctx context.Context, id string, expectedVersion int64) error {
	n, err := c.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("count %s: %w", c.entity, err)
	}
	if n == 0 {
		return apperror.NewNotFound(c.entity, id)
	}
	return apperror.NewConcurrentModification(c.entity, id).
		WithDetail("expected_version", expectedVersion)
}

func versionFilter(id string, version int64) bson.M {
	return bson.M{"_id": id, "version": version}
}
