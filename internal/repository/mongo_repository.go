package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartTTL = 90 * 24 * time.Hour

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) FetchCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) CreateCart(ctx context.Context, sessionID string, items []domain.CartLine) (*domain.Cart, error) {
	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Items:     normalizeItems(items),
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := m.collection.InsertOne(ctx, cart); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCartExists
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

func (m *MongoRepository) ReplaceItems(ctx context.Context, cartID string, expectedRevision int64, items []domain.CartLine) (*domain.Cart, error) {
	filter := bson.M{"_id": cartID}
	if expectedRevision != AnyRevision {
		filter["revision"] = expectedRevision
	}

	update := bson.M{
		"$set": bson.M{
			"items":      normalizeItems(items),
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"revision": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to replace cart items: %w", err)
	}
	if expectedRevision == AnyRevision {
		return nil, ErrCartNotFound
	}

	// the filter missed: either the cart is gone or someone else wrote first
	count, err := m.collection.CountDocuments(ctx, bson.M{"_id": cartID})
	if err != nil {
		return nil, fmt.Errorf("failed to check cart existence: %w", err)
	}
	if count == 0 {
		return nil, ErrCartNotFound
	}
	return nil, ErrRevisionMismatch
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
