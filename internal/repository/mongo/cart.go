// Package mongo implements the cart and order repositories on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	"github.com/vibecommerce/storefront/pkg/database"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// Collection names.
const (
	CartsCollection  = "carts"
	OrdersCollection = "orders"
)

// CartRepository stores one document per session in the carts collection.
type CartRepository struct {
	coll *mongo.Collection
}

// NewCartRepository creates a cart repository on db.
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{coll: db.Collection(CartsCollection)}
}

// EnsureIndexes creates the unique session_id index.
func (r *CartRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("session_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create carts index: %w", err)
	}
	return nil
}

func (r *CartRepository) Get(ctx context.Context, sessionID string) (cart *domain.Cart, err error) {
	ctx, end := database.TraceOp(ctx, database.SystemMongo, "carts.findOne", "")
	defer func() { end(err) }()

	var doc cartDocument
	err = r.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, fmt.Errorf("find cart: %w", err)
	}

	return doc.toDomain()
}

// Save replaces the session's document, creating it when absent.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) (err error) {
	ctx, end := database.TraceOp(ctx, database.SystemMongo, "carts.replaceOne", "")
	defer func() { end(err) }()

	doc, err := toCartDocument(cart)
	if err != nil {
		return err
	}

	_, err = r.coll.ReplaceOne(ctx,
		bson.M{"session_id": cart.SessionID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Source() string { return repository.SourceMongo }
