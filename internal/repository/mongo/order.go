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

// OrderRepository is the append-only orders collection.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository creates an order repository on db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(OrdersCollection)}
}

// EnsureIndexes creates the unique order_id index and the listing index.
func (r *OrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("order_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("create orders indexes: %w", err)
	}
	return nil
}

func (r *OrderRepository) Append(ctx context.Context, order *domain.Order) (err error) {
	ctx, end := database.TraceOp(ctx, database.SystemMongo, "orders.insertOne", "")
	defer func() { end(err) }()

	doc, err := toOrderDocument(order)
	if err != nil {
		return err
	}

	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("append order %s: %w", order.OrderID, domain.ErrDuplicateOrderID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// ListAll returns orders sorted by created_at descending. Ties fall back to
// insertion order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) (orders []domain.Order, err error) {
	ctx, end := database.TraceOp(ctx, database.SystemMongo, "orders.find", "")
	defer func() { end(err) }()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cur.Close(ctx)

	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	orders = make([]domain.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (order *domain.Order, err error) {
	ctx, end := database.TraceOp(ctx, database.SystemMongo, "orders.findOne", "")
	defer func() { end(err) }()

	var doc orderDocument
	err = r.coll.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return doc.toDomain()
}

func (r *OrderRepository) Source() string { return repository.SourceMongo }
