package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	"github.com/vibecommerce/storefront/pkg/database"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

// Migrate creates the orders and order_lines tables.
func Migrate(ctx context.Context, db database.DBTX, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	return database.RunMigrations(ctx, db, sub, logger)
}

// Both read paths aggregate the lines of an order into one JSON array so an
// order and its lines come back in a single row. Numerics are read as text to
// keep them exact.
const selectOrders = `
	SELECT
		o.order_id, o.customer_name, o.customer_email, o.customer_address,
		o.total::text, o.status, o.created_at,
		COALESCE(
			JSONB_AGG(
				JSONB_BUILD_OBJECT(
					'product_id', l.product_id,
					'name', l.name,
					'price', l.price::text,
					'quantity', l.quantity
				) ORDER BY l.position
			) FILTER (WHERE l.order_id IS NOT NULL),
			'[]'::jsonb
		) AS lines
	FROM orders o
	LEFT JOIN order_lines l ON l.order_id = o.order_id`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Append inserts an order and its lines atomically within a transaction.
func (r *OrderRepository) Append(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "orders.insert", "INSERT INTO orders")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, customer_name, customer_email, customer_address, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.OrderID,
		o.Customer.Name,
		o.Customer.Email,
		o.Customer.Address,
		o.Total.String(),
		o.Status,
		o.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("append order %s: %w", o.OrderID, domain.ErrDuplicateOrderID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, line := range o.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, position, product_id, name, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.OrderID,
			i,
			line.ProductID,
			line.Name,
			line.Price.String(),
			line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) (orders []domain.Order, err error) {
	query := selectOrders + `
	GROUP BY o.id
	ORDER BY o.created_at DESC, o.id DESC`

	ctx, end := database.TraceQuery(ctx, "orders.list", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// Get retrieves one order by id with its lines.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (order *domain.Order, err error) {
	query := selectOrders + `
	WHERE o.order_id = $1
	GROUP BY o.id`

	ctx, end := database.TraceQuery(ctx, "orders.get", query)
	defer func() { end(err) }()

	order, err = scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) Source() string { return repository.SourcePostgres }

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o         domain.Order
		total     string
		createdAt time.Time
		linesJSON []byte
	)
	err := row.Scan(
		&o.OrderID,
		&o.Customer.Name,
		&o.Customer.Email,
		&o.Customer.Address,
		&total,
		&o.Status,
		&createdAt,
		&linesJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total of order %s: %w", o.OrderID, err)
	}
	o.CreatedAt = createdAt.UTC()

	o.Lines = []domain.CartLine{}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode lines of order %s: %w", o.OrderID, err)
	}
	return &o, nil
}
