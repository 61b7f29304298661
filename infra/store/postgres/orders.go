package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// OrderRepository persists orders in PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, customer_id, pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address, delivery_date, preferred_slot,
	priority, value, status, created_at`

// Put creates or replaces an order.
func (r *OrderRepository) Put(ctx context.Context, o model.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			pickup_lat = EXCLUDED.pickup_lat,
			pickup_lng = EXCLUDED.pickup_lng,
			pickup_address = EXCLUDED.pickup_address,
			dropoff_lat = EXCLUDED.dropoff_lat,
			dropoff_lng = EXCLUDED.dropoff_lng,
			dropoff_address = EXCLUDED.dropoff_address,
			delivery_date = EXCLUDED.delivery_date,
			preferred_slot = EXCLUDED.preferred_slot,
			priority = EXCLUDED.priority,
			value = EXCLUDED.value,
			status = EXCLUDED.status`,
		o.ID, o.CustomerID, o.Pickup.Lat, o.Pickup.Lng, o.PickupAddress,
		o.Dropoff.Lat, o.Dropoff.Lng, o.DropoffAddress, o.DeliveryDate, o.PreferredSlot,
		o.Priority, o.Value, o.Status.String(), o.CreatedAt,
	)
	return err
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, faults.NotFound("order", id)
	}
	return o, err
}

// ListMatchable returns pending orders, highest priority first and oldest
// first within a priority.
func (r *OrderRepository) ListMatchable(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r *OrderRepository) SetOrderStatus(ctx context.Context, id string, status model.OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return faults.NotFound("order", id)
	}
	return nil
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.Pickup.Lat, &o.Pickup.Lng, &o.PickupAddress,
		&o.Dropoff.Lat, &o.Dropoff.Lng, &o.DropoffAddress, &o.DeliveryDate, &o.PreferredSlot,
		&o.Priority, &o.Value, &status, &o.CreatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.Status, err = orderStatusFromString(status)
	return o, err
}
