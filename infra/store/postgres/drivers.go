package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// DriverRepository persists drivers in PostgreSQL.
type DriverRepository struct {
	pool *pgxpool.Pool
}

func NewDriverRepository(pool *pgxpool.Pool) *DriverRepository {
	return &DriverRepository{pool: pool}
}

const driverColumns = `id, name, phone, vehicle_type, status, max_orders, lat, lng, located_at`

// Put creates or replaces a driver.
func (r *DriverRepository) Put(ctx context.Context, d model.Driver) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO drivers (`+driverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			vehicle_type = EXCLUDED.vehicle_type,
			status = EXCLUDED.status,
			max_orders = EXCLUDED.max_orders,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			located_at = EXCLUDED.located_at`,
		d.ID, d.Name, d.Phone, d.VehicleType, d.Status.String(), d.MaxOrders,
		d.Location.Lat, d.Location.Lng, d.LocatedAt,
	)
	return err
}

func (r *DriverRepository) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Driver{}, faults.NotFound("driver", id)
	}
	return d, err
}

// ListAvailable returns drivers in the available status.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]model.Driver, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE status = 'available'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// UpdateLocation stores the driver's latest location ping.
func (r *DriverRepository) UpdateLocation(ctx context.Context, id string, loc model.LatLng, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE drivers SET lat = $2, lng = $3, located_at = $4 WHERE id = $1`,
		id, loc.Lat, loc.Lng, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return faults.NotFound("driver", id)
	}
	return nil
}

func scanDriver(row pgx.Row) (model.Driver, error) {
	var (
		d      model.Driver
		status string
	)
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.VehicleType, &status,
		&d.MaxOrders, &d.Location.Lat, &d.Location.Lng, &d.LocatedAt)
	if err != nil {
		return model.Driver{}, err
	}
	d.Status, err = driverStatusFromString(status)
	return d, err
}
