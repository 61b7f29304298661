package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/observation"
)

// ObservationRepository persists travel time observations. The table is
// append-only; rows are never updated or deleted.
type ObservationRepository struct {
	pool *pgxpool.Pool
}

func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

func (r *ObservationRepository) Append(ctx context.Context, obs model.RouteSegmentObservation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO observations (id, from_lat, from_lng, to_lat, to_lng,
			estimated_seconds, actual_seconds, deviation_seconds,
			time_of_day, day_of_week, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		obs.ID, obs.From.Lat, obs.From.Lng, obs.To.Lat, obs.To.Lng,
		obs.EstimatedSeconds, obs.ActualSeconds, obs.DeviationSeconds,
		obs.TimeOfDay, obs.DayOfWeek, obs.CreatedAt,
	)
	return err
}

// Find runs the bounding box query directly in SQL so the recency index does
// the heavy lifting. Results come back most recent first.
func (r *ObservationRepository) Find(ctx context.Context, f observation.Filter) ([]model.RouteSegmentObservation, error) {
	query := `
		SELECT id, from_lat, from_lng, to_lat, to_lng,
			estimated_seconds, actual_seconds, deviation_seconds,
			time_of_day, day_of_week, created_at
		FROM observations
		WHERE from_lat BETWEEN $1 AND $2 AND from_lng BETWEEN $3 AND $4
		  AND to_lat BETWEEN $5 AND $6 AND to_lng BETWEEN $7 AND $8
		  AND created_at >= $9
		  AND ($10 = '' OR time_of_day = $10)
		  AND ($11 = '' OR day_of_week = $11)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query,
		f.From.MinLat, f.From.MaxLat, f.From.MinLng, f.From.MaxLng,
		f.To.MinLat, f.To.MaxLat, f.To.MinLng, f.To.MaxLng,
		f.Since, f.TimeOfDay, f.DayOfWeek,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.RouteSegmentObservation
	for rows.Next() {
		var o model.RouteSegmentObservation
		if err := rows.Scan(&o.ID, &o.From.Lat, &o.From.Lng, &o.To.Lat, &o.To.Lng,
			&o.EstimatedSeconds, &o.ActualSeconds, &o.DeviationSeconds,
			&o.TimeOfDay, &o.DayOfWeek, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
