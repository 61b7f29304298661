package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
)

// WindowRepository persists time windows keyed by order.
type WindowRepository struct {
	pool *pgxpool.Pool
}

func NewWindowRepository(pool *pgxpool.Pool) *WindowRepository {
	return &WindowRepository{pool: pool}
}

const windowColumns = `order_id, lower_bound, upper_bound, width_seconds,
	expected_arrival, confidence_level, violation_probability,
	penalty_width, penalty_early, penalty_late, calculation_method,
	sample_count, sample_stddev, coefficient_of_variation,
	actual_arrival, was_within_window, realized_deviation_seconds, completed`

// Put creates or replaces the window for its order.
func (r *WindowRepository) Put(ctx context.Context, w model.TimeWindow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO time_windows (`+windowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (order_id) DO UPDATE SET
			lower_bound = EXCLUDED.lower_bound,
			upper_bound = EXCLUDED.upper_bound,
			width_seconds = EXCLUDED.width_seconds,
			expected_arrival = EXCLUDED.expected_arrival,
			confidence_level = EXCLUDED.confidence_level,
			violation_probability = EXCLUDED.violation_probability,
			penalty_width = EXCLUDED.penalty_width,
			penalty_early = EXCLUDED.penalty_early,
			penalty_late = EXCLUDED.penalty_late,
			calculation_method = EXCLUDED.calculation_method,
			sample_count = EXCLUDED.sample_count,
			sample_stddev = EXCLUDED.sample_stddev,
			coefficient_of_variation = EXCLUDED.coefficient_of_variation,
			actual_arrival = EXCLUDED.actual_arrival,
			was_within_window = EXCLUDED.was_within_window,
			realized_deviation_seconds = EXCLUDED.realized_deviation_seconds,
			completed = EXCLUDED.completed`,
		w.OrderID, w.LowerBound, w.UpperBound, w.WidthSeconds,
		w.ExpectedArrival, w.ConfidenceLevel, w.ViolationProbability,
		w.PenaltyWidth, w.PenaltyEarly, w.PenaltyLate, w.CalculationMethod,
		w.SampleCount, w.SampleStdDev, w.CoefficientOfVariation,
		w.ActualArrival, w.WasWithinWindow, w.DeviationSeconds, w.Completed,
	)
	return err
}

func (r *WindowRepository) GetByOrder(ctx context.Context, orderID string) (model.TimeWindow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+windowColumns+` FROM time_windows WHERE order_id = $1`, orderID)
	w, err := scanWindow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TimeWindow{}, faults.NotFound("time window for order", orderID)
	}
	return w, err
}

func (r *WindowRepository) ListCompleted(ctx context.Context) ([]model.TimeWindow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+windowColumns+` FROM time_windows WHERE completed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.TimeWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func scanWindow(row pgx.Row) (model.TimeWindow, error) {
	var w model.TimeWindow
	err := row.Scan(&w.OrderID, &w.LowerBound, &w.UpperBound, &w.WidthSeconds,
		&w.ExpectedArrival, &w.ConfidenceLevel, &w.ViolationProbability,
		&w.PenaltyWidth, &w.PenaltyEarly, &w.PenaltyLate, &w.CalculationMethod,
		&w.SampleCount, &w.SampleStdDev, &w.CoefficientOfVariation,
		&w.ActualArrival, &w.WasWithinWindow, &w.DeviationSeconds, &w.Completed)
	return w, err
}
