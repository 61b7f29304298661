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

// AssignmentRepository persists assignments in PostgreSQL. The conditional
// UPDATE in TransitionStatus is what makes racing accept/reject/expire calls
// resolve to exactly one winner.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

const assignmentColumns = `id, order_id, driver_id, status, sequence, offered_at,
	expires_at, reject_reason, estimated_pickup, estimated_delivery,
	actual_pickup, actual_delivery, missing_window`

func (r *AssignmentRepository) Create(ctx context.Context, a model.Assignment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.OrderID, a.DriverID, a.Status.String(), a.Sequence, a.OfferedAt,
		a.ExpiresAt, a.RejectReason, a.EstimatedPickup, a.EstimatedDelivery,
		a.ActualPickup, a.ActualDelivery, a.MissingWindow,
	)
	return err
}

func (r *AssignmentRepository) Get(ctx context.Context, id string) (model.Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Assignment{}, faults.NotFound("assignment", id)
	}
	return a, err
}

// TransitionStatus performs the compare-and-set status update. The WHERE
// clause matches the expected current status, so a lost race affects zero
// rows and returns false without error.
func (r *AssignmentRepository) TransitionStatus(ctx context.Context, id string, from, to model.AssignmentStatus, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET status = $3, reject_reason = CASE WHEN $4 <> '' THEN $4 ELSE reject_reason END
		WHERE id = $1 AND status = $2`,
		id, from.String(), to.String(), reason)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// Distinguish a lost race from a missing row.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM assignments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, faults.NotFound("assignment", id)
	}
	return false, nil
}

func (r *AssignmentRepository) SetMissingWindow(ctx context.Context, id string, missing bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE assignments SET missing_window = $2 WHERE id = $1`, id, missing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return faults.NotFound("assignment", id)
	}
	return nil
}

func (r *AssignmentRepository) ListOfferedByDriver(ctx context.Context, driverID string) ([]model.Assignment, error) {
	return r.list(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE driver_id = $1 AND status = 'offered'
		ORDER BY offered_at ASC`, driverID)
}

func (r *AssignmentRepository) ListExpiredOffers(ctx context.Context, asOf time.Time) ([]model.Assignment, error) {
	return r.list(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE status = 'offered' AND expires_at <= $1
		ORDER BY expires_at ASC`, asOf)
}

func (r *AssignmentRepository) CountActive(ctx context.Context, driverID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM assignments
		WHERE driver_id = $1 AND status IN ('offered', 'accepted')`, driverID).Scan(&n)
	return n, err
}

func (r *AssignmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func scanAssignment(row pgx.Row) (model.Assignment, error) {
	var (
		a      model.Assignment
		status string
	)
	err := row.Scan(&a.ID, &a.OrderID, &a.DriverID, &status, &a.Sequence, &a.OfferedAt,
		&a.ExpiresAt, &a.RejectReason, &a.EstimatedPickup, &a.EstimatedDelivery,
		&a.ActualPickup, &a.ActualDelivery, &a.MissingWindow)
	if err != nil {
		return model.Assignment{}, err
	}
	a.Status, err = assignmentStatusFromString(status)
	return a, err
}
