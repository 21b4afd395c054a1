package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/jpark/internal/models"
)

// ReservationRepository 预约台账仓库，只追加写入，状态只被改一次（到终态）
type ReservationRepository struct {
	db *DB
}

// NewReservationRepository 创建预约仓库
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `id, start_time, duration_hours, cost, status,
	parking_space_id, parking_space_name, user_id, created_at, updated_at`

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var rv models.Reservation
	err := row.Scan(&rv.ID, &rv.DateTime, &rv.Duration, &rv.Cost, &rv.Status,
		&rv.ParkingSpaceID, &rv.ParkingSpaceName, &rv.UserID, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// Create 创建预约记录
func (r *ReservationRepository) Create(ctx context.Context, rv *models.Reservation) error {
	q := r.db.q(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO reservations (id, start_time, duration_hours, cost, status,
			parking_space_id, parking_space_name, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rv.ID, rv.DateTime, rv.Duration, rv.Cost, rv.Status,
		rv.ParkingSpaceID, rv.ParkingSpaceName, rv.UserID)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetByID 按 ID 查询预约
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	q := r.db.q(ctx)

	rv, err := scanReservation(q.QueryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select reservation: %w", err)
	}
	return rv, nil
}

// ListByUser 查询某账户的全部预约
func (r *ReservationRepository) ListByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE user_id = $1 ORDER BY start_time DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		rv, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// ListActive 查询所有进行中的预约（过期回收扫描用）
func (r *ReservationRepository) ListActive(ctx context.Context) ([]models.Reservation, error) {
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = $1 ORDER BY start_time
	`, models.ReservationActive)
	if err != nil {
		return nil, fmt.Errorf("select active reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		rv, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// Finalize 条件置终态：仅当前状态等于 from 时更新，已是终态的预约不会被改写
func (r *ReservationRepository) Finalize(ctx context.Context, id, from, to string) (bool, error) {
	q := r.db.q(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE reservations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update reservation status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
