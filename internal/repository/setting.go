package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/jpark/internal/models"
)

// SettingRepository 运营设置单行仓库
type SettingRepository struct {
	db *DB
}

// NewSettingRepository 创建设置仓库
func NewSettingRepository(db *DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get 读取设置，单行不存在时返回默认配置
func (r *SettingRepository) Get(ctx context.Context) (*models.Setting, error) {
	q := r.db.q(ctx)

	var s models.Setting
	var hoursJSON []byte
	err := q.QueryRow(ctx, `
		SELECT operating_hours, reservation_fee_per_hour, max_reservation_duration,
		       is_reservation_enable, updated_at
		FROM settings WHERE id = 1
	`).Scan(&hoursJSON, &s.ReservationFeePerHour, &s.MaxReservationDuration,
		&s.IsReservationEnable, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultSetting(), nil
		}
		return nil, fmt.Errorf("select settings: %w", err)
	}

	if err := json.Unmarshal(hoursJSON, &s.OperatingHours); err != nil {
		return nil, fmt.Errorf("decode operating hours: %w", err)
	}
	return &s, nil
}

// save 单行 upsert，运营写入频率极低，last-write-wins 可接受
func (r *SettingRepository) save(ctx context.Context, s *models.Setting) error {
	q := r.db.q(ctx)

	hoursJSON, err := json.Marshal(s.OperatingHours)
	if err != nil {
		return fmt.Errorf("encode operating hours: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO settings (id, operating_hours, reservation_fee_per_hour,
			max_reservation_duration, is_reservation_enable, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			operating_hours = EXCLUDED.operating_hours,
			reservation_fee_per_hour = EXCLUDED.reservation_fee_per_hour,
			max_reservation_duration = EXCLUDED.max_reservation_duration,
			is_reservation_enable = EXCLUDED.is_reservation_enable,
			updated_at = NOW()
	`, hoursJSON, s.ReservationFeePerHour, s.MaxReservationDuration, s.IsReservationEnable)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// UpdateOperatingHours 更新七日营业时段
func (r *SettingRepository) UpdateOperatingHours(ctx context.Context, hours [7]models.DaySchedule) error {
	s, err := r.Get(ctx)
	if err != nil {
		return err
	}
	s.OperatingHours = hours
	return r.save(ctx, s)
}

// UpdateReservationEnable 更新预约开关
func (r *SettingRepository) UpdateReservationEnable(ctx context.Context, enabled bool) error {
	s, err := r.Get(ctx)
	if err != nil {
		return err
	}
	s.IsReservationEnable = enabled
	return r.save(ctx, s)
}

// UpdateReservationFee 更新每小时预约费
func (r *SettingRepository) UpdateReservationFee(ctx context.Context, fee float64) error {
	s, err := r.Get(ctx)
	if err != nil {
		return err
	}
	s.ReservationFeePerHour = fee
	return r.save(ctx, s)
}

// UpdateMaxReservationDuration 更新最大可预约时长
func (r *SettingRepository) UpdateMaxReservationDuration(ctx context.Context, hours int) error {
	s, err := r.Get(ctx)
	if err != nil {
		return err
	}
	s.MaxReservationDuration = hours
	return r.save(ctx, s)
}
