package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/jpark/internal/errs"
	"github.com/langchou/jpark/internal/models"
	"github.com/langchou/jpark/internal/repository"
	"github.com/langchou/jpark/internal/state"
)

// Reserve 预约准入，按固定顺序校验，第一条失败即返回：
// 1 车位存在且空闲 2 账户存在 3 预约开关 4 当日营业 5 营业时段 6 时长上限 7 余额
// 通过后在一个事务内完成 扣费+流水+台账+车位置位，开始时间截断到分钟
func (s *ParkingService) Reserve(ctx context.Context, spaceID int64, userID string, duration int, now time.Time) (*models.Reservation, error) {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	if cur := m.Current(); cur != models.StateEmpty {
		return nil, errs.InvalidState("parkingSpaceId", guardMessage(state.EventReserve, cur))
	}

	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("userId", "User not found")
		}
		return nil, errs.Internal("Failed to load account", err)
	}

	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, errs.Internal("Failed to load settings", err)
	}

	if !setting.IsReservationEnable {
		return nil, errs.InvalidState("parkingSpaceId", "Reservation is disabled")
	}

	schedule := setting.ScheduleFor(now)
	if schedule.Mode == models.ModeClosed {
		return nil, errs.InvalidState("parkingSpaceId", "Parking lot is closed")
	}
	switch schedule.Locate(now) {
	case models.BeforeOpen:
		return nil, errs.InvalidState("duration", "Parking lot haven't open")
	case models.AfterClose:
		return nil, errs.InvalidState("duration", "Parking lot is closed")
	}

	if duration > setting.MaxReservationDuration {
		return nil, errs.InvalidState("duration",
			fmt.Sprintf("Maximum reservation duration is %d hour", setting.MaxReservationDuration))
	}

	fee := float64(duration) * setting.ReservationFeePerHour
	if account.Credits < fee {
		return nil, errs.InvalidState("duration", "Insufficient credit balance")
	}

	// 经过分钟截断，到期比较对分钟级确定
	start := now.Truncate(time.Minute)

	reservation := &models.Reservation{
		ID:               uuid.NewString(),
		DateTime:         start,
		Duration:         duration,
		Cost:             fee,
		Status:           models.ReservationActive,
		ParkingSpaceID:   space.ID,
		ParkingSpaceName: space.Name,
		UserID:           account.ID,
	}

	summary := &models.ReservationSummary{
		UserID:        account.ID,
		Username:      account.Username,
		Email:         account.Email,
		ContactNum:    account.ContactNum,
		Duration:      duration,
		DateTime:      start,
		ReservationID: reservation.ID,
	}

	err = s.transition(ctx, m, state.EventReserve, summary, func(ctx context.Context) error {
		if err := s.accounts.Debit(ctx, account.ID, fee, "Reserve parking space: "+space.Name); err != nil {
			if errors.Is(err, repository.ErrInsufficientCredits) {
				return errs.InvalidState("duration", "Insufficient credit balance")
			}
			return errs.Internal("Failed to debit account", err)
		}
		return s.ledger.Create(ctx, reservation)
	})
	if err != nil {
		return nil, asDomainError(err)
	}

	space.State = models.StateReserved
	space.Reservation = summary
	s.logger.Info("Parking space reserved",
		zap.Int64("space_id", spaceID),
		zap.String("user_id", userID),
		zap.Int("duration_hours", duration),
		zap.Float64("fee", fee))

	s.publishChange(ctx, space)
	s.notifier.GatewayCommand("reserve", spaceID)
	return reservation, nil
}
