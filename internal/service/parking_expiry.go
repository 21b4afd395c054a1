package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/langchou/jpark/internal/models"
	"github.com/langchou/jpark/internal/state"
)

// StartExpiry 启动过期回收定时任务
func (s *ParkingService) StartExpiry(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.ExpiryCron, func() {
		s.ExpireOverdue(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	c.Start()
	s.expiryCron = c
	s.logger.Info("Expiry sweep scheduled",
		zap.String("cron", s.cfg.ExpiryCron),
		zap.Bool("force_evict", s.cfg.ExpiryForceEvict))
	return nil
}

// StopExpiry 停止定时任务并等待在跑的扫描结束
func (s *ParkingService) StopExpiry() {
	if s.expiryCron != nil {
		<-s.expiryCron.Stop().Done()
	}
}

// ExpireOverdue 对账扫描：把所有到期的 Active 预约置为 Expired 并回收车位
// 单条失败只记日志，不中断其余预约的处理
func (s *ParkingService) ExpireOverdue(ctx context.Context, now time.Time) {
	reservations, err := s.ledger.ListActive(ctx)
	if err != nil {
		s.logger.Error("Failed to list active reservations", zap.Error(err))
		return
	}

	for _, rv := range reservations {
		if !rv.Expired(now) {
			continue
		}
		if err := s.expireOne(ctx, &rv); err != nil {
			s.logger.Error("Failed to expire reservation",
				zap.String("reservation_id", rv.ID),
				zap.Int64("space_id", rv.ParkingSpaceID),
				zap.Error(err))
		}
	}
}

// expireOne 先把台账置为 Expired（已是终态则跳过），再回收车位
func (s *ParkingService) expireOne(ctx context.Context, rv *models.Reservation) error {
	ok, err := s.ledger.Finalize(ctx, rv.ID, models.ReservationActive, models.ReservationExpired)
	if err != nil {
		return err
	}
	if !ok {
		// 已被 unlock/cancel 抢先置终态
		return nil
	}

	if err := s.reclaimSpace(ctx, rv.ParkingSpaceID); err != nil {
		return err
	}

	s.logger.Info("Reservation expired",
		zap.String("reservation_id", rv.ID),
		zap.String("space_name", rv.ParkingSpaceName))
	return nil
}

// reclaimSpace 把过期预约占用的车位放回 empty
// 默认只回收 reserved/unoccupied；occupied 车位上有真车，不强赶（见 EXPIRY_FORCE_EVICT）
func (s *ParkingService) reclaimSpace(ctx context.Context, spaceID int64) error {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return err
	}

	if s.cfg.ExpiryForceEvict {
		err = m.Force(models.StateEmpty, func(string) error {
			return s.lot.ForceState(ctx, spaceID, models.StateEmpty)
		})
	} else {
		err = s.transition(ctx, m, state.EventExpire, nil, nil)
		var guard *state.GuardError
		if errors.As(err, &guard) {
			// occupied：保留真实占用信号，预约已过期即可
			s.logger.Warn("Skip reclaiming occupied space",
				zap.Int64("space_id", spaceID), zap.String("state", guard.From))
			return nil
		}
	}
	if err != nil {
		return err
	}

	space.State = models.StateEmpty
	space.Reservation = nil
	s.publishChange(ctx, space)
	return nil
}
