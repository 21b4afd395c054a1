package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/langchou/jpark/internal/errs"
	"github.com/langchou/jpark/internal/models"
	"github.com/langchou/jpark/internal/repository"
)

// GetLot 完整场库聚合
func (s *ParkingService) GetLot(ctx context.Context) (*models.ParkingLot, error) {
	lot, err := s.lot.GetLot(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("parkingLotId", "Parking lot not found")
		}
		return nil, errs.Internal("Failed to load parking lot", err)
	}
	return lot, nil
}

// GetLotLocation 场库地理信息投影
func (s *ParkingService) GetLotLocation(ctx context.Context) (*models.LotLocation, error) {
	lot, err := s.GetLot(ctx)
	if err != nil {
		return nil, err
	}
	return &models.LotLocation{
		Location:  lot.Location,
		Corners:   lot.Corners,
		Rotation:  lot.Rotation,
		Dimension: lot.Dimension,
	}, nil
}

// GetSpace 单车位查询，附带楼层信息
func (s *ParkingService) GetSpace(ctx context.Context, spaceID int64) (*models.SpaceDetail, error) {
	space, floor, err := s.lot.FindSpace(ctx, spaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("parkingSpaceId", "Parking space not found")
		}
		return nil, errs.Internal("Failed to load parking space", err)
	}
	return &models.SpaceDetail{
		ParkingSpace: *space,
		FloorName:    floor.Name,
		FloorMap:     floor.Map.URL,
	}, nil
}

func planarDistance(a, b models.Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// NearestToEntrance 距任一同层入口最近的空闲车位
// 没有任何入口与空位同层时退回第一个空位，全场无空位返回 nil
func (s *ParkingService) NearestToEntrance(ctx context.Context) (*models.ParkingSpace, error) {
	lot, err := s.GetLot(ctx)
	if err != nil {
		return nil, err
	}

	var entrances []models.Entrance
	var empty []models.ParkingSpace
	for _, floor := range lot.Floors {
		entrances = append(entrances, floor.Entrances...)
		for _, sp := range floor.ParkingSpaces {
			if sp.State == models.StateEmpty {
				empty = append(empty, sp)
			}
		}
	}

	if len(empty) == 0 {
		return nil, nil
	}

	best := math.MaxFloat64
	var nearest *models.ParkingSpace
	for _, e := range entrances {
		for i := range empty {
			if e.FloorID != empty[i].FloorID {
				continue
			}
			if d := planarDistance(empty[i].Pos, e.Pos); d < best {
				best = d
				nearest = &empty[i]
			}
		}
	}

	if nearest == nil {
		return &empty[0], nil
	}
	return nearest, nil
}

// FirstAccessibleEmpty 第一个空闲的无障碍车位，没有则返回 nil
func (s *ParkingService) FirstAccessibleEmpty(ctx context.Context) (*models.ParkingSpace, error) {
	spaces, err := s.lot.ListSpaces(ctx)
	if err != nil {
		return nil, errs.Internal("Failed to list parking spaces", err)
	}

	for i := range spaces {
		if spaces[i].State == models.StateEmpty && spaces[i].IsAccessible {
			return &spaces[i], nil
		}
	}
	return nil, nil
}

// ImportLot 落地室内地图导入的场库拓扑并重建状态机
func (s *ParkingService) ImportLot(ctx context.Context, lot *models.ParkingLot) error {
	if len(lot.Floors) == 0 {
		return errs.InvalidState("floors", "Parking lot must have at least one floor")
	}

	if err := s.lot.ReplaceLot(ctx, lot); err != nil {
		return errs.Internal("Failed to import parking lot", err)
	}
	if err := s.Init(ctx); err != nil {
		return errs.Internal("Failed to reload parking spaces", err)
	}

	s.logger.Info("Parking lot imported",
		zap.Int64("lot_id", lot.ID), zap.Int("floors", len(lot.Floors)))

	stat, err := s.Statistic(ctx)
	if err == nil {
		s.notifier.StatisticChanged(stat)
	}
	return nil
}
