package service

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/langchou/jpark/internal/config"
	"github.com/langchou/jpark/internal/errs"
	"github.com/langchou/jpark/internal/models"
	"github.com/langchou/jpark/internal/repository"
	"github.com/langchou/jpark/internal/state"
)

// LotStore 场库拓扑与车位状态存储
type LotStore interface {
	GetLot(ctx context.Context) (*models.ParkingLot, error)
	ReplaceLot(ctx context.Context, lot *models.ParkingLot) error
	FindSpace(ctx context.Context, id int64) (*models.ParkingSpace, *models.Floor, error)
	ListSpaces(ctx context.Context) ([]models.ParkingSpace, error)
	CompareAndSetState(ctx context.Context, id int64, from, to string, summary *models.ReservationSummary) (bool, error)
	ForceState(ctx context.Context, id int64, to string) error
}

// ReservationLedger 预约台账存储
type ReservationLedger interface {
	Create(ctx context.Context, rv *models.Reservation) error
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]models.Reservation, error)
	ListActive(ctx context.Context) ([]models.Reservation, error)
	Finalize(ctx context.Context, id, from, to string) (bool, error)
}

// SettingStore 运营设置读取
type SettingStore interface {
	Get(ctx context.Context) (*models.Setting, error)
}

// AccountService 账户服务（外部协作者）：查余额、扣费
type AccountService interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	Debit(ctx context.Context, id string, amount float64, description string) error
}

// TxRunner 多笔写入的原子执行器
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier 变更扇出：车位事件、统计快照、网关指令
type Notifier interface {
	SpaceChanged(space *models.ParkingSpace)
	StatisticChanged(stat models.Statistic)
	GatewayCommand(event string, spaceID int64)
}

// ParkingService 车位服务：状态机转换、预约准入、过期回收、查询投影
type ParkingService struct {
	cfg      *config.Config
	logger   *zap.Logger
	lot      LotStore
	ledger   ReservationLedger
	settings SettingStore
	accounts AccountService
	tx       TxRunner
	notifier Notifier
	machines *state.Manager

	expiryCron *cron.Cron
}

// NewParkingService 创建车位服务
func NewParkingService(
	cfg *config.Config,
	logger *zap.Logger,
	lot LotStore,
	ledger ReservationLedger,
	settings SettingStore,
	accounts AccountService,
	tx TxRunner,
	notifier Notifier,
) *ParkingService {
	return &ParkingService{
		cfg:      cfg,
		logger:   logger,
		lot:      lot,
		ledger:   ledger,
		settings: settings,
		accounts: accounts,
		tx:       tx,
		notifier: notifier,
		machines: state.NewManager(),
	}
}

// Init 用存储中的车位状态灌入状态机，场库导入后需再次调用
func (s *ParkingService) Init(ctx context.Context) error {
	spaces, err := s.lot.ListSpaces(ctx)
	if err != nil {
		return err
	}

	states := make(map[int64]string, len(spaces))
	for _, sp := range spaces {
		states[sp.ID] = sp.State
	}
	s.machines.Reset(states)

	s.logger.Info("Parking spaces loaded", zap.Int("count", len(spaces)))
	return nil
}

// findSpace 定位车位及其状态机
func (s *ParkingService) findSpace(ctx context.Context, spaceID int64) (*models.ParkingSpace, *state.Machine, error) {
	space, _, err := s.lot.FindSpace(ctx, spaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errs.NotFound("parkingSpaceId", "Parking space not found")
		}
		return nil, nil, errs.Internal("Failed to load parking space", err)
	}
	return space, s.machines.GetOrCreate(spaceID, space.State), nil
}

// guardMessage 守卫拒绝时面向用户的提示语，按事件与当前状态区分
func guardMessage(event, from string) string {
	switch event {
	case state.EventReserve:
		if from == models.StateReserved {
			return "Already reserved"
		}
		return "A vehicle is detected at the parking space."
	case state.EventUnlock:
		switch from {
		case models.StateUnoccupied:
			return "Already unlocked."
		case models.StateEmpty:
			return "Parking space is not reserved."
		default:
			return "A vehicle is detected at the parking space."
		}
	case state.EventPark:
		return "Parking space not unlocked"
	case state.EventLeave:
		return "No vehicle is detected at the parking space."
	case state.EventCancel:
		return "Cancellation failed"
	case state.EventClear:
		if from == models.StateEmpty {
			return "Already empty"
		}
		return "A vehicle is detected at the parking space."
	default:
		return "Operation not allowed"
	}
}

// asDomainError 把转换失败归一成领域错误
func asDomainError(err error) error {
	var guard *state.GuardError
	if errors.As(err, &guard) {
		return errs.InvalidState("parkingSpaceId", guardMessage(guard.Event, guard.From))
	}
	var domain *errs.Error
	if errors.As(err, &domain) {
		return domain
	}
	return errs.Internal("Internal server error", err)
}

// transition 执行一次守卫转换并持久化；summary 为转换后的预约摘要（nil 即清空）
func (s *ParkingService) transition(ctx context.Context, m *state.Machine, event string, summary *models.ReservationSummary, extra func(ctx context.Context) error) error {
	casMiss := false
	err := m.Transition(event, func(from, to string) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			ok, err := s.lot.CompareAndSetState(ctx, m.SpaceID(), from, to, summary)
			if err != nil {
				return errs.Internal("Failed to update parking space", err)
			}
			if !ok {
				// 存储与状态机失联（外部写入），按守卫拒绝处理，随后对齐
				casMiss = true
				return errs.InvalidState("parkingSpaceId", guardMessage(event, from))
			}
			if extra != nil {
				return extra(ctx)
			}
			return nil
		})
	})
	if casMiss {
		s.resyncMachine(ctx, m)
	}
	return err
}

// resyncMachine 落库冲突后把状态机与存储对齐（外部写入造成的漂移）
func (s *ParkingService) resyncMachine(ctx context.Context, m *state.Machine) {
	cur, _, err := s.lot.FindSpace(ctx, m.SpaceID())
	if err != nil {
		s.logger.Warn("Failed to resync space state",
			zap.Int64("space_id", m.SpaceID()), zap.Error(err))
		return
	}
	s.logger.Warn("Space state drifted, realigned with storage",
		zap.Int64("space_id", m.SpaceID()), zap.String("state", cur.State))
	m.Resync(cur.State)
}

// ownedTransition 在临界区内重读车位归属后执行转换
// 快照式的归属校验会被 取消+他人再预约 的间隙绕过：重读保证校验与置位针对的是同一笔预约
// userID 为空表示管理员操作，跳过归属校验；keepSummary 为 true 时转换后保留摘要（解锁）
// 返回临界区内读到的摘要
func (s *ParkingService) ownedTransition(ctx context.Context, m *state.Machine, event, userID string, keepSummary bool, finalStatus string) (*models.ReservationSummary, error) {
	var summary *models.ReservationSummary
	casMiss := false
	err := m.Transition(event, func(from, to string) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			cur, _, err := s.lot.FindSpace(ctx, m.SpaceID())
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return errs.NotFound("parkingSpaceId", "Parking space not found")
				}
				return errs.Internal("Failed to load parking space", err)
			}
			if userID != "" && (cur.Reservation == nil || cur.Reservation.UserID != userID) {
				return errs.Unauthorized("userId", "Parking space is not belong to the user")
			}
			summary = cur.Reservation

			var next *models.ReservationSummary
			if keepSummary {
				next = summary
			}
			ok, err := s.lot.CompareAndSetState(ctx, m.SpaceID(), from, to, next)
			if err != nil {
				return errs.Internal("Failed to update parking space", err)
			}
			if !ok {
				casMiss = true
				return errs.InvalidState("parkingSpaceId", guardMessage(event, from))
			}
			if summary != nil {
				if _, err := s.ledger.Finalize(ctx, summary.ReservationID, models.ReservationActive, finalStatus); err != nil {
					return errs.Internal("Failed to finalize reservation", err)
				}
			}
			return nil
		})
	})
	if casMiss {
		s.resyncMachine(ctx, m)
	}
	if err != nil {
		return nil, asDomainError(err)
	}
	return summary, nil
}

// publishChange 转换成功后的扇出：车位事件 + 重算统计
func (s *ParkingService) publishChange(ctx context.Context, space *models.ParkingSpace) {
	s.notifier.SpaceChanged(space)

	stat, err := s.Statistic(ctx)
	if err != nil {
		s.logger.Error("Failed to compute statistic", zap.Error(err))
		return
	}
	s.notifier.StatisticChanged(stat)
}

// Statistic 全量扫描车位重算统计
func (s *ParkingService) Statistic(ctx context.Context) (models.Statistic, error) {
	spaces, err := s.lot.ListSpaces(ctx)
	if err != nil {
		return models.Statistic{}, errs.Internal("Failed to list parking spaces", err)
	}

	var stat models.Statistic
	for _, sp := range spaces {
		stat.CountState(sp.State)
	}
	return stat, nil
}

// Unlock 预约者解锁车位：reserved -> unoccupied，预约完结
// 归属校验基于临界区内重读的摘要，陈旧请求会被当前归属拒绝
func (s *ParkingService) Unlock(ctx context.Context, spaceID int64, userID string) error {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return err
	}

	summary, err := s.ownedTransition(ctx, m, state.EventUnlock, userID, true, models.ReservationCompleted)
	if err != nil {
		return err
	}

	space.State = models.StateUnoccupied
	space.Reservation = summary
	s.logger.Info("Parking space unlocked", zap.Int64("space_id", spaceID), zap.String("user_id", userID))
	s.publishChange(ctx, space)
	s.notifier.GatewayCommand("unlock", spaceID)
	return nil
}

// Park 车辆驶入：unoccupied -> occupied，摘要清空（摘要只在 reserved/unoccupied 存在）
func (s *ParkingService) Park(ctx context.Context, spaceID int64) error {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, m, state.EventPark, nil, nil); err != nil {
		return asDomainError(err)
	}

	space.State = models.StateOccupied
	space.Reservation = nil
	s.logger.Info("Vehicle parked", zap.Int64("space_id", spaceID))
	s.publishChange(ctx, space)
	return nil
}

// Leave 车辆驶离：occupied -> empty，摘要清空
func (s *ParkingService) Leave(ctx context.Context, spaceID int64) error {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, m, state.EventLeave, nil, nil); err != nil {
		return asDomainError(err)
	}

	space.State = models.StateEmpty
	space.Reservation = nil
	s.logger.Info("Vehicle left", zap.Int64("space_id", spaceID))
	s.publishChange(ctx, space)
	return nil
}

// Cancel 用户取消预约：reserved -> empty，预约作废，费用不退
func (s *ParkingService) Cancel(ctx context.Context, spaceID int64, userID string) error {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return err
	}

	if _, err := s.ownedTransition(ctx, m, state.EventCancel, userID, false, models.ReservationCancelled); err != nil {
		return err
	}

	space.State = models.StateEmpty
	space.Reservation = nil
	s.logger.Info("Reservation cancelled", zap.Int64("space_id", spaceID), zap.String("user_id", userID))
	s.publishChange(ctx, space)
	s.notifier.GatewayCommand("clear", spaceID)
	return nil
}

// Clear 管理员清除预约：仅 reserved 可清，occupied/unoccupied 视为有车拒绝
// 作废的是临界区内重读到的那笔预约，而不是请求发起时的快照
func (s *ParkingService) Clear(ctx context.Context, spaceID int64) error {
	space, m, err := s.findSpace(ctx, spaceID)
	if err != nil {
		return err
	}

	if _, err := s.ownedTransition(ctx, m, state.EventClear, "", false, models.ReservationCancelled); err != nil {
		return err
	}

	space.State = models.StateEmpty
	space.Reservation = nil
	s.logger.Info("Parking space cleared", zap.Int64("space_id", spaceID))
	s.publishChange(ctx, space)
	s.notifier.GatewayCommand("clear", spaceID)
	return nil
}
