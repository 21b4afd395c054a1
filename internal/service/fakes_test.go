package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/jpark/internal/config"
	"github.com/langchou/jpark/internal/models"
	"github.com/langchou/jpark/internal/repository"
)

// fakeLot 内存版场库存储，CAS 语义与 SQL 条件更新一致
type fakeLot struct {
	mu      sync.Mutex
	lot     *models.ParkingLot
	spaces  map[int64]*models.ParkingSpace
	floorOf map[int64]*models.Floor

	// onFind 在下一次 FindSpace 取完快照后、返回前执行一次
	// 用来在请求的两个步骤之间插入并发操作，构造陈旧快照
	onFind func()
}

func newFakeLot(lot *models.ParkingLot) *fakeLot {
	f := &fakeLot{lot: lot}
	f.index()
	return f
}

func (f *fakeLot) index() {
	f.spaces = make(map[int64]*models.ParkingSpace)
	f.floorOf = make(map[int64]*models.Floor)
	for i := range f.lot.Floors {
		fl := &f.lot.Floors[i]
		for j := range fl.ParkingSpaces {
			sp := &fl.ParkingSpaces[j]
			if sp.State == "" {
				sp.State = models.StateEmpty
			}
			f.spaces[sp.ID] = sp
			f.floorOf[sp.ID] = fl
		}
	}
}

func (f *fakeLot) GetLot(ctx context.Context) (*models.ParkingLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lot == nil {
		return nil, repository.ErrNotFound
	}
	lot := *f.lot
	return &lot, nil
}

func (f *fakeLot) ReplaceLot(ctx context.Context, lot *models.ParkingLot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lot = lot
	f.index()
	return nil
}

func (f *fakeLot) FindSpace(ctx context.Context, id int64) (*models.ParkingSpace, *models.Floor, error) {
	f.mu.Lock()
	sp, ok := f.spaces[id]
	if !ok || sp.State == models.StateDeleted {
		f.mu.Unlock()
		return nil, nil, repository.ErrNotFound
	}
	space := *sp
	floor := *f.floorOf[id]
	hook := f.onFind
	f.onFind = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &space, &floor, nil
}

func (f *fakeLot) ListSpaces(ctx context.Context) ([]models.ParkingSpace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.spaces))
	for id := range f.spaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.ParkingSpace
	for _, id := range ids {
		if f.spaces[id].State == models.StateDeleted {
			continue
		}
		out = append(out, *f.spaces[id])
	}
	return out, nil
}

func (f *fakeLot) CompareAndSetState(ctx context.Context, id int64, from, to string, summary *models.ReservationSummary) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.spaces[id]
	if !ok || sp.State != from {
		return false, nil
	}
	sp.State = to
	if summary != nil {
		s := *summary
		sp.Reservation = &s
	} else {
		sp.Reservation = nil
	}
	sp.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeLot) ForceState(ctx context.Context, id int64, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.spaces[id]
	if !ok {
		return repository.ErrNotFound
	}
	sp.State = to
	sp.Reservation = nil
	return nil
}

func (f *fakeLot) state(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spaces[id].State
}

func (f *fakeLot) summary(id int64) *models.ReservationSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spaces[id].Reservation
}

// fakeLedger 内存版预约台账
type fakeLedger struct {
	mu sync.Mutex
	m  map[string]*models.Reservation
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{m: make(map[string]*models.Reservation)}
}

func (f *fakeLedger) Create(ctx context.Context, rv *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rv
	f.m[rv.ID] = &cp
	return nil
}

func (f *fakeLedger) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rv
	return &cp, nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, rv := range f.m {
		if rv.UserID == userID {
			out = append(out, *rv)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListActive(ctx context.Context) ([]models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, rv := range f.m {
		if rv.Status == models.ReservationActive {
			out = append(out, *rv)
		}
	}
	return out, nil
}

func (f *fakeLedger) Finalize(ctx context.Context, id, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.m[id]
	if !ok || rv.Status != from {
		return false, nil
	}
	rv.Status = to
	return true, nil
}

func (f *fakeLedger) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[id].Status
}

// fakeSettings 固定返回内存里的设置
type fakeSettings struct {
	mu      sync.Mutex
	setting *models.Setting
}

func (f *fakeSettings) Get(ctx context.Context) (*models.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *f.setting
	return &s, nil
}

// fakeAccounts 内存版账户服务，扣费语义与条件更新一致
type fakeAccounts struct {
	mu  sync.Mutex
	m   map[string]*models.Account
	txs []models.WalletTransaction
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{m: make(map[string]*models.Account)}
}

func (f *fakeAccounts) Get(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeAccounts) Debit(ctx context.Context, id string, amount float64, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.m[id]
	if !ok {
		return repository.ErrNotFound
	}
	if acc.Credits < amount {
		return repository.ErrInsufficientCredits
	}
	acc.Credits -= amount
	f.txs = append(f.txs, models.WalletTransaction{
		UserID:      id,
		Credit:      -amount,
		Description: description,
		Status:      "Completed",
	})
	return nil
}

func (f *fakeAccounts) credits(id string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[id].Credits
}

// passTx 直通事务执行器
type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type gatewayCommand struct {
	Event   string
	SpaceID int64
}

// recordingNotifier 记录全部扇出，断言广播行为用
type recordingNotifier struct {
	mu       sync.Mutex
	spaces   []models.ParkingSpace
	stats    []models.Statistic
	commands []gatewayCommand
}

func (n *recordingNotifier) SpaceChanged(space *models.ParkingSpace) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spaces = append(n.spaces, *space)
}

func (n *recordingNotifier) StatisticChanged(stat models.Statistic) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats = append(n.stats, stat)
}

func (n *recordingNotifier) GatewayCommand(event string, spaceID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.commands = append(n.commands, gatewayCommand{Event: event, SpaceID: spaceID})
}

func (n *recordingNotifier) lastSpace(t *testing.T) models.ParkingSpace {
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.spaces)
	return n.spaces[len(n.spaces)-1]
}

func (n *recordingNotifier) lastStat(t *testing.T) models.Statistic {
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.stats)
	return n.stats[len(n.stats)-1]
}

func (n *recordingNotifier) commandEvents() []gatewayCommand {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]gatewayCommand(nil), n.commands...)
}

// fixture 组装好的服务与全部假依赖
type fixture struct {
	svc      *ParkingService
	cfg      *config.Config
	lot      *fakeLot
	ledger   *fakeLedger
	settings *fakeSettings
	accounts *fakeAccounts
	notifier *recordingNotifier
}

// testLot 单层两车位：1 号普通、2 号无障碍
func testLot() *models.ParkingLot {
	return &models.ParkingLot{
		ID:   1,
		Name: "Central Parking",
		Floors: []models.Floor{
			{
				ID:   1,
				Name: "G",
				Map:  models.FloorMap{URL: "/maps/g.svg"},
				ParkingSpaces: []models.ParkingSpace{
					{ID: 1, FloorID: 1, Name: "A1", Pos: models.Position{X: 1, Y: 1}},
					{ID: 2, FloorID: 1, Name: "A2", Pos: models.Position{X: 5, Y: 5}, IsAccessible: true},
				},
				Entrances: []models.Entrance{
					{ID: 1, FloorID: 1, Name: "Main", Pos: models.Position{X: 0, Y: 0}},
				},
			},
		},
	}
}

// testSetting 每天 8:00-20:00 营业，费率 2/小时，上限 4 小时
func testSetting() *models.Setting {
	s := &models.Setting{
		ReservationFeePerHour:  2,
		MaxReservationDuration: 4,
		IsReservationEnable:    true,
	}
	for i := range s.OperatingHours {
		s.OperatingHours[i] = models.DaySchedule{Mode: models.ModeWindow, StartTime: "8:00", EndTime: "20:00"}
	}
	return s
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		cfg:      &config.Config{ExpiryCron: "* * * * *"},
		lot:      newFakeLot(testLot()),
		ledger:   newFakeLedger(),
		settings: &fakeSettings{setting: testSetting()},
		accounts: newFakeAccounts(),
		notifier: &recordingNotifier{},
	}
	f.accounts.m["u1"] = &models.Account{ID: "u1", Username: "alice", Email: "alice@example.com", ContactNum: "0100000001", Credits: 10}
	f.accounts.m["u2"] = &models.Account{ID: "u2", Username: "bob", Email: "bob@example.com", ContactNum: "0100000002", Credits: 10}

	f.svc = NewParkingService(f.cfg, zap.NewNop(), f.lot, f.ledger, f.settings, f.accounts, passTx{}, f.notifier)
	require.NoError(t, f.svc.Init(context.Background()))
	return f
}

// mondayAt 固定在周一（2026-08-31）的某个钟点
func mondayAt(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, time.UTC)
}
