package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/jpark/internal/errs"
	"github.com/langchou/jpark/internal/models"
)

// reserveSpace 铺垫：u1 在 1 号车位上建一笔 2 小时预约
func reserveSpace(t *testing.T, f *fixture) *models.Reservation {
	rv, err := f.svc.Reserve(context.Background(), 1, "u1", 2, mondayAt(10, 0))
	require.NoError(t, err)
	return rv
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	rv := reserveSpace(t, f)

	require.NoError(t, f.svc.Unlock(context.Background(), 1, "u1"))

	// 已解锁等车驶入，摘要保留到车辆入位为止
	assert.Equal(t, models.StateUnoccupied, f.lot.state(1))
	require.NotNil(t, f.lot.summary(1))
	assert.Equal(t, rv.ID, f.lot.summary(1).ReservationID)

	assert.Equal(t, models.ReservationCompleted, f.ledger.status(rv.ID))
	assert.Contains(t, f.notifier.commandEvents(), gatewayCommand{Event: "unlock", SpaceID: 1})
}

func TestUnlockWrongUser(t *testing.T) {
	f := newFixture(t)
	rv := reserveSpace(t, f)

	err := f.svc.Unlock(context.Background(), 1, "u2")
	e := errs.AsError(err)
	assert.Equal(t, errs.KindUnauthorized, e.Kind)
	assert.Equal(t, "userId", e.Field)
	assert.Equal(t, "Parking space is not belong to the user", e.Msg)

	assert.Equal(t, models.StateReserved, f.lot.state(1))
	assert.Equal(t, models.ReservationActive, f.ledger.status(rv.ID))
}

func TestUnlockNotReserved(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Unlock(context.Background(), 1, "u1")
	e := errs.AsError(err)
	assert.Equal(t, errs.KindInvalidState, e.Kind)
	assert.Equal(t, "Parking space is not reserved.", e.Msg)
}

func TestUnlockTwice(t *testing.T) {
	f := newFixture(t)
	reserveSpace(t, f)
	require.NoError(t, f.svc.Unlock(context.Background(), 1, "u1"))

	err := f.svc.Unlock(context.Background(), 1, "u1")
	assert.Equal(t, "Already unlocked.", errs.AsError(err).Msg)
}

func TestPark(t *testing.T) {
	f := newFixture(t)
	reserveSpace(t, f)
	require.NoError(t, f.svc.Unlock(context.Background(), 1, "u1"))

	require.NoError(t, f.svc.Park(context.Background(), 1))

	// 车入位后摘要清空：摘要只在 reserved/unoccupied 存在
	assert.Equal(t, models.StateOccupied, f.lot.state(1))
	assert.Nil(t, f.lot.summary(1))
	assert.Nil(t, f.notifier.lastSpace(t).Reservation)
}

func TestParkWithoutUnlock(t *testing.T) {
	f := newFixture(t)
	reserveSpace(t, f)

	err := f.svc.Park(context.Background(), 1)
	assert.Equal(t, "Parking space not unlocked", errs.AsError(err).Msg)
	assert.Equal(t, models.StateReserved, f.lot.state(1))
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reserveSpace(t, f)
	require.NoError(t, f.svc.Unlock(ctx, 1, "u1"))
	require.NoError(t, f.svc.Park(ctx, 1))

	require.NoError(t, f.svc.Leave(ctx, 1))

	assert.Equal(t, models.StateEmpty, f.lot.state(1))
	assert.Nil(t, f.lot.summary(1))
	assert.Equal(t, models.Statistic{Empty: 2}, f.notifier.lastStat(t))
}

func TestLeaveEmptySpace(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Leave(context.Background(), 1)
	assert.Equal(t, "No vehicle is detected at the parking space.", errs.AsError(err).Msg)
}

func TestCancelKeepsDebit(t *testing.T) {
	f := newFixture(t)
	rv := reserveSpace(t, f)
	require.Equal(t, float64(6), f.accounts.credits("u1"))

	require.NoError(t, f.svc.Cancel(context.Background(), 1, "u1"))

	assert.Equal(t, models.StateEmpty, f.lot.state(1))
	assert.Nil(t, f.lot.summary(1))
	assert.Equal(t, models.ReservationCancelled, f.ledger.status(rv.ID))

	// 取消不退费
	assert.Equal(t, float64(6), f.accounts.credits("u1"))
	assert.Contains(t, f.notifier.commandEvents(), gatewayCommand{Event: "clear", SpaceID: 1})
}

func TestCancelWrongUser(t *testing.T) {
	f := newFixture(t)
	reserveSpace(t, f)

	err := f.svc.Cancel(context.Background(), 1, "u2")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Equal(t, models.StateReserved, f.lot.state(1))
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	rv := reserveSpace(t, f)

	require.NoError(t, f.svc.Clear(context.Background(), 1))

	assert.Equal(t, models.StateEmpty, f.lot.state(1))
	assert.Equal(t, models.ReservationCancelled, f.ledger.status(rv.ID))
	assert.Contains(t, f.notifier.commandEvents(), gatewayCommand{Event: "clear", SpaceID: 1})
}

func TestClearEmpty(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Clear(context.Background(), 1)
	assert.Equal(t, "Already empty", errs.AsError(err).Msg)
}

func TestClearUnlocked(t *testing.T) {
	f := newFixture(t)
	reserveSpace(t, f)
	require.NoError(t, f.svc.Unlock(context.Background(), 1, "u1"))

	// 解锁后可能随时有车驶入，清除被拒
	err := f.svc.Clear(context.Background(), 1)
	assert.Equal(t, "A vehicle is detected at the parking space.", errs.AsError(err).Msg)
	assert.Equal(t, models.StateUnoccupied, f.lot.state(1))
}

func TestUnlockStaleSnapshotRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reserveSpace(t, f) // u1 的预约

	// u1 的解锁请求在取完快照后卡住，期间 u1 取消、u2 重新预约
	var second *models.Reservation
	f.lot.onFind = func() {
		require.NoError(t, f.svc.Cancel(ctx, 1, "u1"))
		rv, err := f.svc.Reserve(ctx, 1, "u2", 2, mondayAt(10, 5))
		require.NoError(t, err)
		second = rv
	}

	// 陈旧请求对着旧摘要通过不了临界区内的归属重验
	err := f.svc.Unlock(ctx, 1, "u1")
	e := errs.AsError(err)
	assert.Equal(t, errs.KindUnauthorized, e.Kind)
	assert.Equal(t, "Parking space is not belong to the user", e.Msg)

	// u2 的预约与车位归属原样保留
	assert.Equal(t, models.StateReserved, f.lot.state(1))
	require.NotNil(t, f.lot.summary(1))
	assert.Equal(t, "u2", f.lot.summary(1).UserID)
	assert.Equal(t, second.ID, f.lot.summary(1).ReservationID)
	assert.Equal(t, models.ReservationActive, f.ledger.status(second.ID))
}

func TestCancelStaleSnapshotRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reserveSpace(t, f)

	var second *models.Reservation
	f.lot.onFind = func() {
		require.NoError(t, f.svc.Cancel(ctx, 1, "u1"))
		rv, err := f.svc.Reserve(ctx, 1, "u2", 2, mondayAt(10, 5))
		require.NoError(t, err)
		second = rv
	}

	// u1 的重复取消在快照变陈旧后被拒，不会作废 u2 的预约
	err := f.svc.Cancel(ctx, 1, "u1")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	assert.Equal(t, models.StateReserved, f.lot.state(1))
	assert.Equal(t, models.ReservationActive, f.ledger.status(second.ID))
}

func TestClearFinalizesCurrentReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reserveSpace(t, f)

	var second *models.Reservation
	f.lot.onFind = func() {
		require.NoError(t, f.svc.Cancel(ctx, 1, "u1"))
		rv, err := f.svc.Reserve(ctx, 1, "u2", 2, mondayAt(10, 5))
		require.NoError(t, err)
		second = rv
	}

	// 管理员清除作用于临界区内在位的那笔预约，而不是快照里的旧预约
	require.NoError(t, f.svc.Clear(ctx, 1))

	assert.Equal(t, models.StateEmpty, f.lot.state(1))
	assert.Nil(t, f.lot.summary(1))
	assert.Equal(t, models.ReservationCancelled, f.ledger.status(second.ID))
}

func TestExternalWriteRealignsMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reserveSpace(t, f)
	require.NoError(t, f.svc.Unlock(ctx, 1, "u1"))

	// 外部写入绕过状态机直接清位，状态机与存储出现漂移
	require.NoError(t, f.lot.ForceState(ctx, 1, models.StateEmpty))

	err := f.svc.Park(ctx, 1)
	assert.Equal(t, errs.KindInvalidState, errs.KindOf(err))

	// 落库冲突后状态机与存储重新对齐，车位可直接再预约
	m, ok := f.svc.machines.Get(1)
	require.True(t, ok)
	assert.Equal(t, models.StateEmpty, m.Current())

	_, err = f.svc.Reserve(ctx, 1, "u2", 1, mondayAt(11, 0))
	assert.NoError(t, err)
}

func TestHandleGatewayMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reserveSpace(t, f)
	require.NoError(t, f.svc.Unlock(ctx, 1, "u1"))

	f.svc.HandleGatewayMessage([]byte(`{"event":"park","parkingSpaceId":1}`))
	assert.Equal(t, models.StateOccupied, f.lot.state(1))

	f.svc.HandleGatewayMessage([]byte(`{"event":"leave","parkingSpaceId":1}`))
	assert.Equal(t, models.StateEmpty, f.lot.state(1))
}

func TestHandleGatewayMessageInvalid(t *testing.T) {
	f := newFixture(t)

	// 非法载荷与未知事件只记日志，不改状态
	f.svc.HandleGatewayMessage([]byte(`not json`))
	f.svc.HandleGatewayMessage([]byte(`{"event":"explode","parkingSpaceId":1}`))
	f.svc.HandleGatewayMessage([]byte(`{"event":"park","parkingSpaceId":99}`))

	assert.Equal(t, models.StateEmpty, f.lot.state(1))
}
