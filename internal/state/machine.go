package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/langchou/jpark/internal/models"
)

// 车位生命周期事件常量
const (
	EventReserve = "reserve" // empty -> reserved
	EventUnlock  = "unlock"  // reserved -> unoccupied
	EventPark    = "park"    // unoccupied -> occupied
	EventLeave   = "leave"   // occupied -> empty
	EventCancel  = "cancel"  // reserved -> empty（用户取消）
	EventClear   = "clear"   // reserved -> empty（管理员清除）
	EventExpire  = "expire"  // reserved/unoccupied -> empty（后台回收）
)

// eventDst 事件到目标状态的静态映射
var eventDst = map[string]string{
	EventReserve: models.StateReserved,
	EventUnlock:  models.StateUnoccupied,
	EventPark:    models.StateOccupied,
	EventLeave:   models.StateEmpty,
	EventCancel:  models.StateEmpty,
	EventClear:   models.StateEmpty,
	EventExpire:  models.StateEmpty,
}

// GuardError 守卫拒绝：事件在当前状态下不合法
type GuardError struct {
	Event string
	From  string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("event %s not allowed in state %s", e.Event, e.From)
}

// Machine 单个车位的状态机
// 互斥锁即该车位的临界区：读守卫-落库-推进 在锁内完成，同一车位的并发转换被串行化
type Machine struct {
	mu      sync.Mutex
	spaceID int64
	fsm     *fsm.FSM
}

// NewMachine 创建状态机
func NewMachine(spaceID int64, initialState string) *Machine {
	if initialState == "" {
		initialState = models.StateEmpty
	}

	m := &Machine{spaceID: spaceID}
	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventReserve, Src: []string{models.StateEmpty}, Dst: models.StateReserved},
			{Name: EventUnlock, Src: []string{models.StateReserved}, Dst: models.StateUnoccupied},
			{Name: EventPark, Src: []string{models.StateUnoccupied}, Dst: models.StateOccupied},
			{Name: EventLeave, Src: []string{models.StateOccupied}, Dst: models.StateEmpty},
			{Name: EventCancel, Src: []string{models.StateReserved}, Dst: models.StateEmpty},
			{Name: EventClear, Src: []string{models.StateReserved}, Dst: models.StateEmpty},
			{Name: EventExpire, Src: []string{models.StateReserved, models.StateUnoccupied}, Dst: models.StateEmpty},
		},
		fsm.Callbacks{},
	)
	return m
}

// SpaceID 车位 ID
func (m *Machine) SpaceID() int64 {
	return m.spaceID
}

// Current 获取当前状态
func (m *Machine) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.Current()
}

// Transition 在锁内执行一次守卫转换
// persist 在守卫通过后、状态推进前调用（通常是条件 UPDATE 落库），失败则状态不推进
func (m *Machine) Transition(event string, persist func(from, to string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.fsm.Current()
	if !m.fsm.Can(event) {
		return &GuardError{Event: event, From: from}
	}

	if persist != nil {
		if err := persist(from, eventDst[event]); err != nil {
			return err
		}
	}

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("advance %s from %s: %w", event, from, err)
	}
	return nil
}

// Force 无视守卫强制置位（过期回收的兼容行为），persist 同 Transition
func (m *Machine) Force(to string, persist func(from string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.fsm.Current()
	if persist != nil {
		if err := persist(from); err != nil {
			return err
		}
	}
	m.fsm.SetState(to)
	return nil
}

// Resync 与存储对齐（导入后或落库冲突时使用）
func (m *Machine) Resync(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.SetState(state)
}

// Manager 车位状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[int64]*Machine
}

// NewManager 创建管理器
func NewManager() *Manager {
	return &Manager{machines: make(map[int64]*Machine)}
}

// GetOrCreate 获取或创建车位状态机
func (m *Manager) GetOrCreate(spaceID int64, initialState string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[spaceID]; ok {
		return machine
	}
	machine := NewMachine(spaceID, initialState)
	m.machines[spaceID] = machine
	return machine
}

// Get 获取车位状态机
func (m *Manager) Get(spaceID int64) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[spaceID]
	return machine, ok
}

// Reset 用一批车位状态重建所有状态机（场库导入后调用）
func (m *Manager) Reset(states map[int64]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.machines = make(map[int64]*Machine, len(states))
	for id, s := range states {
		m.machines[id] = NewMachine(id, s)
	}
}
