package models

import "time"

// 车位状态常量
const (
	StateEmpty      = "empty"      // 空闲，可预约
	StateReserved   = "reserved"   // 已预约，等待解锁
	StateUnoccupied = "unoccupied" // 已解锁，等待车辆驶入
	StateOccupied   = "occupied"   // 有车
	StateDeleted    = "deleted"    // 软删除，对用户不可见
)

// ReservationSummary 车位上内嵌的预约摘要
// 不变式：state 为 reserved/unoccupied 时必须非空，其余状态必须为空
type ReservationSummary struct {
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	ContactNum    string    `json:"contactNum"`
	Duration      int       `json:"duration"`
	DateTime      time.Time `json:"dateTime"`
	ReservationID string    `json:"reservationId"`
}

// ParkingSpace 车位
type ParkingSpace struct {
	ID           int64               `json:"id"`
	FloorID      int64               `json:"floorId"`
	Name         string              `json:"name"`
	Category     string              `json:"category"`
	Pos          Position            `json:"pos"`
	Coord        Location            `json:"coordinate"`
	Cost         float64             `json:"cost"`
	State        string              `json:"state"`
	IsAccessible bool                `json:"isAccessible"` // 无障碍车位
	Reservation  *ReservationSummary `json:"reservation,omitempty"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// SpaceDetail 单车位查询结果，附带所在楼层信息
type SpaceDetail struct {
	ParkingSpace
	FloorName string `json:"floorName"`
	FloorMap  string `json:"floorMap"`
}

// Statistic 全场车位状态统计，unoccupied 计入 occupied
type Statistic struct {
	Empty    int `json:"empty"`
	Reserved int `json:"reserved"`
	Occupied int `json:"occupied"`
}

// CountState 把一个车位状态累加进统计
func (s *Statistic) CountState(state string) {
	switch state {
	case StateEmpty:
		s.Empty++
	case StateReserved:
		s.Reserved++
	case StateOccupied, StateUnoccupied:
		s.Occupied++
	}
}
