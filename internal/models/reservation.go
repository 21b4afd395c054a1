package models

import "time"

// 预约状态常量，Active 之外均为终态
const (
	ReservationActive    = "Active"
	ReservationCompleted = "Completed"
	ReservationCancelled = "Cancelled"
	ReservationExpired   = "Expired"
)

// Reservation 预约记录，独立于车位状态保存，车位被回收后历史仍可查
type Reservation struct {
	ID               string    `json:"id"`
	DateTime         time.Time `json:"dateTime"` // 开始时间，截断到分钟
	Duration         int       `json:"duration"` // 小时
	Cost             float64   `json:"cost"`
	Status           string    `json:"status"`
	ParkingSpaceID   int64     `json:"parkingSpace"`
	ParkingSpaceName string    `json:"parkingSpaceName"`
	UserID           string    `json:"user"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// EndTime 预约到期时间
func (r *Reservation) EndTime() time.Time {
	return r.DateTime.Add(time.Duration(r.Duration) * time.Hour)
}

// Expired 判断预约在 now 时刻是否已过期
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.EndTime())
}
