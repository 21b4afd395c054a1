package models

import (
	"fmt"
	"regexp"
	"time"
)

// ScheduleMode 单日营业模式，三种模式互斥
type ScheduleMode string

const (
	ModeWindow ScheduleMode = "window"     // 按 startTime/endTime 营业
	ModeOpen24 ScheduleMode = "open24Hour" // 全天开放
	ModeClosed ScheduleMode = "closed"     // 当日不营业
)

// WindowPosition 当前时刻相对营业时段的位置
type WindowPosition int

const (
	BeforeOpen WindowPosition = iota // 尚未开门
	WithinWindow
	AfterClose // 已打烊（含等于 endTime 的时刻）
)

var clockPattern = regexp.MustCompile(`^\d{1,2}:\d\d$`)

// parseClock 解析 "HH:MM"，返回当天第几分钟
func parseClock(s string) (int, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// DaySchedule 单日营业时段
type DaySchedule struct {
	Mode      ScheduleMode `json:"mode"`
	StartTime string       `json:"startTime,omitempty"` // "HH:MM"，仅 window 模式有效
	EndTime   string       `json:"endTime,omitempty"`
}

// Validate 校验单日配置
func (d DaySchedule) Validate() error {
	switch d.Mode {
	case ModeOpen24, ModeClosed:
		return nil
	case ModeWindow:
		start, err := parseClock(d.StartTime)
		if err != nil {
			return fmt.Errorf("invalid start time: %w", err)
		}
		end, err := parseClock(d.EndTime)
		if err != nil {
			return fmt.Errorf("invalid end time: %w", err)
		}
		if start >= end {
			return fmt.Errorf("end time must be after start time")
		}
		return nil
	default:
		return fmt.Errorf("invalid schedule mode %q", d.Mode)
	}
}

// Locate 判断 t 的钟点落在营业时段的哪一侧
// 区间语义为 [start, end)：等于 startTime 算营业中，等于 endTime 算已打烊
func (d DaySchedule) Locate(t time.Time) WindowPosition {
	if d.Mode != ModeWindow {
		return WithinWindow
	}
	start, _ := parseClock(d.StartTime)
	end, _ := parseClock(d.EndTime)
	minute := t.Hour()*60 + t.Minute()
	switch {
	case minute < start:
		return BeforeOpen
	case minute >= end:
		return AfterClose
	default:
		return WithinWindow
	}
}

// Setting 全局运营设置单例
type Setting struct {
	OperatingHours         [7]DaySchedule `json:"operatingHours"` // 下标为 time.Weekday（周日为 0）
	ReservationFeePerHour  float64        `json:"reservationFeePerHour"`
	MaxReservationDuration int            `json:"maxReservationDuration"`
	IsReservationEnable    bool           `json:"isReservationEnable"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

// ScheduleFor 取某一时刻对应星期的营业配置
func (s *Setting) ScheduleFor(t time.Time) DaySchedule {
	return s.OperatingHours[int(t.Weekday())]
}

// DefaultSetting 初始设置：全周 24 小时开放，预约开启
func DefaultSetting() *Setting {
	s := &Setting{
		ReservationFeePerHour:  2,
		MaxReservationDuration: 4,
		IsReservationEnable:    true,
	}
	for i := range s.OperatingHours {
		s.OperatingHours[i] = DaySchedule{Mode: ModeOpen24}
	}
	return s
}
