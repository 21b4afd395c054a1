package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		wantErr bool
	}{
		{"0:00", 0, false},
		{"8:30", 510, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"8:5", 0, true},
		{"8.30", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.minutes, got, tt.in)
		}
	}
}

func TestDayScheduleValidate(t *testing.T) {
	assert.NoError(t, DaySchedule{Mode: ModeOpen24}.Validate())
	assert.NoError(t, DaySchedule{Mode: ModeClosed}.Validate())
	assert.NoError(t, DaySchedule{Mode: ModeWindow, StartTime: "8:00", EndTime: "20:00"}.Validate())

	assert.Error(t, DaySchedule{Mode: "sometimes"}.Validate())
	assert.Error(t, DaySchedule{Mode: ModeWindow, StartTime: "8:00", EndTime: "8:00"}.Validate(), "end must be after start")
	assert.Error(t, DaySchedule{Mode: ModeWindow, StartTime: "20:00", EndTime: "8:00"}.Validate())
	assert.Error(t, DaySchedule{Mode: ModeWindow, StartTime: "25:00", EndTime: "26:00"}.Validate())
	assert.Error(t, DaySchedule{Mode: ModeWindow, StartTime: "", EndTime: "20:00"}.Validate())
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, time.UTC)
}

func TestDayScheduleLocate(t *testing.T) {
	window := DaySchedule{Mode: ModeWindow, StartTime: "8:00", EndTime: "20:00"}

	// [start, end)：等于开门时刻算营业中，等于打烊时刻算已打烊
	assert.Equal(t, BeforeOpen, window.Locate(at(7, 59)))
	assert.Equal(t, WithinWindow, window.Locate(at(8, 0)))
	assert.Equal(t, WithinWindow, window.Locate(at(19, 59)))
	assert.Equal(t, AfterClose, window.Locate(at(20, 0)))
	assert.Equal(t, AfterClose, window.Locate(at(23, 30)))

	assert.Equal(t, WithinWindow, DaySchedule{Mode: ModeOpen24}.Locate(at(3, 0)))
}

func TestScheduleFor(t *testing.T) {
	s := DefaultSetting()
	s.OperatingHours[time.Monday] = DaySchedule{Mode: ModeClosed}

	monday := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) // 周一
	require.Equal(t, time.Monday, monday.Weekday())

	assert.Equal(t, ModeClosed, s.ScheduleFor(monday).Mode)
	assert.Equal(t, ModeOpen24, s.ScheduleFor(monday.AddDate(0, 0, 1)).Mode)
}

func TestDefaultSetting(t *testing.T) {
	s := DefaultSetting()

	assert.True(t, s.IsReservationEnable)
	assert.Equal(t, float64(2), s.ReservationFeePerHour)
	assert.Equal(t, 4, s.MaxReservationDuration)
	for _, day := range s.OperatingHours {
		assert.NoError(t, day.Validate())
		assert.Equal(t, ModeOpen24, day.Mode)
	}
}
