package handler

import (
	"time"

	"bandroom/backend/internal/model"
)

// BookingWindow 可预约日期窗口：[今天+EarliestOffsetDays, 今天+HorizonDays]
// 这是面向用户的业务策略，引擎本身接受任意日期
type BookingWindow struct {
	EarliestOffsetDays int
	HorizonDays        int
	loc                *time.Location
	now                func() time.Time
}

// NewBookingWindow 创建预约窗口，"今天" 按 loc 时区计算
func NewBookingWindow(earliestOffsetDays, horizonDays int, loc *time.Location) BookingWindow {
	return BookingWindow{
		EarliestOffsetDays: earliestOffsetDays,
		HorizonDays:        horizonDays,
		loc:                loc,
		now:                time.Now,
	}
}

// Allows d 是否落在窗口内
func (w BookingWindow) Allows(d model.Date) bool {
	today := model.DateOf(w.now().In(w.loc))
	return !d.Before(today.AddDays(w.EarliestOffsetDays)) && !d.After(today.AddDays(w.HorizonDays))
}
