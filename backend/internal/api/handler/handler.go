package handler

import (
	"time"

	"bandroom/backend/config"
	"bandroom/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Booking  *BookingHandler
	Grant    *GrantHandler
	Ban      *BanHandler
	Calendar *CalendarHandler
	Export   *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		loc = time.UTC
	}
	window := NewBookingWindow(cfg.Booking.EarliestOffsetDays, cfg.Booking.HorizonDays, loc)

	return &Handler{
		Booking:  NewBookingHandler(svc.Booking, window),
		Grant:    NewGrantHandler(svc.Grant),
		Ban:      NewBanHandler(svc.Ban),
		Calendar: NewCalendarHandler(svc.Calendar),
		Export:   NewExportHandler(svc.Export),
	}
}
