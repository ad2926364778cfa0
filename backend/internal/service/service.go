package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bandroom/backend/config"
	"bandroom/backend/internal/cache"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/repository"
	"bandroom/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Booking  BookingService
	Ban      BanService
	Grant    GrantService
	Calendar CalendarService
	Export   ExportService
}

// CacheInvalidator 变更提交后按日期失效日历缓存
type CacheInvalidator interface {
	Invalidate(ctx context.Context, dates ...model.Date)
}

// SliceCache 日历切片缓存（带版本戳）
type SliceCache interface {
	CacheInvalidator
	Snapshot(ctx context.Context, r model.DateRange) (cache.Stamp, error)
	Get(ctx context.Context, r model.DateRange) ([]byte, bool)
	Put(ctx context.Context, r model.DateRange, stamp cache.Stamp, payload []byte) bool
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	sliceCache SliceCache,
	logger *zap.Logger,
) *Service {
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		loc = time.UTC
	}

	ban := NewBanService(repo, sliceCache, logger)
	grant := NewGrantService(repo, jwtMgr, cfg.Booking.BcryptCost, logger)
	calendar := NewCalendarService(repo, ban, sliceCache, logger)

	return &Service{
		Booking:  NewBookingService(repo, ban, grant, sliceCache, cfg.Booking.BcryptCost, logger),
		Ban:      ban,
		Grant:    grant,
		Calendar: calendar,
		Export:   NewExportService(repo, calendar, loc, cfg.Server.BaseURL, logger),
	}
}
