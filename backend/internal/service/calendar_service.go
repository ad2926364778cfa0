package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bandroom/backend/internal/cache"
	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/repository"
)

// CalendarService 日历区间查询
type CalendarService interface {
	// Get 返回 [r.Start, r.End) 的日历切片，引擎不限制区间长度
	Get(ctx context.Context, r model.DateRange) (*dto.CalendarSlice, error)
}

type calendarService struct {
	repo   *repository.Repository
	bans   BanResolver
	cache  SliceCache
	group  singleflight.Group
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, bans BanResolver, sliceCache SliceCache, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, bans: bans, cache: sliceCache, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// Get
// ═══════════════════════════════════════════════════════════
//
// 未命中时先取版本戳再查库，同一区间、同一版本的并发未命中合并为一次计算。
// 版本戳不同（中间有写入提交）的读者各自计算，不会拿到写入前的结果。

func (s *calendarService) Get(ctx context.Context, r model.DateRange) (*dto.CalendarSlice, error) {
	if !r.Valid() {
		return nil, ErrInvalidRange
	}

	if payload, ok := s.cache.Get(ctx, r); ok {
		var slice dto.CalendarSlice
		if err := json.Unmarshal(payload, &slice); err == nil {
			return &slice, nil
		}
		s.logger.Warn("日历缓存条目无法解析，重新计算", zap.String("range", r.String()))
	}

	stamp, err := s.cache.Snapshot(ctx, r)
	if err != nil {
		// 缓存后端不可用：直接查库，不合并、不回写
		return s.compute(ctx, r, cache.Stamp{})
	}
	v, err, _ := s.group.Do(r.Key()+"#"+stamp.Key(), func() (interface{}, error) {
		return s.compute(context.WithoutCancel(ctx), r, stamp)
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.CalendarSlice), nil
}

// compute 合并有效预约与禁用时段
// 禁用优先于空闲；已有预约即使落在新增禁用内仍显示为占用
func (s *calendarService) compute(ctx context.Context, r model.DateRange, stamp cache.Stamp) (*dto.CalendarSlice, error) {
	bookings, err := s.repo.Booking.ListActiveInRange(ctx, r.Start, r.End)
	if err != nil {
		s.logger.Error("查询区间预约失败", zap.String("range", r.String()), zap.Error(err))
		return nil, err
	}
	denied, err := s.bans.Resolve(ctx, r)
	if err != nil {
		return nil, err
	}

	slice := emptySlice(r)
	for d, set := range denied {
		day := slice.Days[d.String()]
		for _, slot := range set.Slots() {
			day[int(slot)] = &dto.SlotOccupant{Kind: dto.OccupantBanned}
		}
	}
	for i := range bookings {
		b := &bookings[i]
		day, ok := slice.Days[b.Date.String()]
		if !ok {
			continue
		}
		day[int(b.Slot)] = &dto.SlotOccupant{
			Kind:        dto.OccupantBooking,
			ID:          b.BookingID,
			BandName:    b.BandName,
			ContactName: b.ContactName,
		}
	}

	payload, err := json.Marshal(slice)
	if err != nil {
		s.logger.Error("序列化日历切片失败", zap.Error(err))
		return slice, nil
	}
	s.cache.Put(ctx, r, stamp, payload)
	return slice, nil
}

func emptySlice(r model.DateRange) *dto.CalendarSlice {
	slice := &dto.CalendarSlice{
		Start: r.Start.String(),
		End:   r.End.String(),
		Days:  make(map[string]map[int]*dto.SlotOccupant),
	}
	for _, d := range r.Days() {
		day := make(map[int]*dto.SlotOccupant, model.SlotCount)
		for _, slot := range model.AllSlots() {
			day[int(slot)] = nil
		}
		slice.Days[d.String()] = day
	}
	return slice
}
