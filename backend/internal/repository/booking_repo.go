package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bandroom/backend/internal/model"
	pkgerrors "bandroom/backend/pkg/errors"
)

// BookingLogFilter 预约日志过滤条件，零值字段不参与过滤
type BookingLogFilter struct {
	Start   *model.Date
	End     *model.Date // 开区间
	OwnerID string
}

// BookingRepository 预约数据访问接口
type BookingRepository interface {
	// Create 插入有效预约；(date, slot) 已被占用时返回 ErrDuplicateSlot
	Create(ctx context.Context, b *model.Booking) error
	// GetByID 仅返回未删除的预约
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// GetByIDWithDeleted 包含已取消的预约
	GetByIDWithDeleted(ctx context.Context, id string) (*model.Booking, error)
	// ListActiveInRange 返回 date ∈ [start, end) 的有效预约
	ListActiveInRange(ctx context.Context, start, end model.Date) ([]model.Booking, error)
	// Update 带乐观锁的单行更新；移动到已占用时段返回 ErrDuplicateSlot
	Update(ctx context.Context, b *model.Booking) error
	// SoftDelete 软删除，返回是否实际改变了状态
	SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) (bool, error)
	// ListLog 分页查询预约日志（含已取消），pageSize<=0 时不分页
	ListLog(ctx context.Context, filter BookingLogFilter, page, pageSize int) ([]model.Booking, int64, error)
}

type bookingRepo struct {
	db      *gorm.DB
	timeout time.Duration
}

func (r *bookingRepo) Create(ctx context.Context, b *model.Booking) error {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	if b.Version == 0 {
		b.Version = 1
	}
	return translateError(r.db.WithContext(ctx).Create(b).Error)
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	var b model.Booking
	err := r.db.WithContext(ctx).Where("booking_id = ?", id).First(&b).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &b, nil
}

func (r *bookingRepo) GetByIDWithDeleted(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	var b model.Booking
	err := r.db.WithContext(ctx).Unscoped().Where("booking_id = ?", id).First(&b).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &b, nil
}

func (r *bookingRepo) ListActiveInRange(ctx context.Context, start, end model.Date) ([]model.Booking, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date < ?", start, end).
		Order("date ASC, slot ASC").
		Find(&bookings).Error
	return bookings, translateError(err)
}

func (r *bookingRepo) Update(ctx context.Context, b *model.Booking) error {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	oldVersion := b.Version
	now := r.db.NowFunc()
	result := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("booking_id = ? AND version = ?", b.BookingID, oldVersion).
		Updates(map[string]interface{}{
			"date":         b.Date,
			"slot":         b.Slot,
			"band_name":    b.BandName,
			"contact_name": b.ContactName,
			"updated_by":   b.UpdatedBy,
			"version":      oldVersion + 1,
			"updated_at":   now,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	b.Version = oldVersion + 1
	b.UpdatedAt = now
	return nil
}

func (r *bookingRepo) SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) (bool, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	result := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("booking_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": at,
		})
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *bookingRepo) ListLog(ctx context.Context, filter BookingLogFilter, page, pageSize int) ([]model.Booking, int64, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.WithContext(ctx).Unscoped().Model(&model.Booking{})
	if filter.Start != nil {
		query = query.Where("date >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("date < ?", *filter.End)
	}
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	query = query.Order("created_at DESC, booking_id ASC")
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var bookings []model.Booking
	if err := query.Find(&bookings).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return bookings, total, nil
}
