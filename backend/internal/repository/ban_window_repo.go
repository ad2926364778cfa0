package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bandroom/backend/internal/model"
)

// BanWindowRepository 禁用规则数据访问接口
type BanWindowRepository interface {
	Create(ctx context.Context, ban *model.BanWindow) error
	GetByID(ctx context.Context, id string) (*model.BanWindow, error)
	// ListOverlapping 返回覆盖范围与 [start, end) 有交集的有效规则
	ListOverlapping(ctx context.Context, start, end model.Date) ([]model.BanWindow, error)
	// ListAll 返回全部有效规则
	ListAll(ctx context.Context) ([]model.BanWindow, error)
	Delete(ctx context.Context, id, deletedBy string, at time.Time) (bool, error)
}

type banWindowRepo struct {
	db      *gorm.DB
	timeout time.Duration
}

func (r *banWindowRepo) Create(ctx context.Context, ban *model.BanWindow) error {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	return translateError(r.db.WithContext(ctx).Create(ban).Error)
}

func (r *banWindowRepo) GetByID(ctx context.Context, id string) (*model.BanWindow, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	var ban model.BanWindow
	err := r.db.WithContext(ctx).Where("ban_window_id = ?", id).First(&ban).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &ban, nil
}

func (r *banWindowRepo) ListOverlapping(ctx context.Context, start, end model.Date) ([]model.BanWindow, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	var bans []model.BanWindow
	// single 规则 end_date 为 NULL，以 start_date 作为最后一天
	err := r.db.WithContext(ctx).
		Where("start_date < ? AND COALESCE(end_date, start_date) >= ?", end, start).
		Order("start_date ASC, ban_window_id ASC").
		Find(&bans).Error
	return bans, translateError(err)
}

func (r *banWindowRepo) ListAll(ctx context.Context) ([]model.BanWindow, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	var bans []model.BanWindow
	err := r.db.WithContext(ctx).
		Order("start_date ASC, ban_window_id ASC").
		Find(&bans).Error
	return bans, translateError(err)
}

func (r *banWindowRepo) Delete(ctx context.Context, id, deletedBy string, at time.Time) (bool, error) {
	ctx, cancel := withQueryTimeout(ctx, r.timeout)
	defer cancel()

	result := r.db.WithContext(ctx).
		Model(&model.BanWindow{}).
		Where("ban_window_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": at,
		})
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}
