package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "bandroom/backend/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db           *gorm.DB
	queryTimeout time.Duration

	Booking   BookingRepository
	BanWindow BanWindowRepository
}

// Option Repository 构造选项
type Option func(*Repository)

// WithQueryTimeout 为每条语句设置超时，超时后返回 ErrTransient；d<=0 表示不限制
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Repository) { r.queryTimeout = d }
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.Booking = &bookingRepo{db: db, timeout: r.queryTimeout}
	r.BanWindow = &banWindowRepo{db: db, timeout: r.queryTimeout}
	return r
}

// BeginTx 开启事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, translateError(tx.Error)
	}
	return tx, nil
}

// WithTx 返回绑定到事务 tx 的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx, WithQueryTimeout(r.queryTimeout))
}

func withQueryTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// translateError 将驱动错误转换为存储层语义错误
//   - 唯一约束冲突 → ErrDuplicateSlot
//   - 超时 / 连接失败 → ErrTransient（调用方可重试，本层不重试）
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgerrors.ErrDuplicateSlot
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gorm.ErrInvalidDB):
		return fmt.Errorf("%w: %v", pkgerrors.ErrTransient, err)
	}
	return err
}
