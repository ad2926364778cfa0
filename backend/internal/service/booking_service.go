package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/repository"
	pkgerrors "bandroom/backend/pkg/errors"
)

// ── 预约模块业务错误 ──

var (
	ErrBookingNotFound = errors.New("预约不存在")
	ErrSlotConflict    = errors.New("该时段已被预约")
	ErrSlotBanned      = errors.New("该时段已被管理员禁用")
	ErrUnauthorized    = errors.New("无权操作该预约")
	ErrInvalidDate     = errors.New("日期无效")
	ErrInvalidSlot     = errors.New("时段编号无效")
	ErrInvalidRange    = errors.New("日期区间无效")
	ErrEmptyPassword   = errors.New("预约密码不能为空")
)

// Auth 预约写操作的调用方身份
//   - UserID 与预约 OwnerID 相同：所有者
//   - Admin：管理员，等同所有者
//   - Grant：非所有者持有的访问授权 token
type Auth struct {
	UserID string
	Admin  bool
	Grant  string
}

// OwnerAuth 以所有者身份操作
func OwnerAuth(userID string) Auth { return Auth{UserID: userID} }

// GrantAuth 以访问授权操作
func GrantAuth(token string) Auth { return Auth{Grant: token} }

// BookingService 预约业务接口
type BookingService interface {
	Create(ctx context.Context, req *dto.CreateBookingRequest, ownerID string) (*dto.BookingResponse, error)
	// Get 包含已取消的预约
	Get(ctx context.Context, id string) (*dto.BookingResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateBookingRequest, auth Auth) (*dto.BookingResponse, error)
	// Delete 软删除；对已取消的预约为无操作的成功
	Delete(ctx context.Context, id string, auth Auth) error
	ListLog(ctx context.Context, req *dto.BookingLogRequest) ([]dto.BookingResponse, int64, error)
}

type bookingService struct {
	repo       *repository.Repository
	bans       BanResolver
	grants     GrantService
	cache      CacheInvalidator
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService 创建 BookingService 实例
func NewBookingService(
	repo *repository.Repository,
	bans BanResolver,
	grants GrantService,
	cache CacheInvalidator,
	bcryptCost int,
	logger *zap.Logger,
) BookingService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &bookingService{
		repo:       repo,
		bans:       bans,
		grants:     grants,
		cache:      cache,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// Create
// ═══════════════════════════════════════════════════════════
//
// 1. 校验日期与时段
// 2. 禁用检查：目标 (date, slot) 被任一规则禁用则 ErrSlotBanned，与是否有人预约无关
// 3. 插入；占用冲突由 (date, slot) 部分唯一索引原子判定，失败方得到 ErrSlotConflict
// 4. 提交后失效该日期的日历缓存

func (s *bookingService) Create(ctx context.Context, req *dto.CreateBookingRequest, ownerID string) (*dto.BookingResponse, error) {
	if req.Date.IsZero() {
		return nil, ErrInvalidDate
	}
	if req.Slot == nil || !model.Slot(*req.Slot).Valid() {
		return nil, ErrInvalidSlot
	}
	slot := model.Slot(*req.Slot)
	if req.Password == "" {
		return nil, ErrEmptyPassword
	}

	if err := s.checkBan(ctx, req.Date, slot); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error("预约密码哈希失败", zap.Error(err))
		return nil, err
	}

	booking := &model.Booking{
		BookingID:    uuid.NewString(),
		OwnerID:      ownerID,
		Date:         req.Date,
		Slot:         slot,
		BandName:     req.BandName,
		ContactName:  req.ContactName,
		PasswordHash: string(hash),
	}
	booking.CreatedBy = &ownerID
	booking.UpdatedBy = &ownerID

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateSlot) {
			return nil, ErrSlotConflict
		}
		s.logger.Error("创建预约失败",
			zap.String("date", req.Date.String()),
			zap.Int("slot", int(slot)),
			zap.Error(err),
		)
		return nil, err
	}

	s.cache.Invalidate(ctx, booking.Date)

	s.logger.Info("预约已创建",
		zap.String("id", booking.BookingID),
		zap.String("date", booking.Date.String()),
		zap.Int("slot", int(booking.Slot)),
		zap.String("owner", ownerID),
	)
	return toBookingResponse(booking), nil
}

// ────────────────────── Get ──────────────────────

func (s *bookingService) Get(ctx context.Context, id string) (*dto.BookingResponse, error) {
	booking, err := s.repo.Booking.GetByIDWithDeleted(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toBookingResponse(booking), nil
}

// ═══════════════════════════════════════════════════════════
// Update
// ═══════════════════════════════════════════════════════════
//
// 移动（date 或 slot 变化）只检查目标时段。
// 移动是一条 UPDATE：原时段的释放与目标时段的占用在同一行上原子完成，
// 其他写者不会观察到两个时段同时占用或同时空闲。

func (s *bookingService) Update(ctx context.Context, id string, req *dto.UpdateBookingRequest, auth Auth) (*dto.BookingResponse, error) {
	booking, err := s.repo.Booking.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if err := s.authorize(ctx, booking, auth); err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != booking.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	origin := booking.Date
	moved := false
	if req.Date != nil && *req.Date != booking.Date {
		if req.Date.IsZero() {
			return nil, ErrInvalidDate
		}
		booking.Date = *req.Date
		moved = true
	}
	if req.Slot != nil && model.Slot(*req.Slot) != booking.Slot {
		if !model.Slot(*req.Slot).Valid() {
			return nil, ErrInvalidSlot
		}
		booking.Slot = model.Slot(*req.Slot)
		moved = true
	}
	if req.BandName != nil {
		booking.BandName = *req.BandName
	}
	if req.ContactName != nil {
		booking.ContactName = *req.ContactName
	}

	if moved {
		if err := s.checkBan(ctx, booking.Date, booking.Slot); err != nil {
			return nil, err
		}
	}

	actor := auth.actor(booking.BookingID)
	booking.UpdatedBy = &actor

	if err := s.repo.Booking.Update(ctx, booking); err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrDuplicateSlot):
			return nil, ErrSlotConflict
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			// 被并发取消时按 NotFound 返回
			if _, gerr := s.repo.Booking.GetByID(ctx, id); errors.Is(gerr, gorm.ErrRecordNotFound) {
				return nil, ErrBookingNotFound
			}
			return nil, pkgerrors.ErrOptimisticLock
		}
		s.logger.Error("更新预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, origin, booking.Date)

	if moved {
		s.logger.Info("预约已移动",
			zap.String("id", id),
			zap.String("from", origin.String()),
			zap.String("to", booking.Date.String()),
			zap.Int("slot", int(booking.Slot)),
			zap.String("actor", actor),
		)
	}
	return toBookingResponse(booking), nil
}

// ═══════════════════════════════════════════════════════════
// Delete
// ═══════════════════════════════════════════════════════════

func (s *bookingService) Delete(ctx context.Context, id string, auth Auth) error {
	booking, err := s.repo.Booking.GetByIDWithDeleted(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		return err
	}

	if err := s.authorize(ctx, booking, auth); err != nil {
		return err
	}

	switch st := booking.State().(type) {
	case model.BookingDeleted:
		s.logger.Debug("预约已取消，忽略重复删除",
			zap.String("id", id),
			zap.Time("deleted_at", st.DeletedAt),
		)
		return nil
	case model.BookingActive:
	}

	changed, err := s.repo.Booking.SoftDelete(ctx, id, auth.actor(id), s.now())
	if err != nil {
		s.logger.Error("取消预约失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if !changed {
		return nil
	}

	s.cache.Invalidate(ctx, booking.Date)

	s.logger.Info("预约已取消",
		zap.String("id", id),
		zap.String("date", booking.Date.String()),
		zap.Int("slot", int(booking.Slot)),
	)
	return nil
}

// ────────────────────── ListLog ──────────────────────

func (s *bookingService) ListLog(ctx context.Context, req *dto.BookingLogRequest) ([]dto.BookingResponse, int64, error) {
	filter := repository.BookingLogFilter{OwnerID: req.OwnerID}
	if req.Start != "" {
		d, err := model.ParseDate(req.Start)
		if err != nil {
			return nil, 0, ErrInvalidRange
		}
		filter.Start = &d
	}
	if req.End != "" {
		d, err := model.ParseDate(req.End)
		if err != nil {
			return nil, 0, ErrInvalidRange
		}
		filter.End = &d
	}
	if filter.Start != nil && filter.End != nil && !filter.Start.Before(*filter.End) {
		return nil, 0, ErrInvalidRange
	}

	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	bookings, total, err := s.repo.Booking.ListLog(ctx, filter, page, pageSize)
	if err != nil {
		s.logger.Error("查询预约日志失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.BookingResponse, 0, len(bookings))
	for i := range bookings {
		result = append(result, *toBookingResponse(&bookings[i]))
	}
	return result, total, nil
}

// ── 内部辅助方法 ──

func (s *bookingService) checkBan(ctx context.Context, d model.Date, slot model.Slot) error {
	denied, err := s.bans.Resolve(ctx, model.SingleDay(d))
	if err != nil {
		return err
	}
	if denied[d].Has(slot) {
		return ErrSlotBanned
	}
	return nil
}

// authorize 所有者与管理员直接放行，否则校验访问授权
func (s *bookingService) authorize(ctx context.Context, booking *model.Booking, auth Auth) error {
	if auth.Admin || (auth.UserID != "" && auth.UserID == booking.OwnerID) {
		return nil
	}
	if auth.Grant == "" {
		return ErrUnauthorized
	}

	err := s.grants.Verify(ctx, auth.Grant, booking.BookingID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrGrantExpired):
		return ErrGrantExpired
	default:
		return ErrUnauthorized
	}
}

func (a Auth) actor(bookingID string) string {
	if a.UserID != "" {
		return a.UserID
	}
	return "grant:" + bookingID
}

func toBookingResponse(b *model.Booking) *dto.BookingResponse {
	interval := b.Slot.Interval()
	resp := &dto.BookingResponse{
		ID:          b.BookingID,
		OwnerID:     b.OwnerID,
		Date:        b.Date.String(),
		Slot:        int(b.Slot),
		SlotStart:   interval.Start,
		SlotEnd:     interval.End,
		BandName:    b.BandName,
		ContactName: b.ContactName,
		Version:     b.Version,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
	switch st := b.State().(type) {
	case model.BookingActive:
		resp.State = "active"
	case model.BookingDeleted:
		resp.State = "deleted"
		deletedAt := st.DeletedAt.Format(time.RFC3339)
		resp.DeletedAt = &deletedAt
	}
	return resp
}
