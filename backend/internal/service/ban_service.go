package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/repository"
)

// ── 禁用规则模块业务错误 ──

var (
	ErrBanNotFound = errors.New("禁用规则不存在")
	ErrInvalidBan  = errors.New("禁用规则参数无效")
)

// BanResolver 将禁用规则展开为指定区间内的 (日期 → 禁用时段)
type BanResolver interface {
	Resolve(ctx context.Context, r model.DateRange) (map[model.Date]model.SlotSet, error)
}

// BanService 禁用规则业务接口（管理员）
type BanService interface {
	BanResolver
	Create(ctx context.Context, req *dto.CreateBanRequest, callerID string) (*dto.BanResponse, error)
	GetByID(ctx context.Context, id string) (*dto.BanResponse, error)
	List(ctx context.Context, req *dto.BanListRequest) ([]dto.BanResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
}

type banService struct {
	repo   *repository.Repository
	cache  CacheInvalidator
	logger *zap.Logger
	now    func() time.Time
}

// NewBanService 创建 BanService 实例
func NewBanService(repo *repository.Repository, cache CacheInvalidator, logger *zap.Logger) BanService {
	return &banService{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// ────────────────────── Resolve ──────────────────────

func (s *banService) Resolve(ctx context.Context, r model.DateRange) (map[model.Date]model.SlotSet, error) {
	if !r.Valid() {
		return nil, ErrInvalidRange
	}
	bans, err := s.repo.BanWindow.ListOverlapping(ctx, r.Start, r.End)
	if err != nil {
		s.logger.Error("查询禁用规则失败", zap.String("range", r.String()), zap.Error(err))
		return nil, err
	}
	return ResolveBans(bans, r), nil
}

// ────────────────────── Create ──────────────────────

func (s *banService) Create(ctx context.Context, req *dto.CreateBanRequest, callerID string) (*dto.BanResponse, error) {
	ban := &model.BanWindow{
		BanWindowID: uuid.NewString(),
		Kind:        model.BanKind(req.Kind),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Weekday:     req.Weekday,
		Description: req.Description,
	}
	if req.StartSlot != nil {
		ban.StartSlot = model.Slot(*req.StartSlot)
	}
	if req.EndSlot != nil {
		endSlot := model.Slot(*req.EndSlot)
		ban.EndSlot = &endSlot
	}
	// single 规则只看 StartDate
	if ban.Kind == model.BanSingle {
		ban.EndDate = nil
	}
	if err := ban.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBan, err)
	}
	ban.CreatedBy = &callerID
	ban.UpdatedBy = &callerID

	if err := s.repo.BanWindow.Create(ctx, ban); err != nil {
		s.logger.Error("创建禁用规则失败", zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, bannedDates(ban)...)

	s.logger.Info("禁用规则已创建",
		zap.String("id", ban.BanWindowID),
		zap.String("kind", string(ban.Kind)),
		zap.String("caller", callerID),
	)
	return toBanResponse(ban), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *banService) GetByID(ctx context.Context, id string) (*dto.BanResponse, error) {
	ban, err := s.repo.BanWindow.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBanNotFound
		}
		s.logger.Error("查询禁用规则失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toBanResponse(ban), nil
}

// ────────────────────── List ──────────────────────

func (s *banService) List(ctx context.Context, req *dto.BanListRequest) ([]dto.BanResponse, error) {
	var (
		bans []model.BanWindow
		err  error
	)
	if req.Start != "" && req.End != "" {
		r, rerr := ParseRange(req.Start, req.End)
		if rerr != nil {
			return nil, rerr
		}
		bans, err = s.repo.BanWindow.ListOverlapping(ctx, r.Start, r.End)
	} else {
		bans, err = s.repo.BanWindow.ListAll(ctx)
	}
	if err != nil {
		s.logger.Error("列出禁用规则失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.BanResponse, 0, len(bans))
	for i := range bans {
		result = append(result, *toBanResponse(&bans[i]))
	}
	return result, nil
}

// ────────────────────── Delete ──────────────────────

func (s *banService) Delete(ctx context.Context, id string, callerID string) error {
	ban, err := s.repo.BanWindow.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBanNotFound
		}
		s.logger.Error("查询禁用规则失败", zap.String("id", id), zap.Error(err))
		return err
	}

	changed, err := s.repo.BanWindow.Delete(ctx, id, callerID, s.now())
	if err != nil {
		s.logger.Error("删除禁用规则失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if !changed {
		return ErrBanNotFound
	}

	s.cache.Invalidate(ctx, bannedDates(ban)...)
	return nil
}

// ── 内部辅助方法 ──

// ParseRange 解析 YYYY-MM-DD 格式的半开区间 [start, end)
func ParseRange(start, end string) (model.DateRange, error) {
	s, err := model.ParseDate(start)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	e, err := model.ParseDate(end)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	r, err := model.NewDateRange(s, e)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return r, nil
}

func toBanResponse(ban *model.BanWindow) *dto.BanResponse {
	resp := &dto.BanResponse{
		ID:          ban.BanWindowID,
		Kind:        string(ban.Kind),
		StartDate:   ban.StartDate.String(),
		StartSlot:   int(ban.StartSlot),
		Weekday:     ban.Weekday,
		Description: ban.Description,
		CreatedAt:   ban.CreatedAt.Format(time.RFC3339),
	}
	if ban.EndDate != nil {
		end := ban.EndDate.String()
		resp.EndDate = &end
	}
	if ban.EndSlot != nil {
		endSlot := int(*ban.EndSlot)
		resp.EndSlot = &endSlot
	}
	return resp
}
