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
	"bandroom/backend/internal/repository"
	"bandroom/backend/pkg/jwt"
)

// ── 访问授权模块业务错误 ──

var (
	// ErrGrantInvalid 预约不存在、密码错误或授权不属于该预约，三者不作区分
	ErrGrantInvalid = errors.New("访问授权无效")
	ErrGrantExpired = errors.New("访问授权已过期")
)

// GrantService 访问授权接口
//
// 授权是绑定单条预约的短期令牌，过期前可重复使用。
// 同一预约的并发申请各自得到独立有效的令牌。
type GrantService interface {
	// Issue 校验预约密码并签发授权
	Issue(ctx context.Context, bookingID, password string) (*dto.GrantResponse, error)
	// Verify 校验 token 是否为 bookingID 签发且未过期
	Verify(ctx context.Context, token, bookingID string) error
}

type grantService struct {
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	logger *zap.Logger

	// 预约不存在时用于比对的哈希，与真实密码哈希同等开销
	dummyHash []byte
	compare   func(hash, password []byte) error
}

// NewGrantService 创建 GrantService 实例，bcryptCost 与预约密码哈希一致
func NewGrantService(repo *repository.Repository, jwtMgr *jwt.Manager, bcryptCost int, logger *zap.Logger) GrantService {
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		logger.Warn("生成占位哈希失败，使用默认强度", zap.Error(err))
		dummy, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	}
	return &grantService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		logger:    logger,
		dummyHash: dummy,
		compare:   bcrypt.CompareHashAndPassword,
	}
}

func (s *grantService) Issue(ctx context.Context, bookingID, password string) (*dto.GrantResponse, error) {
	booking, err := s.repo.Booking.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 与密码错误耗时一致，不泄露预约是否存在
			_ = s.compare(s.dummyHash, []byte(password))
			return nil, ErrGrantInvalid
		}
		s.logger.Error("查询预约失败", zap.String("booking_id", bookingID), zap.Error(err))
		return nil, err
	}

	if err := s.compare([]byte(booking.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("预约密码校验失败", zap.String("booking_id", bookingID))
		return nil, ErrGrantInvalid
	}

	token, expiresAt, err := s.jwtMgr.GenerateGrantToken(booking.BookingID)
	if err != nil {
		s.logger.Error("签发访问授权失败", zap.Error(err))
		return nil, err
	}

	return &dto.GrantResponse{
		Token:     token,
		BookingID: booking.BookingID,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *grantService) Verify(_ context.Context, token, bookingID string) error {
	if token == "" || bookingID == "" {
		return ErrGrantInvalid
	}

	claims, err := s.jwtMgr.ParseGrantToken(token)
	if claims == nil || claims.BookingID != bookingID {
		return ErrGrantInvalid
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrGrantExpired
	}
	if err != nil {
		return ErrGrantInvalid
	}
	return nil
}
