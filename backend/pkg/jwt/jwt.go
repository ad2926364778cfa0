package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bandroom/backend/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

const (
	issuer = "bandroom"

	tokenTypeAccess = "access"
	tokenTypeGrant  = "grant"
)

// Claims 访问令牌声明（会话由上游签发，本服务只负责校验）
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwtv5.RegisteredClaims
}

// GrantClaims 访问授权声明，仅对 BookingID 对应的一条预约有效
type GrantClaims struct {
	BookingID string `json:"booking_id"`
	TokenType string `json:"token_type"`
	jwtv5.RegisteredClaims
}

// Manager JWT 管理器
type Manager struct {
	secret         []byte
	accessTokenTTL time.Duration
	grantTTL       time.Duration
	now            func() time.Time
}

// NewManager 创建 JWT 管理器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:         []byte(cfg.JWTSecret),
		accessTokenTTL: cfg.AccessTokenTTL,
		grantTTL:       cfg.GrantTTL,
		now:            time.Now,
	}
}

// WithClock 替换时钟源，返回同一个 Manager
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GrantTTL 访问授权有效期
func (m *Manager) GrantTTL() time.Duration {
	return m.grantTTL
}

// GenerateAccessToken 生成 Access Token
func (m *Manager) GenerateAccessToken(userID, role string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.accessTokenTTL)),
			Issuer:    issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Access Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// GenerateGrantToken 为指定预约签发访问授权，返回 token 与过期时间
func (m *Manager) GenerateGrantToken(bookingID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := jwtv5.NewNumericDate(now.Add(m.grantTTL))
	claims := GrantClaims{
		BookingID: bookingID,
		TokenType: tokenTypeGrant,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   bookingID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: expiresAt,
			Issuer:    issuer,
		},
	}

	token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt.Time, nil
}

// ParseGrantToken 解析并验证访问授权；now >= exp 时返回 ErrTokenExpired
// 签名有效但已过期时仍返回 claims，便于调用方区分授权对象
func (m *Manager) ParseGrantToken(tokenString string) (*GrantClaims, error) {
	claims := &GrantClaims{}
	err := m.parse(tokenString, claims)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, err
	}
	if claims.TokenType != tokenTypeGrant || claims.BookingID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, err
}

func (m *Manager) parse(tokenString string, claims jwtv5.Claims) error {
	token, err := jwtv5.ParseWithClaims(tokenString, claims, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	},
		jwtv5.WithTimeFunc(m.now),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
