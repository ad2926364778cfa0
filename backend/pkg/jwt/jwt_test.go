package jwt

import (
	"testing"
	"time"

	"bandroom/backend/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 15 * time.Minute,
		GrantTTL:       10 * time.Minute,
	})
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID)
	}
	if claims.Role != "admin" {
		t.Errorf("期望 Role=admin，实际=%s", claims.Role)
	}
	if claims.Issuer != "bandroom" {
		t.Errorf("期望 Issuer=bandroom，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	m := newTestManager()

	if _, err := m.ParseToken("invalid.token.string"); err != ErrTokenInvalid {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m1 := newTestManager()
	m2 := NewManager(&config.AuthConfig{
		JWTSecret:      "different-secret-key",
		AccessTokenTTL: 15 * time.Minute,
	})

	token, _ := m1.GenerateAccessToken("user-1", "admin")
	if _, err := m2.ParseToken(token); err == nil {
		t.Error("不同密钥签名的 token 不应通过验证")
	}
}

func TestParseToken_RejectsGrantToken(t *testing.T) {
	m := newTestManager()

	grant, _, err := m.GenerateGrantToken("booking-1")
	if err != nil {
		t.Fatalf("GenerateGrantToken 失败: %v", err)
	}
	if _, err := m.ParseToken(grant); err != ErrTokenInvalid {
		t.Errorf("授权 token 不能当作 Access Token 使用，实际: %v", err)
	}
}

func TestGrantToken_RoundTrip(t *testing.T) {
	base := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager().WithClock(func() time.Time { return base })

	token, expiresAt, err := m.GenerateGrantToken("booking-1")
	if err != nil {
		t.Fatalf("GenerateGrantToken 失败: %v", err)
	}
	if !expiresAt.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("期望过期时间 %v，实际 %v", base.Add(10*time.Minute), expiresAt)
	}

	claims, err := m.ParseGrantToken(token)
	if err != nil {
		t.Fatalf("ParseGrantToken 失败: %v", err)
	}
	if claims.BookingID != "booking-1" {
		t.Errorf("期望 BookingID=booking-1，实际=%s", claims.BookingID)
	}
}

func TestGrantToken_ExpiredAtBoundary(t *testing.T) {
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager().WithClock(func() time.Time { return now })

	token, expiresAt, _ := m.GenerateGrantToken("booking-1")

	// now == expiresAt 视为已过期
	now = expiresAt
	if _, err := m.ParseGrantToken(token); err != ErrTokenExpired {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}

	now = expiresAt.Add(-time.Second)
	if _, err := m.ParseGrantToken(token); err != nil {
		t.Errorf("过期前应有效，实际: %v", err)
	}
}

func TestParseGrantToken_RejectsAccessToken(t *testing.T) {
	m := newTestManager()

	access, _ := m.GenerateAccessToken("user-1", "member")
	if _, err := m.ParseGrantToken(access); err != ErrTokenInvalid {
		t.Errorf("Access Token 不能当作授权使用，实际: %v", err)
	}
}

func TestParseGrantToken_ExpiredKeepsClaims(t *testing.T) {
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager().WithClock(func() time.Time { return now })

	token, _, _ := m.GenerateGrantToken("booking-1")
	now = now.Add(time.Hour)

	claims, err := m.ParseGrantToken(token)
	if err != ErrTokenExpired {
		t.Fatalf("期望 ErrTokenExpired，实际: %v", err)
	}
	if claims == nil || claims.BookingID != "booking-1" {
		t.Errorf("过期时仍应返回 claims，实际: %+v", claims)
	}
}
