package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bandroom/backend/config"
	"bandroom/backend/internal/cache"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/repository"
	pkgerrors "bandroom/backend/pkg/errors"
	"bandroom/backend/pkg/jwt"
)

// ── Mock BookingRepository ──
// 互斥锁内检查 (date, slot) 唯一，模拟部分唯一索引

type mockBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]*model.Booking
	listCalls int
	failWith  error
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (m *mockBookingRepo) occupiedLocked(d model.Date, slot model.Slot, exceptID string) bool {
	for id, b := range m.bookings {
		if id != exceptID && !b.DeletedAt.Valid && b.Date == d && b.Slot == slot {
			return true
		}
	}
	return false
}

func (m *mockBookingRepo) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.occupiedLocked(b.Date, b.Slot, "") {
		return pkgerrors.ErrDuplicateSlot
	}
	now := time.Now()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.bookings[b.BookingID] = &cp
	return nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok && !b.DeletedAt.Valid {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) GetByIDWithDeleted(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) ListActiveInRange(_ context.Context, start, end model.Date) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var result []model.Booking
	for _, b := range m.bookings {
		if !b.DeletedAt.Valid && !b.Date.Before(start) && b.Date.Before(end) {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Slot < result[j].Slot
	})
	return result, nil
}

func (m *mockBookingRepo) Update(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[b.BookingID]
	if !ok || stored.DeletedAt.Valid || stored.Version != b.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if m.occupiedLocked(b.Date, b.Slot, b.BookingID) {
		return pkgerrors.ErrDuplicateSlot
	}
	b.Version++
	b.UpdatedAt = time.Now()
	cp := *b
	m.bookings[b.BookingID] = &cp
	return nil
}

func (m *mockBookingRepo) SoftDelete(_ context.Context, id, deletedBy string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.DeletedAt.Valid {
		return false, nil
	}
	b.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	b.DeletedBy = &deletedBy
	return true, nil
}

func (m *mockBookingRepo) ListLog(_ context.Context, filter repository.BookingLogFilter, page, pageSize int) ([]model.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Booking
	for _, b := range m.bookings {
		if filter.Start != nil && b.Date.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && !b.Date.Before(*filter.End) {
			continue
		}
		if filter.OwnerID != "" && b.OwnerID != filter.OwnerID {
			continue
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))
	if pageSize > 0 {
		from := (page - 1) * pageSize
		if from > len(result) {
			from = len(result)
		}
		to := from + pageSize
		if to > len(result) {
			to = len(result)
		}
		result = result[from:to]
	}
	return result, total, nil
}

// ── Mock BanWindowRepository ──

type mockBanWindowRepo struct {
	mu   sync.Mutex
	bans map[string]*model.BanWindow
}

func newMockBanWindowRepo() *mockBanWindowRepo {
	return &mockBanWindowRepo{bans: make(map[string]*model.BanWindow)}
}

func (m *mockBanWindowRepo) Create(_ context.Context, ban *model.BanWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ban.CreatedAt = time.Now()
	cp := *ban
	m.bans[ban.BanWindowID] = &cp
	return nil
}

func (m *mockBanWindowRepo) GetByID(_ context.Context, id string) (*model.BanWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bans[id]; ok && !b.DeletedAt.Valid {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBanWindowRepo) ListOverlapping(_ context.Context, start, end model.Date) ([]model.BanWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.BanWindow
	for _, b := range m.bans {
		if !b.DeletedAt.Valid && b.StartDate.Before(end) && !b.LastDate().Before(start) {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (m *mockBanWindowRepo) ListAll(_ context.Context) ([]model.BanWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.BanWindow
	for _, b := range m.bans {
		if !b.DeletedAt.Valid {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (m *mockBanWindowRepo) Delete(_ context.Context, id, deletedBy string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bans[id]
	if !ok || b.DeletedAt.Valid {
		return false, nil
	}
	b.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
	b.DeletedBy = &deletedBy
	return true, nil
}

// ── 测试环境 ──

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc      *Service
	bookings *mockBookingRepo
	bans     *mockBanWindowRepo
	cache    *cache.RangeCache
	provider *cache.MemoryProvider
	clock    *testClock
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "https://bandroom.example/"},
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-key-for-unit-testing",
			AccessTokenTTL: 15 * time.Minute,
			GrantTTL:       10 * time.Minute,
		},
		Booking: config.BookingConfig{
			BcryptCost: bcrypt.MinCost,
			Timezone:   "Asia/Tokyo",
		},
	}
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	bookings := newMockBookingRepo()
	bans := newMockBanWindowRepo()
	repo := &repository.Repository{Booking: bookings, BanWindow: bans}

	clock := &testClock{now: time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)}
	jwtMgr := jwt.NewManager(&cfg.Auth).WithClock(clock.Now)

	provider := cache.NewMemoryProvider(128, time.Minute)
	rangeCache := cache.NewRangeCache(provider, time.Minute, zap.NewNop())

	return &testEnv{
		svc:      NewService(cfg, repo, jwtMgr, rangeCache, zap.NewNop()),
		bookings: bookings,
		bans:     bans,
		cache:    rangeCache,
		provider: provider,
		clock:    clock,
	}
}

func slotPtr(i int) *int { return &i }

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func datePtr(s string) *model.Date {
	d := model.MustParseDate(s)
	return &d
}

func dateRange(start, end string) model.DateRange {
	return model.DateRange{Start: model.MustParseDate(start), End: model.MustParseDate(end)}
}
