package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/model"
	pkgerrors "bandroom/backend/pkg/errors"
)

// ── 测试辅助 ──

func createBooking(t *testing.T, env *testEnv, date string, slot int, owner string) *dto.BookingResponse {
	t.Helper()
	resp, err := env.svc.Booking.Create(context.Background(), &dto.CreateBookingRequest{
		Date:        model.MustParseDate(date),
		Slot:        slotPtr(slot),
		BandName:    "The Rehearsals",
		ContactName: "Aoi",
		Password:    "secret-pass",
	}, owner)
	if err != nil {
		t.Fatalf("创建预约失败: %v", err)
	}
	return resp
}

func occupantAt(t *testing.T, env *testEnv, date string, slot int) *dto.SlotOccupant {
	t.Helper()
	d := model.MustParseDate(date)
	slice, err := env.svc.Calendar.Get(context.Background(), model.DateRange{Start: d.AddDays(-3), End: d.AddDays(4)})
	if err != nil {
		t.Fatalf("查询日历失败: %v", err)
	}
	day, ok := slice.Days[date]
	if !ok {
		t.Fatalf("日历中缺少日期 %s", date)
	}
	return day[slot]
}

// ── Create ──

func TestBookingService_Create_RoundTrip(t *testing.T) {
	env := setupTestService(t)

	resp := createBooking(t, env, "2025-04-10", 3, "user-1")
	if resp.State != "active" || resp.Version != 1 {
		t.Errorf("期望 active/version=1，实际=%s/%d", resp.State, resp.Version)
	}
	if resp.SlotStart != "13:30" || resp.SlotEnd != "15:00" {
		t.Errorf("时段 3 应为 13:30-15:00，实际=%s-%s", resp.SlotStart, resp.SlotEnd)
	}

	occ := occupantAt(t, env, "2025-04-10", 3)
	if occ == nil || occ.Kind != dto.OccupantBooking || occ.ID != resp.ID {
		t.Fatalf("日历应在时段 3 显示新预约，实际=%+v", occ)
	}
	if occ.BandName != "The Rehearsals" || occ.ContactName != "Aoi" {
		t.Errorf("预约摘要不正确: %+v", occ)
	}
}

func TestBookingService_Create_PasswordIsHashed(t *testing.T) {
	env := setupTestService(t)
	resp := createBooking(t, env, "2025-04-10", 0, "user-1")

	stored, err := env.bookings.GetByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "secret-pass" {
		t.Error("密码应以哈希形式保存")
	}
}

func TestBookingService_Create_InvalidInput(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.svc.Booking.Create(ctx, &dto.CreateBookingRequest{Slot: slotPtr(1), Password: "pass"}, "user-1")
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("缺少日期应返回 ErrInvalidDate，实际: %v", err)
	}

	_, err = env.svc.Booking.Create(ctx, &dto.CreateBookingRequest{
		Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(8), Password: "pass",
	}, "user-1")
	if !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("时段 8 应返回 ErrInvalidSlot，实际: %v", err)
	}

	_, err = env.svc.Booking.Create(ctx, &dto.CreateBookingRequest{
		Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(1), BandName: "The Rehearsals",
	}, "user-1")
	if !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("空密码应返回 ErrEmptyPassword，实际: %v", err)
	}
	if n := len(env.bookings.bookings); n != 0 {
		t.Errorf("输入无效时不应写入预约，实际 %d 条", n)
	}
}

func TestBookingService_Create_Conflict(t *testing.T) {
	env := setupTestService(t)
	createBooking(t, env, "2025-04-10", 3, "user-1")

	_, err := env.svc.Booking.Create(context.Background(), &dto.CreateBookingRequest{
		Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(3),
		BandName: "Other", ContactName: "B", Password: "pass",
	}, "user-2")
	if !errors.Is(err, ErrSlotConflict) {
		t.Errorf("期望 ErrSlotConflict，实际: %v", err)
	}
}

func TestBookingService_Create_ConcurrentSameSlot(t *testing.T) {
	env := setupTestService(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := env.svc.Booking.Create(context.Background(), &dto.CreateBookingRequest{
				Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(3),
				BandName: "Band", ContactName: "C", Password: "pass",
			}, "user")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded = append(succeeded, resp.ID)
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(succeeded) != 1 || conflicts != workers-1 {
		t.Fatalf("期望 1 个成功 %d 个冲突，实际成功=%d 冲突=%d", workers-1, len(succeeded), conflicts)
	}
	occ := occupantAt(t, env, "2025-04-10", 3)
	if occ == nil || occ.ID != succeeded[0] {
		t.Errorf("日历应显示唯一成功的预约，实际=%+v", occ)
	}
}

func TestBookingService_Create_BannedByEveryKind(t *testing.T) {
	cases := []struct {
		name string
		req  dto.CreateBanRequest
	}{
		{"single", dto.CreateBanRequest{
			Kind: "single", StartDate: model.MustParseDate("2025-04-10"), StartSlot: slotPtr(3),
		}},
		{"period", dto.CreateBanRequest{
			Kind: "period", StartDate: model.MustParseDate("2025-04-08"), EndDate: datePtr("2025-04-12"),
			StartSlot: slotPtr(2), EndSlot: slotPtr(4),
		}},
		{"regular", dto.CreateBanRequest{
			Kind: "regular", StartDate: model.MustParseDate("2025-04-01"), EndDate: datePtr("2025-04-30"),
			StartSlot: slotPtr(3), Weekday: intPtr(4), // 2025-04-10 为周四
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTestService(t)
			ctx := context.Background()
			req := tc.req
			if _, err := env.svc.Ban.Create(ctx, &req, "admin"); err != nil {
				t.Fatalf("创建禁用规则失败: %v", err)
			}

			_, err := env.svc.Booking.Create(ctx, &dto.CreateBookingRequest{
				Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(3),
				BandName: "Band", ContactName: "C", Password: "pass",
			}, "user-1")
			if !errors.Is(err, ErrSlotBanned) {
				t.Errorf("期望 ErrSlotBanned，实际: %v", err)
			}

			// 未被禁用的时段不受影响
			if _, err := env.svc.Booking.Create(ctx, &dto.CreateBookingRequest{
				Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(7),
				BandName: "Band", ContactName: "C", Password: "pass",
			}, "user-1"); err != nil {
				t.Errorf("时段 7 未被禁用，应可预约: %v", err)
			}
		})
	}
}

func TestBookingService_Create_StorageErrorSurfaced(t *testing.T) {
	env := setupTestService(t)
	env.bookings.failWith = pkgerrors.ErrTransient

	_, err := env.svc.Booking.Create(context.Background(), &dto.CreateBookingRequest{
		Date: model.MustParseDate("2025-04-10"), Slot: slotPtr(1),
		BandName: "Band", ContactName: "C", Password: "pass",
	}, "user-1")
	if !errors.Is(err, pkgerrors.ErrTransient) {
		t.Errorf("期望透传 ErrTransient，实际: %v", err)
	}
}

// ── Update ──

func TestBookingService_Update_MoveFreesOrigin(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	b := createBooking(t, env, "2025-04-10", 1, "user-1")

	// 先缓存一次区间
	if occ := occupantAt(t, env, "2025-04-10", 1); occ == nil {
		t.Fatal("移动前原时段应被占用")
	}

	resp, err := env.svc.Booking.Update(ctx, b.ID, &dto.UpdateBookingRequest{
		Date: datePtr("2025-04-11"), Slot: slotPtr(5),
	}, OwnerAuth("user-1"))
	if err != nil {
		t.Fatalf("移动预约失败: %v", err)
	}
	if resp.Date != "2025-04-11" || resp.Slot != 5 || resp.Version != 2 {
		t.Errorf("移动结果不正确: %+v", resp)
	}

	slice, err := env.svc.Calendar.Get(ctx, dateRange("2025-04-07", "2025-04-14"))
	if err != nil {
		t.Fatalf("查询日历失败: %v", err)
	}
	if occ := slice.Days["2025-04-10"][1]; occ != nil {
		t.Errorf("原时段应为空，实际=%+v", occ)
	}
	if occ := slice.Days["2025-04-11"][5]; occ == nil || occ.ID != b.ID {
		t.Errorf("目标时段应被该预约占用，实际=%+v", occ)
	}
}

func TestBookingService_Update_MoveToOccupiedSlot(t *testing.T) {
	env := setupTestService(t)
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	createBooking(t, env, "2025-04-11", 5, "user-2")

	_, err := env.svc.Booking.Update(context.Background(), a.ID, &dto.UpdateBookingRequest{
		Date: datePtr("2025-04-11"), Slot: slotPtr(5),
	}, OwnerAuth("user-1"))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("期望 ErrSlotConflict，实际: %v", err)
	}
	if occ := occupantAt(t, env, "2025-04-10", 1); occ == nil || occ.ID != a.ID {
		t.Errorf("移动失败后原时段仍应被占用，实际=%+v", occ)
	}
}

func TestBookingService_Update_MoveToBannedSlot(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	if _, err := env.svc.Ban.Create(ctx, &dto.CreateBanRequest{
		Kind: "single", StartDate: model.MustParseDate("2025-04-12"), StartSlot: slotPtr(0),
	}, "admin"); err != nil {
		t.Fatalf("创建禁用规则失败: %v", err)
	}

	_, err := env.svc.Booking.Update(ctx, a.ID, &dto.UpdateBookingRequest{
		Date: datePtr("2025-04-12"), Slot: slotPtr(0),
	}, OwnerAuth("user-1"))
	if !errors.Is(err, ErrSlotBanned) {
		t.Errorf("期望 ErrSlotBanned，实际: %v", err)
	}
}

func TestBookingService_Update_InPlaceSkipsBanCheck(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	// 预约之后新增的禁用只阻止新预约
	if _, err := env.svc.Ban.Create(ctx, &dto.CreateBanRequest{
		Kind: "single", StartDate: model.MustParseDate("2025-04-10"), StartSlot: slotPtr(1),
	}, "admin"); err != nil {
		t.Fatalf("创建禁用规则失败: %v", err)
	}

	resp, err := env.svc.Booking.Update(ctx, a.ID, &dto.UpdateBookingRequest{
		BandName: strPtr("Renamed"),
	}, OwnerAuth("user-1"))
	if err != nil {
		t.Fatalf("原地修改不应检查禁用: %v", err)
	}
	if resp.BandName != "Renamed" {
		t.Errorf("期望 BandName=Renamed，实际=%s", resp.BandName)
	}
	if occ := occupantAt(t, env, "2025-04-10", 1); occ == nil || occ.Kind != dto.OccupantBooking || occ.BandName != "Renamed" {
		t.Errorf("已有预约应继续显示为占用且反映修改，实际=%+v", occ)
	}
}

func TestBookingService_Update_Authorization(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	other := createBooking(t, env, "2025-04-10", 2, "user-1")
	change := &dto.UpdateBookingRequest{ContactName: strPtr("Mio")}

	if _, err := env.svc.Booking.Update(ctx, a.ID, change, OwnerAuth("user-2")); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("非所有者且无授权应返回 ErrUnauthorized，实际: %v", err)
	}

	grant, err := env.svc.Grant.Issue(ctx, a.ID, "secret-pass")
	if err != nil {
		t.Fatalf("签发授权失败: %v", err)
	}

	auth := Auth{UserID: "user-2", Grant: grant.Token}
	if _, err := env.svc.Booking.Update(ctx, a.ID, change, auth); err != nil {
		t.Errorf("持有有效授权应可修改: %v", err)
	}
	// 未过期前可重复使用
	if _, err := env.svc.Booking.Update(ctx, a.ID, &dto.UpdateBookingRequest{BandName: strPtr("Again")}, auth); err != nil {
		t.Errorf("授权应可重复使用: %v", err)
	}
	// 不能用于其他预约
	if _, err := env.svc.Booking.Update(ctx, other.ID, change, auth); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("授权不能用于其他预约，实际: %v", err)
	}

	env.clock.Advance(10 * time.Minute)
	if _, err := env.svc.Booking.Update(ctx, a.ID, change, auth); !errors.Is(err, ErrGrantExpired) {
		t.Errorf("授权过期应返回 ErrGrantExpired，实际: %v", err)
	}

	if _, err := env.svc.Booking.Update(ctx, a.ID, change, Auth{UserID: "admin-1", Admin: true}); err != nil {
		t.Errorf("管理员应可修改任意预约: %v", err)
	}
}

func TestBookingService_Update_DeletedIsNotFound(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	if err := env.svc.Booking.Delete(ctx, a.ID, OwnerAuth("user-1")); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	_, err := env.svc.Booking.Update(ctx, a.ID, &dto.UpdateBookingRequest{BandName: strPtr("x")}, OwnerAuth("user-1"))
	if !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("修改已取消的预约应返回 ErrBookingNotFound，实际: %v", err)
	}
}

func TestBookingService_Update_StaleVersion(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")

	if _, err := env.svc.Booking.Update(ctx, a.ID, &dto.UpdateBookingRequest{
		BandName: strPtr("v2"), Version: intPtr(1),
	}, OwnerAuth("user-1")); err != nil {
		t.Fatalf("版本匹配时应成功: %v", err)
	}

	_, err := env.svc.Booking.Update(ctx, a.ID, &dto.UpdateBookingRequest{
		BandName: strPtr("v3"), Version: intPtr(1),
	}, OwnerAuth("user-1"))
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("过期版本应返回 ErrOptimisticLock，实际: %v", err)
	}
}

// ── Delete ──

func TestBookingService_Delete_Idempotent(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	occupantAt(t, env, "2025-04-10", 1)

	if err := env.svc.Booking.Delete(ctx, a.ID, OwnerAuth("user-1")); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	first, _ := env.bookings.GetByIDWithDeleted(ctx, a.ID)

	if err := env.svc.Booking.Delete(ctx, a.ID, OwnerAuth("user-1")); err != nil {
		t.Errorf("重复删除应为无操作的成功，实际: %v", err)
	}
	second, _ := env.bookings.GetByIDWithDeleted(ctx, a.ID)
	if !first.DeletedAt.Time.Equal(second.DeletedAt.Time) {
		t.Error("重复删除不应改变取消时间")
	}

	if occ := occupantAt(t, env, "2025-04-10", 1); occ != nil {
		t.Errorf("已取消的预约不应出现在日历中，实际=%+v", occ)
	}

	got, err := env.svc.Booking.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("已取消的预约仍应可查询: %v", err)
	}
	if got.State != "deleted" || got.DeletedAt == nil {
		t.Errorf("期望 deleted 状态，实际=%s", got.State)
	}

	// 时段释放后可再次预约
	createBooking(t, env, "2025-04-10", 1, "user-2")
}

func TestBookingService_Delete_RequiresAuth(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")

	if err := env.svc.Booking.Delete(ctx, a.ID, OwnerAuth("user-2")); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("期望 ErrUnauthorized，实际: %v", err)
	}
	if err := env.svc.Booking.Delete(ctx, "missing", OwnerAuth("user-1")); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("期望 ErrBookingNotFound，实际: %v", err)
	}

	grant, err := env.svc.Grant.Issue(ctx, a.ID, "secret-pass")
	if err != nil {
		t.Fatalf("签发授权失败: %v", err)
	}
	if err := env.svc.Booking.Delete(ctx, a.ID, GrantAuth(grant.Token)); err != nil {
		t.Errorf("持有授权应可删除: %v", err)
	}
	got, _ := env.bookings.GetByIDWithDeleted(ctx, a.ID)
	if got.DeletedBy == nil || *got.DeletedBy != "grant:"+a.ID {
		t.Errorf("期望 deleted_by=grant:%s，实际=%v", a.ID, got.DeletedBy)
	}
}

// ── ListLog ──

func TestBookingService_ListLog_IncludesDeleted(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	a := createBooking(t, env, "2025-04-10", 1, "user-1")
	createBooking(t, env, "2025-04-11", 2, "user-1")
	createBooking(t, env, "2025-05-01", 2, "user-2")
	if err := env.svc.Booking.Delete(ctx, a.ID, OwnerAuth("user-1")); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	list, total, err := env.svc.Booking.ListLog(ctx, &dto.BookingLogRequest{Start: "2025-04-01", End: "2025-05-01"})
	if err != nil {
		t.Fatalf("ListLog 失败: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("期望 2 条，实际 total=%d len=%d", total, len(list))
	}
	deleted := 0
	for _, b := range list {
		if b.State == "deleted" {
			deleted++
		}
	}
	if deleted != 1 {
		t.Errorf("日志应包含 1 条已取消的预约，实际=%d", deleted)
	}

	if _, _, err := env.svc.Booking.ListLog(ctx, &dto.BookingLogRequest{Start: "2025-05-01", End: "2025-04-01"}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("倒置区间应返回 ErrInvalidRange，实际: %v", err)
	}
}
