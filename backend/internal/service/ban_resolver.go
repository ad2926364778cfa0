package service

import "bandroom/backend/internal/model"

// ── 禁用规则展开 ──────────────────────────────────────────────
//
// 规则按类型紧凑存储，每次读取时展开为 (日期, 时段) 的禁用集合：
//   - single:  仅 StartDate 当天的 [StartSlot, EndSlot]
//   - period:  [StartDate, EndDate] 每天
//   - regular: [StartDate, EndDate] 内 ISO 星期等于 Weekday 的日期
//
// 同一天多条规则取并集。部分时段的规则只关闭这些时段，不关闭整天。
// ─────────────────────────────────────────────────────────────

// ResolveBans 展开 bans 在区间 r 内的禁用时段，仅返回非空的日期
func ResolveBans(bans []model.BanWindow, r model.DateRange) map[model.Date]model.SlotSet {
	denied := make(map[model.Date]model.SlotSet)
	if !r.Valid() {
		return denied
	}

	for i := range bans {
		ban := &bans[i]
		if ban.DeletedAt.Valid {
			continue
		}

		span := ban.Span()
		start, end := span.Start, span.End
		if start.Before(r.Start) {
			start = r.Start
		}
		if end.After(r.End) {
			end = r.End
		}

		for d := start; d.Before(end); d = d.AddDays(1) {
			if set := ban.Denies(d); !set.Empty() {
				denied[d] = denied[d].Union(set)
			}
		}
	}
	return denied
}

// bannedDates 规则实际禁用的全部日期，用于失效缓存
func bannedDates(ban *model.BanWindow) []model.Date {
	var dates []model.Date
	for _, d := range ban.Span().Days() {
		if !ban.Denies(d).Empty() {
			dates = append(dates, d)
		}
	}
	return dates
}
