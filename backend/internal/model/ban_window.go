package model

import (
	"errors"
	"fmt"
)

// BanKind 禁用规则类型
type BanKind string

const (
	// BanSingle 单日：仅禁用 StartDate 当天的时段
	BanSingle BanKind = "single"
	// BanPeriod 连续期间：[StartDate, EndDate] 每天禁用
	BanPeriod BanKind = "period"
	// BanRegular 定期：[StartDate, EndDate] 内星期匹配 Weekday 的日期禁用
	BanRegular BanKind = "regular"
)

// BanWindow 管理员设置的禁用规则 — 对应 ban_windows
// Period / Regular 不展开为逐日记录，每次读取时计算
type BanWindow struct {
	BanWindowID string  `gorm:"type:uuid;primaryKey"          json:"ban_window_id"`
	Kind        BanKind `gorm:"type:varchar(10);not null"     json:"kind"`
	StartDate   Date    `gorm:"type:date;not null"            json:"start_date"`
	EndDate     *Date   `gorm:"type:date"                     json:"end_date,omitempty"`
	StartSlot   Slot    `gorm:"type:smallint;not null"        json:"start_slot"`
	EndSlot     *Slot   `gorm:"type:smallint"                 json:"end_slot,omitempty"` // NULL 表示仅 StartSlot
	Weekday     *int    `gorm:"type:smallint"                 json:"weekday,omitempty"`  // 1-7，仅 regular
	Description string  `gorm:"type:varchar(200);not null;default:''" json:"description"`
	SoftDeleteModel
}

// TableName 指定表名
func (BanWindow) TableName() string { return "ban_windows" }

// Validate 校验规则的结构完整性
func (b *BanWindow) Validate() error {
	if b.StartDate.IsZero() {
		return errors.New("start_date 不能为空")
	}
	if !b.StartSlot.Valid() {
		return fmt.Errorf("start_slot 超出范围: %d", b.StartSlot)
	}
	if b.EndSlot != nil {
		if !b.EndSlot.Valid() {
			return fmt.Errorf("end_slot 超出范围: %d", *b.EndSlot)
		}
		if *b.EndSlot < b.StartSlot {
			return errors.New("end_slot 不能早于 start_slot")
		}
	}

	switch b.Kind {
	case BanSingle:
		if b.Weekday != nil {
			return errors.New("single 规则不能指定 weekday")
		}
	case BanPeriod, BanRegular:
		if b.EndDate == nil {
			return fmt.Errorf("%s 规则必须指定 end_date", b.Kind)
		}
		if b.EndDate.Before(b.StartDate) {
			return errors.New("end_date 不能早于 start_date")
		}
		if b.Kind == BanRegular {
			if b.Weekday == nil || *b.Weekday < 1 || *b.Weekday > 7 {
				return errors.New("regular 规则必须指定 1-7 的 weekday")
			}
		} else if b.Weekday != nil {
			return errors.New("period 规则不能指定 weekday")
		}
	default:
		return fmt.Errorf("未知的规则类型: %q", b.Kind)
	}
	return nil
}

// LastDate 规则覆盖的最后一天（含）
func (b *BanWindow) LastDate() Date {
	if b.Kind == BanSingle || b.EndDate == nil {
		return b.StartDate
	}
	return *b.EndDate
}

// Span 规则覆盖的日期区间（半开）
func (b *BanWindow) Span() DateRange {
	return DateRange{Start: b.StartDate, End: b.LastDate().AddDays(1)}
}

// Slots 规则禁用的时段集合
func (b *BanWindow) Slots() SlotSet {
	if b.EndSlot == nil {
		return SlotSet(0).Add(b.StartSlot)
	}
	return SlotRange(b.StartSlot, *b.EndSlot)
}

// Denies 返回 d 当天被该规则禁用的时段
func (b *BanWindow) Denies(d Date) SlotSet {
	if d.Before(b.StartDate) || d.After(b.LastDate()) {
		return 0
	}
	if b.Kind == BanRegular && (b.Weekday == nil || d.ISOWeekday() != *b.Weekday) {
		return 0
	}
	return b.Slots()
}
