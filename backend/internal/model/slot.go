package model

import (
	"fmt"
	"math/bits"
	"time"
)

// SlotCount 每日固定时段数
const SlotCount = 8

const (
	firstSlotStart = 9 * time.Hour
	slotLength     = 90 * time.Minute
)

// Slot 时段序号 0-7，对应固定的 90 分钟区间
type Slot int

// SlotInterval 时段对应的时钟区间
type SlotInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var slotIntervals = [SlotCount]SlotInterval{
	{"09:00", "10:30"},
	{"10:30", "12:00"},
	{"12:00", "13:30"},
	{"13:30", "15:00"},
	{"15:00", "16:30"},
	{"16:30", "18:00"},
	{"18:00", "19:30"},
	{"19:30", "21:00"},
}

// Valid 0 <= s < SlotCount
func (s Slot) Valid() bool {
	return s >= 0 && s < SlotCount
}

// Interval 时段的起止时刻；调用前需保证 Valid
func (s Slot) Interval() SlotInterval {
	return slotIntervals[s]
}

func (s Slot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	iv := slotIntervals[s]
	return iv.Start + "-" + iv.End
}

// AllSlots 按顺序返回全部时段
func AllSlots() []Slot {
	slots := make([]Slot, SlotCount)
	for i := range slots {
		slots[i] = Slot(i)
	}
	return slots
}

// SlotSet 时段集合（位图）
type SlotSet uint8

// SlotRange 返回 [from, to] 闭区间的集合
func SlotRange(from, to Slot) SlotSet {
	var set SlotSet
	for s := from; s <= to; s++ {
		set = set.Add(s)
	}
	return set
}

// Add 加入时段，非法时段被忽略
func (set SlotSet) Add(s Slot) SlotSet {
	if !s.Valid() {
		return set
	}
	return set | 1<<uint(s)
}

// Has 是否包含
func (set SlotSet) Has(s Slot) bool {
	return s.Valid() && set&(1<<uint(s)) != 0
}

// Union 并集
func (set SlotSet) Union(o SlotSet) SlotSet {
	return set | o
}

// Empty 空集
func (set SlotSet) Empty() bool {
	return set == 0
}

// Len 元素个数
func (set SlotSet) Len() int {
	return bits.OnesCount8(uint8(set))
}

// Slots 升序列出
func (set SlotSet) Slots() []Slot {
	var out []Slot
	for _, s := range AllSlots() {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Bounds 时段在日期 d（时区 loc）上的起止时刻
func (s Slot) Bounds(d Date, loc *time.Location) (time.Time, time.Time) {
	offset := firstSlotStart + time.Duration(s)*slotLength
	start := time.Date(d.Year, d.Month, d.Day, 0, int(offset/time.Minute), 0, 0, loc)
	return start, start.Add(slotLength)
}
