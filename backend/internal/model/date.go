package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout ISO-8601 日历日期格式
const DateLayout = "2006-01-02"

// Date 日历日期，不含时刻与时区
// 可比较，可直接作为 map 键
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate 构造日期，溢出的月/日会被规范化（如 4 月 31 日 → 5 月 1 日）
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf 取 t 在其自身时区下的日历日期
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate 解析 "2006-01-02"
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("无效的日期 %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate 解析失败时 panic，仅用于常量与测试
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time 返回 UTC 零点
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In 返回 loc 时区下该日零点
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero 未设置的日期
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays 加减天数
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Before 严格早于 o
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

// After 严格晚于 o
func (d Date) After(o Date) bool {
	return d.Compare(o) > 0
}

// Compare 返回 -1 / 0 / +1
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

// ISOWeekday ISO 8601 星期 (1=Monday … 7=Sunday)
func (d Date) ISOWeekday() int {
	wd := d.Time().Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// ── GORM Scanner/Valuer ──

// Scan 兼容 PostgreSQL date（time.Time）与 SQLite 文本
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("Date.Scan: unsupported type %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value 以 "2006-01-02" 文本写入
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// GormDataType 列类型
func (Date) GormDataType() string {
	return "date"
}

// ── JSON ──

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ── 日期区间 ──

// DateRange 半开日期区间 [Start, End)，同时作为日历缓存的 RangeKey
type DateRange struct {
	Start Date
	End   Date
}

// NewDateRange 构造区间并校验 Start < End
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if !r.Valid() {
		return DateRange{}, fmt.Errorf("无效的日期区间 [%s, %s)", start, end)
	}
	return r, nil
}

// SingleDay 仅包含 d 的区间
func SingleDay(d Date) DateRange {
	return DateRange{Start: d, End: d.AddDays(1)}
}

// Valid Start 严格早于 End
func (r DateRange) Valid() bool {
	return r.Start.Before(r.End)
}

// Contains d ∈ [Start, End)
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && d.Before(r.End)
}

// Days 区间内全部日期
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; d.Before(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Key 缓存键
func (r DateRange) Key() string {
	return r.Start.String() + ":" + r.End.String()
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + ")"
}
