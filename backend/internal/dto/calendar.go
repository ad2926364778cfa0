package dto

// ── 日历模块 DTO ──

// OccupantKind 时段占用类型
const (
	OccupantBooking = "booking"
	OccupantBanned  = "banned"
)

// CalendarRequest 日历区间查询参数，end 为开区间
type CalendarRequest struct {
	Start string `form:"start" binding:"required,datetime=2006-01-02"`
	End   string `form:"end"   binding:"required,datetime=2006-01-02"`
}

// SlotOccupant 时段占用者；空闲时段在 Days 中为 null
type SlotOccupant struct {
	Kind        string `json:"kind"`
	ID          string `json:"id,omitempty"`
	BandName    string `json:"band_name,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
}

// CalendarSlice 日历切片：日期 → 时段 → 占用者
type CalendarSlice struct {
	Start string                           `json:"start"`
	End   string                           `json:"end"`
	Days  map[string]map[int]*SlotOccupant `json:"days"`
}
