package model

import "time"

// Booking 排练室预约 — 对应 bookings
// 同一 (Date, Slot) 至多一条未删除记录，由部分唯一索引保证
type Booking struct {
	BookingID    string `gorm:"type:uuid;primaryKey"      json:"booking_id"`
	OwnerID      string `gorm:"type:varchar(64);not null" json:"owner_id"`
	Date         Date   `gorm:"type:date;not null"        json:"date"`
	Slot         Slot   `gorm:"type:smallint;not null"    json:"slot"`
	BandName     string `gorm:"type:varchar(100);not null" json:"band_name"`
	ContactName  string `gorm:"type:varchar(100);not null" json:"contact_name"`
	PasswordHash string `gorm:"type:varchar(100);not null" json:"-"`
	VersionedModel
}

// TableName 指定表名
func (Booking) TableName() string { return "bookings" }

// BookingState 预约状态：BookingActive 或 BookingDeleted
type BookingState interface {
	bookingState()
}

// BookingActive 有效预约
type BookingActive struct{}

// BookingDeleted 已取消（墓碑），DeletedAt 为取消时间
type BookingDeleted struct {
	DeletedAt time.Time
}

func (BookingActive) bookingState()  {}
func (BookingDeleted) bookingState() {}

// State 当前状态
func (b *Booking) State() BookingState {
	if b.DeletedAt.Valid {
		return BookingDeleted{DeletedAt: b.DeletedAt.Time}
	}
	return BookingActive{}
}

// IsActive 是否为有效预约
func (b *Booking) IsActive() bool {
	_, ok := b.State().(BookingActive)
	return ok
}
