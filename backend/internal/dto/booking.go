package dto

import "bandroom/backend/internal/model"

// ── 预约模块 DTO ──

// CreateBookingRequest 创建预约请求
type CreateBookingRequest struct {
	Date        model.Date `json:"date"`
	Slot        *int       `json:"slot"         binding:"required,min=0,max=7"`
	BandName    string     `json:"band_name"    binding:"required,min=1,max=100"`
	ContactName string     `json:"contact_name" binding:"required,min=1,max=100"`
	Password    string     `json:"password"     binding:"required,min=4,max=72"`
}

// UpdateBookingRequest 更新预约请求；Date 与 Slot 任一变化即视为移动
type UpdateBookingRequest struct {
	Date        *model.Date `json:"date"`
	Slot        *int        `json:"slot"         binding:"omitempty,min=0,max=7"`
	BandName    *string     `json:"band_name"    binding:"omitempty,min=1,max=100"`
	ContactName *string     `json:"contact_name" binding:"omitempty,min=1,max=100"`
	// Version 客户端读取时的版本号，提供时与当前版本不一致则拒绝
	Version *int `json:"version" binding:"omitempty,min=1"`
}

// BookingResponse 预约信息响应
type BookingResponse struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Date        string  `json:"date"`
	Slot        int     `json:"slot"`
	SlotStart   string  `json:"slot_start"`
	SlotEnd     string  `json:"slot_end"`
	BandName    string  `json:"band_name"`
	ContactName string  `json:"contact_name"`
	State       string  `json:"state"` // active | deleted
	Version     int     `json:"version"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	DeletedAt   *string `json:"deleted_at,omitempty"`
}

// BookingLogRequest 预约日志查询参数（包含已取消的预约）
type BookingLogRequest struct {
	Start    string `form:"start"     binding:"omitempty,datetime=2006-01-02"`
	End      string `form:"end"       binding:"omitempty,datetime=2006-01-02"`
	OwnerID  string `form:"owner_id"  binding:"omitempty,max=64"`
	Page     int    `form:"page"      binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// SlotResponse 固定时段表
type SlotResponse struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
}
