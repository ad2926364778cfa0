package dto

import "bandroom/backend/internal/model"

// ── 禁用规则模块 DTO ──

// CreateBanRequest 创建禁用规则请求
type CreateBanRequest struct {
	Kind        string      `json:"kind"        binding:"required,oneof=single period regular"`
	StartDate   model.Date  `json:"start_date"`
	EndDate     *model.Date `json:"end_date"`
	StartSlot   *int        `json:"start_slot"  binding:"required,min=0,max=7"`
	EndSlot     *int        `json:"end_slot"    binding:"omitempty,min=0,max=7"`
	Weekday     *int        `json:"weekday"     binding:"omitempty,min=1,max=7"`
	Description string      `json:"description" binding:"max=200"`
}

// BanListRequest 禁用规则列表查询参数
type BanListRequest struct {
	Start string `form:"start" binding:"omitempty,datetime=2006-01-02"`
	End   string `form:"end"   binding:"omitempty,datetime=2006-01-02"`
}

// BanResponse 禁用规则响应
type BanResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
	StartSlot   int     `json:"start_slot"`
	EndSlot     *int    `json:"end_slot,omitempty"`
	Weekday     *int    `json:"weekday,omitempty"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}
