package dto

// ── 访问授权模块 DTO ──

// IssueGrantRequest 使用预约密码申请访问授权
type IssueGrantRequest struct {
	Password string `json:"password" binding:"required,max=72"`
}

// GrantResponse 访问授权响应
type GrantResponse struct {
	Token     string `json:"token"`
	BookingID string `json:"booking_id"`
	ExpiresAt string `json:"expires_at"`
}
