package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/service"
	"bandroom/backend/pkg/response"
)

// BookingHandler 预约模块 HTTP 处理器
type BookingHandler struct {
	bookingSvc service.BookingService
	window     BookingWindow
}

// NewBookingHandler 创建 BookingHandler
func NewBookingHandler(bookingSvc service.BookingService, window BookingWindow) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc, window: window}
}

// Create 创建预约
// POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var req dto.CreateBookingRequest
	if !bindJSON(c, &req, 20001) {
		return
	}
	if req.Date.IsZero() {
		response.BadRequest(c, 20001, "date 不能为空")
		return
	}
	if !h.window.Allows(req.Date) {
		response.BadRequest(c, 20107, "该日期不在可预约范围内")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.Created(c, booking)
}

// Get 获取预约详情（含已取消）
// GET /api/v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 20001, "预约ID不能为空")
		return
	}

	booking, err := h.bookingSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, booking)
}

// Update 修改或移动预约
// PUT /api/v1/bookings/:id
// 非所有者需在 X-Access-Grant 头中携带访问授权
func (h *BookingHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 20001, "预约ID不能为空")
		return
	}

	var req dto.UpdateBookingRequest
	if !bindJSON(c, &req, 20001) {
		return
	}
	if req.Date != nil && !h.window.Allows(*req.Date) {
		response.BadRequest(c, 20107, "该日期不在可预约范围内")
		return
	}

	auth, ok := mustGetAuth(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Update(c.Request.Context(), id, &req, auth)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, booking)
}

// Delete 取消预约；重复取消返回成功
// DELETE /api/v1/bookings/:id
func (h *BookingHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 20001, "预约ID不能为空")
		return
	}

	auth, ok := mustGetAuth(c)
	if !ok {
		return
	}

	if err := h.bookingSvc.Delete(c.Request.Context(), id, auth); err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListLog 预约日志（含已取消）
// GET /api/v1/bookings/log
func (h *BookingHandler) ListLog(c *gin.Context) {
	var req dto.BookingLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}

	list, total, err := h.bookingSvc.ListLog(c.Request.Context(), &req)
	if err != nil {
		h.handleBookingError(c, err)
		return
	}

	response.OKPage(c, list, total, req.Page, req.PageSize)
}

// handleBookingError 统一处理预约模块业务错误
func (h *BookingHandler) handleBookingError(c *gin.Context, err error) {
	if handleStorageError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		response.NotFound(c, 20101, "预约不存在")
	case errors.Is(err, service.ErrSlotConflict):
		response.Conflict(c, 20102, "该时段已被预约，请选择其他时段")
	case errors.Is(err, service.ErrSlotBanned):
		response.Conflict(c, 20103, "该时段已被管理员禁用")
	case errors.Is(err, service.ErrUnauthorized):
		response.Forbidden(c, 20104, "无权操作该预约，请先使用预约密码获取授权")
	case errors.Is(err, service.ErrGrantExpired):
		response.Unauthorized(c, 20105, "访问授权已过期，请重新获取")
	case errors.Is(err, service.ErrInvalidDate), errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 20108, "日期或时段无效")
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 20109, "日期区间无效")
	case errors.Is(err, service.ErrEmptyPassword):
		response.BadRequest(c, 20110, "预约密码不能为空")
	default:
		response.InternalError(c)
	}
}
