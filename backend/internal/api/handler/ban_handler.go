package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/service"
	"bandroom/backend/pkg/response"
)

// BanHandler 禁用规则 HTTP 处理器（管理员）
type BanHandler struct {
	banSvc service.BanService
}

// NewBanHandler 创建 BanHandler
func NewBanHandler(banSvc service.BanService) *BanHandler {
	return &BanHandler{banSvc: banSvc}
}

// Create 创建禁用规则
// POST /api/v1/bans
func (h *BanHandler) Create(c *gin.Context) {
	var req dto.CreateBanRequest
	if !bindJSON(c, &req, 22001) {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	ban, err := h.banSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleBanError(c, err)
		return
	}

	response.Created(c, ban)
}

// List 禁用规则列表；提供 start/end 时只返回与区间相交的规则
// GET /api/v1/bans
func (h *BanHandler) List(c *gin.Context) {
	var req dto.BanListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 22001, "参数校验失败")
		return
	}

	bans, err := h.banSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleBanError(c, err)
		return
	}

	response.OK(c, gin.H{"list": bans})
}

// Get 禁用规则详情
// GET /api/v1/bans/:id
func (h *BanHandler) Get(c *gin.Context) {
	ban, err := h.banSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleBanError(c, err)
		return
	}

	response.OK(c, ban)
}

// Delete 删除禁用规则
// DELETE /api/v1/bans/:id
func (h *BanHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.banSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleBanError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *BanHandler) handleBanError(c *gin.Context, err error) {
	if handleStorageError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrBanNotFound):
		response.NotFound(c, 22101, "禁用规则不存在")
	case errors.Is(err, service.ErrInvalidBan):
		response.ErrorWithDetails(c, http.StatusBadRequest, 22102, "禁用规则参数无效", err.Error())
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 22103, "日期区间无效")
	default:
		response.InternalError(c)
	}
}
