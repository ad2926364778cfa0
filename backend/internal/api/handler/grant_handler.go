package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/service"
	"bandroom/backend/pkg/response"
)

// GrantHandler 访问授权 HTTP 处理器
type GrantHandler struct {
	grantSvc service.GrantService
}

// NewGrantHandler 创建 GrantHandler
func NewGrantHandler(grantSvc service.GrantService) *GrantHandler {
	return &GrantHandler{grantSvc: grantSvc}
}

// Issue 使用预约密码申请访问授权
// POST /api/v1/bookings/:id/grants
func (h *GrantHandler) Issue(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 21001, "预约ID不能为空")
		return
	}

	var req dto.IssueGrantRequest
	if !bindJSON(c, &req, 21001) {
		return
	}

	grant, err := h.grantSvc.Issue(c.Request.Context(), id, req.Password)
	if err != nil {
		h.handleGrantError(c, err)
		return
	}

	response.Created(c, grant)
}

func (h *GrantHandler) handleGrantError(c *gin.Context, err error) {
	if handleStorageError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrGrantInvalid):
		// 不区分预约不存在与密码错误
		response.Unauthorized(c, 21101, "预约不存在或密码错误")
	default:
		response.InternalError(c)
	}
}
