package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bandroom/backend/internal/api/middleware"
	"bandroom/backend/internal/service"
	pkgerrors "bandroom/backend/pkg/errors"
	"bandroom/backend/pkg/response"
)

// GrantHeader 非所有者操作预约时携带访问授权的请求头
const GrantHeader = "X-Access-Grant"

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.CtxUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.CtxRole)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// mustGetAuth 组装预约写操作的调用方身份：用户、管理员标记与可选的访问授权
func mustGetAuth(c *gin.Context) (service.Auth, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Auth{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.Auth{}, false
	}
	return service.Auth{
		UserID: userID,
		Admin:  role == middleware.RoleAdmin,
		Grant:  c.GetHeader(GrantHeader),
	}, true
}

// bindJSON 绑定并校验请求体，失败时写入 400（超限为 413）并返回 false
func bindJSON(c *gin.Context, req interface{}, code int) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return false
	}
	response.BadRequest(c, code, "参数校验失败")
	return false
}

// handleStorageError 存储层通用错误；已处理返回 true
func handleStorageError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, pkgerrors.ErrTransient):
		response.ServiceUnavailable(c, 50301, "存储暂时不可用，请稍后重试")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 40901, "预约已被他人修改，请刷新后重试")
	default:
		return false
	}
	return true
}
