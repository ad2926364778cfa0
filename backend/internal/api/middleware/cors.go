package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 非所有者编辑预约时通过 X-Access-Grant 传递访问授权
const (
	corsAllowHeaders  = "Content-Type, Authorization, X-Access-Grant, X-Request-ID"
	corsExposeHeaders = "X-Request-ID, Content-Disposition"
	corsMaxAge        = "86400"
)

// CORS 跨域中间件
//
// 名单内的来源可携带凭证访问全部接口；
// 名单外的来源只能匿名读取公开 GET 接口（日历、时段表、ICS 订阅），不回写 Allow-Credentials。
// 名单外来源的预检请求返回 403。
func CORS(allowOrigins []string, publicPaths ...string) gin.HandlerFunc {
	originsMap := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		originsMap[strings.TrimRight(o, "/")] = true
	}
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Header("Vary", "Origin")

		switch {
		case originsMap[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Max-Age", corsMaxAge)
		case public[c.Request.URL.Path] && c.Request.Method == http.MethodGet:
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
		case c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
