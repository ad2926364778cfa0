package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bandroom/backend/config"
	"bandroom/backend/internal/api/handler"
	"bandroom/backend/internal/api/middleware"
	"bandroom/backend/pkg/jwt"
	"bandroom/backend/pkg/redis"
)

// maxBodyBytes 请求体上限，本服务只接收小型 JSON
const maxBodyBytes = 64 << 10

// 公开读取路由，允许任意来源匿名跨域访问
const (
	pathSlots       = "/api/v1/slots"
	pathCalendar    = "/api/v1/calendar"
	pathCalendarICS = "/api/v1/export/calendar.ics"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：授权申请限流降级为放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins, pathSlots, pathCalendar, pathCalendarICS))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 公开读取
		r.GET(pathSlots, h.Calendar.Slots)
		r.GET(pathCalendar, h.Calendar.Get)
		r.GET(pathCalendarICS, h.Export.ExportCalendar)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		{
			// 预约模块
			bookings := authorized.Group("/bookings")
			{
				bookings.POST("", h.Booking.Create)
				bookings.GET("/log", middleware.RoleAuth(middleware.RoleAdmin), h.Booking.ListLog)
				bookings.GET("/:id", h.Booking.Get)
				bookings.PUT("/:id", h.Booking.Update)    // 所有者、管理员或持有访问授权
				bookings.DELETE("/:id", h.Booking.Delete) // 同上，重复删除幂等
				bookings.POST("/:id/grants",
					middleware.RateLimit(rdb, cfg.Auth.GrantRateLimit, time.Minute, logger),
					h.Grant.Issue,
				)
			}

			// 禁用规则模块（管理员）
			bans := authorized.Group("/bans", middleware.RoleAuth(middleware.RoleAdmin))
			{
				bans.GET("", h.Ban.List)
				bans.GET("/:id", h.Ban.Get)
				bans.POST("", h.Ban.Create)
				bans.DELETE("/:id", h.Ban.Delete)
			}

			// 导出模块
			export := authorized.Group("/export", middleware.RoleAuth(middleware.RoleAdmin))
			{
				export.GET("/bookings", h.Export.ExportBookings)
			}
		}
	}

	return r
}
