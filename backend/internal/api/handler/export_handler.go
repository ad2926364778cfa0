package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"bandroom/backend/internal/service"
	"bandroom/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportBookings 导出预约日志
// GET /api/v1/export/bookings?start=2025-04-01&end=2025-05-01
func (h *ExportHandler) ExportBookings(c *gin.Context) {
	r, ok := bindRange(c, 24001)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.BookingLog(c.Request.Context(), r)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportCalendar 导出日历订阅
// GET /api/v1/export/calendar.ics?start=2025-04-01&end=2025-05-01
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	r, ok := bindRange(c, 24001)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.CalendarICS(c.Request.Context(), r)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	attachment(c, filename, "text/calendar; charset=utf-8", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if handleStorageError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, 24001, "日期区间无效")
	default:
		response.InternalError(c)
	}
}

// attachment 设置下载响应头并写入文件内容
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}
