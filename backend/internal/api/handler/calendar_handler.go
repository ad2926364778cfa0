package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/service"
	"bandroom/backend/pkg/response"
)

// maxCalendarDays 单次日历查询的最大天数（接口层限制，引擎不限制）
const maxCalendarDays = 366

// CalendarHandler 日历查询 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// Get 查询 [start, end) 的日历切片
// GET /api/v1/calendar?start=2025-04-07&end=2025-04-14
func (h *CalendarHandler) Get(c *gin.Context) {
	r, ok := bindRange(c, 23001)
	if !ok {
		return
	}

	slice, err := h.calendarSvc.Get(c.Request.Context(), r)
	if err != nil {
		if handleStorageError(c, err) {
			return
		}
		if errors.Is(err, service.ErrInvalidRange) {
			response.BadRequest(c, 23001, "日期区间无效")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, slice)
}

// Slots 固定时段表
// GET /api/v1/slots
func (h *CalendarHandler) Slots(c *gin.Context) {
	slots := make([]dto.SlotResponse, 0, model.SlotCount)
	for _, s := range model.AllSlots() {
		iv := s.Interval()
		slots = append(slots, dto.SlotResponse{Index: int(s), Start: iv.Start, End: iv.End})
	}
	response.OK(c, gin.H{"list": slots})
}

// bindRange 解析 start/end 查询参数，失败时写入 400 并返回 false
func bindRange(c *gin.Context, code int) (model.DateRange, bool) {
	var req dto.CalendarRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, code, "start 与 end 必须为 YYYY-MM-DD 格式")
		return model.DateRange{}, false
	}
	r, err := service.ParseRange(req.Start, req.End)
	if err != nil {
		response.BadRequest(c, code, "end 必须晚于 start")
		return model.DateRange{}, false
	}
	if r.Start.AddDays(maxCalendarDays).Before(r.End) {
		response.BadRequest(c, code+1, "查询区间过长")
		return model.DateRange{}, false
	}
	return r, true
}
