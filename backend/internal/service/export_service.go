package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"bandroom/backend/internal/dto"
	"bandroom/backend/internal/model"
	"bandroom/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// BookingLog 导出 [r.Start, r.End) 内的全部预约（含已取消）为 Excel
	BookingLog(ctx context.Context, r model.DateRange) (*bytes.Buffer, string, error)
	// CalendarICS 导出日历订阅：每个占用时段与禁用时段一个 VEVENT
	CalendarICS(ctx context.Context, r model.DateRange) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo     *repository.Repository
	calendar CalendarService
	loc      *time.Location
	baseURL  string // 非空时为预约事件附加 URL
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, calendar CalendarService, loc *time.Location, baseURL string, logger *zap.Logger) ExportService {
	return &exportService{
		repo:     repo,
		calendar: calendar,
		loc:      loc,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// BookingLog — 预约日志 Excel
// ═══════════════════════════════════════════════════════════
//
// 表头：日期 | 时段 | 时间 | 乐队 | 联系人 | 状态 | 创建时间 | 取消时间 | 预约ID

func (s *exportService) BookingLog(ctx context.Context, r model.DateRange) (*bytes.Buffer, string, error) {
	if !r.Valid() {
		return nil, "", ErrInvalidRange
	}

	start, end := r.Start, r.End
	bookings, _, err := s.repo.Booking.ListLog(ctx, repository.BookingLogFilter{Start: &start, End: &end}, 0, 0)
	if err != nil {
		s.logger.Error("查询预约日志失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "预约日志"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"日期", "时段", "时间", "乐队", "联系人", "状态", "创建时间", "取消时间", "预约ID"}
	widths := []float64{12, 6, 14, 24, 16, 8, 20, 20, 38}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	for i, h := range headers {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, widths[i])
		f.SetCellValue(sheetName, cell(col, 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	row := 2
	for i := range bookings {
		resp := toBookingResponse(&bookings[i])
		deletedAt := "-"
		if resp.DeletedAt != nil {
			deletedAt = *resp.DeletedAt
		}
		values := []interface{}{
			resp.Date,
			resp.Slot,
			fmt.Sprintf("%s-%s", resp.SlotStart, resp.SlotEnd),
			resp.BandName,
			resp.ContactName,
			stateLabel(resp.State),
			resp.CreatedAt,
			deletedAt,
			resp.ID,
		}
		for c, v := range values {
			f.SetCellValue(sheetName, cell(colName(c), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("预约日志_%s_%s.xlsx", r.Start, r.End.AddDays(-1))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// CalendarICS — 日历订阅
// ═══════════════════════════════════════════════════════════
//
// 数据来自 CalendarService，与页面日历共享缓存与一致性保证

func (s *exportService) CalendarICS(ctx context.Context, r model.DateRange) (*bytes.Buffer, string, error) {
	slice, err := s.calendar.Get(ctx, r)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//bandroom//calendar//ZH")
	cal.SetXWRCalName("排练室预约")
	cal.SetXWRTimezone(s.loc.String())

	stamp := s.now()
	for _, d := range r.Days() {
		day := slice.Days[d.String()]
		for _, slot := range model.AllSlots() {
			occ := day[int(slot)]
			if occ == nil {
				continue
			}
			start, end := slot.Bounds(d, s.loc)

			uid := fmt.Sprintf("%s-%d-%s@bandroom", d, slot, occ.Kind)
			summary := "禁用"
			if occ.Kind == dto.OccupantBooking {
				uid = occ.ID + "@bandroom"
				summary = occ.BandName
			}

			event := cal.AddEvent(uid)
			event.SetDtStampTime(stamp)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetSummary(summary)
			if occ.Kind == dto.OccupantBooking {
				event.SetDescription("联系人: " + occ.ContactName)
				if s.baseURL != "" {
					event.SetProperty(ics.ComponentPropertyUrl, s.baseURL+"/bookings/"+occ.ID)
				}
			}
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("bandroom_%s_%s.ics", r.Start, r.End.AddDays(-1))
	return buf, filename, nil
}

// ── 辅助函数 ──

func stateLabel(state string) string {
	if state == "deleted" {
		return "已取消"
	}
	return "有效"
}

// colName 0 起始的列号 → 列名
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
