package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"compliance-tracker/internal/compliance"
	"compliance-tracker/internal/dto"
	"compliance-tracker/internal/model"
	"compliance-tracker/internal/repository"
	"compliance-tracker/pkg/mailer"
)

// ── 周报模块业务错误 ──

var (
	ErrReportRecipientMissing = errors.New("未配置周报收件人")
	ErrReportGenerateFail     = errors.New("生成周报文件失败")
)

// reportDays 周报覆盖的天数（含 asOf 当天）
const reportDays = 7

// ReportHeader 周报 CSV 表头
var ReportHeader = []string{"test_date", "test_time", "test_period", "result", "first_name", "last_name", "manager_email"}

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WeeklyReport 一份周报
type WeeklyReport struct {
	From model.Date
	To   model.Date
	Rows []model.ReportRow
	CSV  []byte
}

// Filename 建议的附件文件名（不含扩展名）
func (r *WeeklyReport) Filename() string {
	return fmt.Sprintf("test_report_%s_%s", r.From, r.To)
}

// ReportService 周报业务接口
//
// 设计说明：
//   - 窗口为 asOf 所在日期及之前 6 天，共 7 个日历日
//   - 只汇总检测记录本身，不参考缺勤
//   - 无记录时仍生成只有表头的 CSV 并照常发送
type ReportService interface {
	// BuildReport 生成周报（不发送）
	BuildReport(ctx context.Context, asOf time.Time) (*WeeklyReport, error)
	// SendWeeklyReport 生成并发送周报
	SendWeeklyReport(ctx context.Context, asOf time.Time) (*dto.ReportOutcome, error)
}

type reportService struct {
	repo      *repository.Repository
	mail      Mailer
	recipient string
	loc       *time.Location
	logger    *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, mail Mailer, recipient string, loc *time.Location, logger *zap.Logger) ReportService {
	return &reportService{
		repo:      repo,
		mail:      mail,
		recipient: strings.TrimSpace(recipient),
		loc:       loc,
		logger:    logger,
	}
}

// ═══════════════════════════════════════════════════════════
// BuildReport — 生成周报
// ═══════════════════════════════════════════════════════════

func (s *reportService) BuildReport(ctx context.Context, asOf time.Time) (*WeeklyReport, error) {
	to := compliance.DayOf(asOf, s.loc)
	from := to.AddDays(-(reportDays - 1))

	rows, err := s.repo.TestRecord.ListReportRows(ctx, from, to)
	if err != nil {
		s.logger.Error("查询周报数据失败", zap.Error(err))
		return nil, fmt.Errorf("查询周报数据: %w", err)
	}

	data, err := encodeReportCSV(rows)
	if err != nil {
		s.logger.Error("生成周报 CSV 失败", zap.Error(err))
		return nil, ErrReportGenerateFail
	}
	return &WeeklyReport{From: from, To: to, Rows: rows, CSV: data}, nil
}

// ═══════════════════════════════════════════════════════════
// SendWeeklyReport — 发送周报
// ═══════════════════════════════════════════════════════════

func (s *reportService) SendWeeklyReport(ctx context.Context, asOf time.Time) (*dto.ReportOutcome, error) {
	if s.mail == nil {
		s.logger.Error("邮件服务未配置，跳过周报")
		return nil, ErrMailNotConfigured
	}
	if s.recipient == "" {
		s.logger.Error("未配置周报收件人，跳过周报")
		return nil, ErrReportRecipientMissing
	}

	report, err := s.BuildReport(ctx, asOf)
	if err != nil {
		return nil, err
	}

	xlsx, err := encodeReportXLSX(report)
	if err != nil {
		s.logger.Error("生成周报 Excel 失败", zap.Error(err))
		return nil, ErrReportGenerateFail
	}

	body, err := render(weeklyReportTmpl, weeklyReportData{
		From: report.From.String(),
		To:   report.To.String(),
		Rows: len(report.Rows),
	})
	if err != nil {
		return nil, err
	}

	name := report.Filename()
	msg := &mailer.Message{
		To:      []string{s.recipient},
		Subject: weeklyReportSubject(report.From.String(), report.To.String()),
		HTML:    body,
		Attachments: []mailer.Attachment{
			{Filename: name + ".csv", ContentType: csvContentType, Content: report.CSV},
			{Filename: name + ".xlsx", ContentType: xlsxContentType, Content: xlsx},
		},
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.logger.Error("发送周报失败", zap.String("to", s.recipient), zap.Error(err))
		return nil, fmt.Errorf("发送周报: %w", err)
	}

	s.logger.Info("周报已发送",
		zap.String("to", s.recipient),
		zap.String("from", report.From.String()),
		zap.String("until", report.To.String()),
		zap.Int("rows", len(report.Rows)),
	)
	return &dto.ReportOutcome{
		From:        report.From.String(),
		To:          report.To.String(),
		Recipient:   s.recipient,
		RowCount:    len(report.Rows),
		Attachments: []string{name + ".csv", name + ".xlsx"},
	}, nil
}

// ── 编码 ──

// reportRecord 将一行转为 CSV / Excel 共用的字段
func reportRecord(r model.ReportRow) []string {
	result := "FAIL"
	if r.Passed {
		result = "PASS"
	}
	manager := ""
	if r.ManagerEmail != nil {
		manager = *r.ManagerEmail
	}
	return []string{
		r.TestDate.String(),
		normalizeTestTime(r.TestTime),
		r.TestPeriod,
		result,
		r.FirstName,
		r.LastName,
		manager,
	}
}

// normalizeTestTime 统一为 HH:MM:SS；无法解析时原样输出
func normalizeTestTime(s string) string {
	if c, err := compliance.ParseClock(s); err == nil {
		return c.String()
	}
	return s
}

func encodeReportCSV(rows []model.ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ReportHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(reportRecord(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeReportXLSX 与 CSV 同内容的 Excel 版本，单 Sheet，表头加粗并冻结
func encodeReportXLSX(report *WeeklyReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Report"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range ReportHeader {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, c, h)
	}
	last, _ := excelize.ColumnNumberToName(len(ReportHeader))
	f.SetCellStyle(sheet, "A1", last+"1", headerStyle)
	f.SetColWidth(sheet, "A", "D", 12)
	f.SetColWidth(sheet, "E", "F", 16)
	f.SetColWidth(sheet, "G", "G", 28)

	for i, r := range report.Rows {
		for j, v := range reportRecord(r) {
			c, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, c, v)
		}
	}

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
