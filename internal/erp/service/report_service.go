package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ErrUnavailable 依赖的外部服务未配置
var ErrUnavailable = errors.New("service unavailable")

// CSV 编码
const (
	EncodingUTF8 = "utf-8"
	EncodingGBK  = "gbk"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProjectSummary 报表中的项目基本信息
type ProjectSummary struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ProductRef 产品简要信息
type ProductRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// RequestRef 采购申请简要信息
type RequestRef struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	ProductCode  string     `json:"product_code"`
	ProductName  string     `json:"product_name"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit"`
	State        string     `json:"state"`
	RequiredDate *time.Time `json:"required_date"`
}

// PurchaseSummary 采购订单汇总
type PurchaseSummary struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	State        string          `json:"state"`
	Supplier     string          `json:"supplier"`
	DeliveryDate *time.Time      `json:"delivery_date"`
	Amount       decimal.Decimal `json:"amount"`
}

// ProjectReport 项目报表
type ProjectReport struct {
	Project              ProjectSummary              `json:"project"`
	GeneratedAt          time.Time                   `json:"generated_at"`
	AssemblyDate         *time.Time                  `json:"assembly_date"`
	DeliveryDate         *time.Time                  `json:"delivery_date"`
	TotalProductCost     decimal.Decimal             `json:"total_product_cost"`
	TodayHours           float64                     `json:"today_hours"`
	TotalHours           float64                     `json:"total_hours"`
	MissingProductsCount int                         `json:"missing_products_count"`
	MissingOrdersCount   int                         `json:"missing_orders_count"`
	MissingOrders        []ProductRef                `json:"missing_orders"`
	MissingProducts      []ProductRef                `json:"missing_products"`
	DeliveredProducts    []ProductRef                `json:"delivered_products"`
	QuotingProducts      []ProductRef                `json:"quoting_products"`
	PurchasedProducts    []ProductRef                `json:"purchased_products"`
	OrderedProducts      []ProductRef                `json:"ordered_products"`
	MissingRequests      []RequestRef                `json:"missing_requests"`
	Requirements         []entity.ProductRequirement `json:"requirements"`
	Purchases            []PurchaseSummary           `json:"purchases"`
	Procurement          *Procurement                `json:"procurement"`
}

// BuildReport 由已加载的项目和补货分析生成报表
func BuildReport(project *entity.Project, procurement *Procurement, now time.Time) *ProjectReport {
	report := &ProjectReport{
		Project: ProjectSummary{
			ID:     project.ID,
			Code:   project.Code,
			Name:   project.Name,
			Status: project.Status,
		},
		GeneratedAt:          now,
		AssemblyDate:         project.AssemblyDate(),
		DeliveryDate:         project.DeliveryDate(),
		TotalProductCost:     project.TotalProductCost(),
		TodayHours:           project.TodayHours(now),
		TotalHours:           project.TotalHours(),
		MissingProductsCount: project.CountMissingProducts(),
		MissingOrdersCount:   project.CountMissingOrders(),
		MissingOrders:        productRefs(project.MissingOrders()),
		MissingProducts:      productRefs(project.MissingProducts()),
		DeliveredProducts:    productRefs(project.DeliveredProducts()),
		QuotingProducts:      productRefs(project.QuotingProducts()),
		PurchasedProducts:    productRefs(project.PurchasedProducts()),
		OrderedProducts:      productRefs(project.OrderedProducts()),
		Requirements:         slices.Collect(project.AllProducts()),
		Procurement:          procurement,
	}

	for pr := range project.MissingOrderRequests() {
		ref := RequestRef{
			ID:           pr.ID,
			Code:         pr.Code,
			Quantity:     pr.Quantity,
			Unit:         pr.Unit,
			State:        pr.State,
			RequiredDate: pr.RequiredDate,
		}
		if pr.Product != nil {
			ref.ProductCode = pr.Product.Code
			ref.ProductName = pr.Product.Name
		}
		report.MissingRequests = append(report.MissingRequests, ref)
	}

	for _, purchase := range project.Purchases {
		amount := decimal.Zero
		for _, line := range purchase.Lines {
			amount = amount.Add(line.Amount())
		}
		summary := PurchaseSummary{
			ID:           purchase.ID,
			Number:       purchase.Number,
			State:        purchase.State,
			DeliveryDate: purchase.DeliveryDate,
			Amount:       amount.Round(2),
		}
		if purchase.Party != nil {
			summary.Supplier = purchase.Party.Name
		}
		report.Purchases = append(report.Purchases, summary)
	}

	return report
}

func productRefs(seq func(func(*entity.Product) bool)) []ProductRef {
	refs := []ProductRef{}
	for p := range seq {
		if p == nil {
			continue
		}
		refs = append(refs, ProductRef{ID: p.ID, Code: p.Code, Name: p.Name})
	}
	return refs
}

// ReportService 项目报表服务
type ReportService struct {
	projectRepo *repository.ProjectRepository
	procurement *ProcurementService
	cache       *ReportCache
	store       *ArchiveStore
	cfg         config.ReportConfig
	logger      *zap.Logger
	now         func() time.Time
}

func NewReportService(pr *repository.ProjectRepository, procurement *ProcurementService, cache *ReportCache, store *ArchiveStore, cfg config.ReportConfig, logger *zap.Logger) *ReportService {
	return &ReportService{
		projectRepo: pr,
		procurement: procurement,
		cache:       cache,
		store:       store,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Report 项目报表，优先读取缓存
func (s *ReportService) Report(ctx context.Context, projectID string) (*ProjectReport, error) {
	if report, ok := s.cache.Get(ctx, projectID); ok {
		return report, nil
	}

	project, err := s.projectRepo.FindDetail(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	procurement, err := s.procurement.reconcileLoaded(ctx, s.procurement.purchaseRepo, project)
	if err != nil {
		return nil, err
	}

	report := BuildReport(project, procurement, s.now())
	s.cache.Set(ctx, report)
	return report, nil
}

var reportSummaryHeaders = []string{"项目", "值"}

var reportRequirementHeaders = []string{
	"产品编码", "产品名称", "数量", "BOM", "生产单",
}

var reportProcurementHeaders = []string{
	"产品编码", "产品名称", "单位", "需求数量", "已下单", "已申请", "缺口",
	"需求日期", "供应商", "交货日期", "单价", "预估成本",
}

var reportPurchaseHeaders = []string{
	"采购单号", "状态", "供应商", "交货日期", "金额",
}

// ExportExcel 导出报表为xlsx
func (s *ReportService) ExportExcel(ctx context.Context, projectID string) (*excelize.File, string, error) {
	report, err := s.Report(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	f, err := buildReportWorkbook(report)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("Project_%s_%s.xlsx", fileToken(report.Project), report.GeneratedAt.Format("20060102"))
	return f, filename, nil
}

func buildReportWorkbook(report *ProjectReport) (*excelize.File, error) {
	f := excelize.NewFile()

	// 表头样式: 加粗
	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}

	// Summary
	sheet := "Summary"
	f.SetSheetName("Sheet1", sheet)
	writeHeaders(f, sheet, reportSummaryHeaders, boldStyle)
	summary := [][]any{
		{"编号", report.Project.Code},
		{"名称", report.Project.Name},
		{"状态", report.Project.Status},
		{"装配日期", formatDate(report.AssemblyDate)},
		{"交付日期", formatDate(report.DeliveryDate)},
		{"采购总成本", report.TotalProductCost.InexactFloat64()},
		{"总工时", report.TotalHours},
		{"缺料数", report.MissingProductsCount},
		{"未下单数", report.MissingOrdersCount},
		{"生成时间", report.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	for i, row := range summary {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), row[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), row[1])
	}
	setColWidths(f, sheet, []float64{14, 30})

	// Requirements
	sheet = "Requirements"
	f.NewSheet(sheet)
	writeHeaders(f, sheet, reportRequirementHeaders, boldStyle)
	for i, req := range report.Requirements {
		row := i + 2
		if req.Product != nil {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), req.Product.Code)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), req.Product.Name)
		} else {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), req.ProductID)
		}
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), req.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), req.BOMID)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), req.ProductionID)
	}
	setColWidths(f, sheet, []float64{16, 24, 10, 38, 38})

	// Procurement
	sheet = "Procurement"
	f.NewSheet(sheet)
	writeHeaders(f, sheet, reportProcurementHeaders, boldStyle)
	var lines []ProcurementLine
	if report.Procurement != nil {
		lines = report.Procurement.Lines
	}
	for i, line := range lines {
		row := i + 2
		supplier := ""
		if line.Supplier != nil {
			supplier = line.Supplier.Name
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.ProductCode)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), line.ProductName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), line.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), line.Required)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), line.Ordered)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), line.Requested)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), line.Missing)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), formatDate(line.RequiredDate))
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), supplier)
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), formatDate(line.DeliveryDate))
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), line.UnitPrice.InexactFloat64())
		f.SetCellValue(sheet, fmt.Sprintf("L%d", row), line.EstimatedCost.InexactFloat64())
	}
	setColWidths(f, sheet, []float64{16, 24, 6, 10, 10, 10, 10, 12, 20, 12, 10, 12})

	// Purchases
	sheet = "Purchases"
	f.NewSheet(sheet)
	writeHeaders(f, sheet, reportPurchaseHeaders, boldStyle)
	for i, p := range report.Purchases {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.Number)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.State)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), p.Supplier)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), formatDate(p.DeliveryDate))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), p.Amount.InexactFloat64())
	}
	setColWidths(f, sheet, []float64{16, 12, 24, 12, 12})

	return f, nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func setColWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
}

// ExportMissingCSV 导出缺口产品CSV，encoding 为 utf-8（默认）或 gbk
func (s *ReportService) ExportMissingCSV(ctx context.Context, projectID, encoding string) ([]byte, string, error) {
	encoding = strings.ToLower(encoding)
	if encoding == "" || encoding == "utf8" {
		encoding = EncodingUTF8
	}
	if encoding != EncodingUTF8 && encoding != EncodingGBK {
		return nil, "", fmt.Errorf("不支持的编码 %q: %w", encoding, ErrInvalidInput)
	}

	report, err := s.Report(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := writeMissingCSV(&buf, report, encoding); err != nil {
		return nil, "", fmt.Errorf("write csv: %w", err)
	}
	filename := fmt.Sprintf("Missing_%s_%s.csv", fileToken(report.Project), report.GeneratedAt.Format("20060102"))
	return buf.Bytes(), filename, nil
}

func writeMissingCSV(out io.Writer, report *ProjectReport, charset string) error {
	var w io.Writer = out
	var closer io.Closer
	if charset == EncodingGBK {
		// GBK 无法表示的字符（如捷克语变音字母）替换为 0x1A
		tw := transform.NewWriter(out, encoding.ReplaceUnsupported(simplifiedchinese.GBK.NewEncoder()))
		w, closer = tw, tw
	}

	cw := csv.NewWriter(w)
	cw.Write([]string{"产品编码", "产品名称", "单位", "需求数量", "已下单", "已申请", "缺口", "需求日期", "供应商", "预估成本"})
	if report.Procurement != nil {
		for _, line := range report.Procurement.MissingLines() {
			supplier := ""
			if line.Supplier != nil {
				supplier = line.Supplier.Name
			}
			cw.Write([]string{
				line.ProductCode,
				line.ProductName,
				line.Unit,
				formatQty(line.Required),
				formatQty(line.Ordered),
				formatQty(line.Requested),
				formatQty(line.Missing),
				formatDate(line.RequiredDate),
				supplier,
				line.EstimatedCost.StringFixed(2),
			})
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// ArchiveResult 报表归档结果
type ArchiveResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag"`
	URL    string `json:"url,omitempty"`
}

// Archive 生成xlsx并上传到对象存储
func (s *ReportService) Archive(ctx context.Context, projectID string) (*ArchiveResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("未配置对象存储: %w", ErrUnavailable)
	}

	report, err := s.Report(ctx, projectID)
	if err != nil {
		return nil, err
	}
	f, err := buildReportWorkbook(report)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}

	key := ArchiveKey(s.cfg.ArchivePrefix, report.Project, s.now())

	info, err := s.store.Put(ctx, key, buf.Bytes(), xlsxContentType)
	if err != nil {
		return nil, err
	}

	result := &ArchiveResult{Bucket: s.store.Bucket(), Key: key, Size: info.Size, ETag: info.ETag}
	if url, err := s.store.PresignedURL(ctx, key, time.Hour); err == nil {
		result.URL = url
	} else {
		s.logger.Warn("Presign archive failed", zap.String("key", key), zap.Error(err))
	}

	s.logger.Info("Project report archived", zap.String("project_id", projectID), zap.String("key", key), zap.Int64("size", info.Size))
	return result, nil
}

// ArchiveKey 归档对象路径 {prefix}/{项目编号}/{时间戳}.xlsx
func ArchiveKey(prefix string, project ProjectSummary, at time.Time) string {
	if prefix == "" {
		prefix = "reports"
	}
	return fmt.Sprintf("%s/%s/%s.xlsx", strings.TrimSuffix(prefix, "/"), fileToken(project), at.UTC().Format("20060102T150405Z"))
}

func fileToken(project ProjectSummary) string {
	token := project.Code
	if token == "" {
		token = project.ID
	}
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_", "\"", "").Replace(token)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatQty(v float64) string {
	return decimal.NewFromFloat(v).String()
}
