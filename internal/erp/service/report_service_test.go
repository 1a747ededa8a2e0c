package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/Epitheton-ltd/project-bom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var reportTime = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func sampleReport() *ProjectReport {
	project := reconcileProject()
	project.Code = "P-2026/01"
	project.Name = "样机项目"
	return BuildReport(project, Reconcile(project, nil), reportTime)
}

func TestBuildReport(t *testing.T) {
	report := sampleReport()

	assert.Equal(t, "prj-rec", report.Project.ID)
	assert.Equal(t, reportTime, report.GeneratedAt)
	require.NotNil(t, report.DeliveryDate)
	assert.Equal(t, "2026-05-01", report.DeliveryDate.Format("2006-01-02"))
	assert.Nil(t, report.AssemblyDate)

	// pr-done 之外的申请都未到货
	assert.Equal(t, 3, report.MissingProductsCount)
	assert.Equal(t, 3, report.MissingOrdersCount)
	assert.Len(t, report.MissingRequests, 3)

	assert.Len(t, report.Requirements, 8)
	assert.Len(t, report.Purchases, 3)
	assert.Equal(t, "5.00", report.Purchases[0].Amount.StringFixed(2))
	assert.Equal(t, "Acme", report.Purchases[0].Supplier)
	assert.Equal(t, "5.00", report.TotalProductCost.StringFixed(2))
	assert.NotNil(t, report.QuotingProducts, "empty lists encode as []")
}

func TestWriteMissingCSV(t *testing.T) {
	report := sampleReport()

	t.Run("utf-8", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeMissingCSV(&buf, report, EncodingUTF8))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "产品编码", rows[0][0])
		assert.Equal(t, []string{"BOLT", "螺栓", "pcs", "26", "10", "0", "16", "2026-05-01", "Acme", "0.00"}, rows[1])
		assert.Equal(t, "GLUE", rows[2][0])
		assert.Equal(t, "NUT", rows[3][0])
	})

	t.Run("gbk", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeMissingCSV(&buf, report, EncodingGBK))

		assert.False(t, bytes.Contains(buf.Bytes(), []byte("螺栓")), "output is not UTF-8")

		decoded, err := io.ReadAll(transform.NewReader(&buf, simplifiedchinese.GBK.NewDecoder()))
		require.NoError(t, err)
		rows, err := csv.NewReader(bytes.NewReader(decoded)).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "螺栓", rows[1][1])
	})

	t.Run("gbk unsupported runes", func(t *testing.T) {
		report := sampleReport()
		for i := range report.Procurement.Lines {
			if report.Procurement.Lines[i].ProductCode == "BOLT" {
				report.Procurement.Lines[i].ProductName = "Šroub ř 螺栓"
			}
		}

		var buf bytes.Buffer
		require.NoError(t, writeMissingCSV(&buf, report, EncodingGBK))

		decoded, err := io.ReadAll(transform.NewReader(&buf, simplifiedchinese.GBK.NewDecoder()))
		require.NoError(t, err)
		rows, err := csv.NewReader(bytes.NewReader(decoded)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Contains(t, rows[1][1], "roub")
		assert.Contains(t, rows[1][1], "螺栓")
		assert.NotContains(t, rows[1][1], "ř")
	})
}

func TestBuildReportWorkbook(t *testing.T) {
	f, err := buildReportWorkbook(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Requirements", "Procurement", "Purchases"}, f.GetSheetList())

	code, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "P-2026/01", code)

	header, err := f.GetCellValue("Procurement", "G1")
	require.NoError(t, err)
	assert.Equal(t, "缺口", header)

	first, err := f.GetCellValue("Procurement", "A2")
	require.NoError(t, err)
	assert.Equal(t, "BOLT", first)

	rows, err := f.GetRows("Purchases")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestArchiveKey(t *testing.T) {
	key := ArchiveKey("reports/", ProjectSummary{ID: "id-1", Code: "P 2026/01"}, reportTime)
	assert.Equal(t, "reports/P_2026_01/20260402T093000Z.xlsx", key)

	key = ArchiveKey("", ProjectSummary{ID: "id-1"}, reportTime)
	assert.Equal(t, "reports/id-1/20260402T093000Z.xlsx", key)
}

func TestReportCacheWithoutRedis(t *testing.T) {
	cache := NewReportCache(nil, 0, zap.NewNop())
	ctx := context.Background()

	cache.Set(ctx, sampleReport())
	_, ok := cache.Get(ctx, "prj-rec")
	assert.False(t, ok)
	cache.Invalidate(ctx, "prj-rec")

	var nilCache *ReportCache
	_, ok = nilCache.Get(ctx, "prj-rec")
	assert.False(t, ok)
}

func newReportTestService(t *testing.T) (*ReportService, *testutil.Fixture) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.SeedProjectFixture(t, db)

	cfg := &config.Config{}
	cfg.Procurement.DefaultUnit = "pcs"
	services := NewServices(repository.NewRepositories(db), db, nil, nil, cfg, zap.NewNop())
	return services.Report, fx
}

func TestReportServiceReport(t *testing.T) {
	svc, fx := newReportTestService(t)
	ctx := context.Background()

	report, err := svc.Report(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, "P-TEST", report.Project.Code)
	assert.Equal(t, 1, report.Procurement.MissingCount)
	assert.Equal(t, 1, report.MissingProductsCount)

	_, err = svc.Report(ctx, "no-such-project")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReportServiceExports(t *testing.T) {
	svc, fx := newReportTestService(t)
	ctx := context.Background()

	data, filename, err := svc.ExportMissingCSV(ctx, fx.Project.ID, "GBK")
	require.NoError(t, err)
	assert.Contains(t, filename, "P-TEST")
	assert.NotEmpty(t, data)

	_, _, err = svc.ExportMissingCSV(ctx, fx.Project.ID, "latin1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	f, filename, err := svc.ExportExcel(ctx, fx.Project.ID)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "Project_P-TEST_"+time.Now().Format("20060102")+".xlsx", filename)

	_, err = svc.Archive(ctx, fx.Project.ID)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestProjectServiceAttachConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.SeedProjectFixture(t, db)
	repos := repository.NewRepositories(db)
	svc := NewProjectService(repos.Project, repos.Purchase, repos.Catalog, NewReportCache(nil, 0, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	other, err := svc.Create(ctx, &CreateProjectRequest{Name: "另一个项目"}, "test-user")
	require.NoError(t, err)
	assert.NotEmpty(t, other.Code)

	err = svc.AttachPurchase(ctx, other.ID, fx.Purchase.ID)
	assert.ErrorIs(t, err, ErrConflict)
	err = svc.AttachPurchaseRequest(ctx, other.ID, fx.Request.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// 重新关联到同一项目是幂等的
	require.NoError(t, svc.AttachPurchase(ctx, fx.Project.ID, fx.Purchase.ID))

	err = svc.DetachPurchase(ctx, other.ID, fx.Purchase.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, svc.DetachPurchase(ctx, fx.Project.ID, fx.Purchase.ID))
	require.NoError(t, svc.AttachPurchase(ctx, other.ID, fx.Purchase.ID))

	var purchase entity.Purchase
	require.NoError(t, db.First(&purchase, "id = ?", fx.Purchase.ID).Error)
	require.NotNil(t, purchase.ProjectID)
	assert.Equal(t, other.ID, *purchase.ProjectID)
}
