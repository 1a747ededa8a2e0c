package service

import (
	"context"
	"testing"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/Epitheton-ltd/project-bom/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

// reconcileProject 两个生产单共用一张BOM，另有一张未被生产单使用的BOM
func reconcileProject() *entity.Project {
	bolt := &entity.Product{ID: "p-bolt", Code: "BOLT", Name: "螺栓", Unit: "pcs"}
	nut := &entity.Product{ID: "p-nut", Code: "NUT", Name: "螺母", Unit: "pcs"}
	frame := &entity.Product{ID: "p-frame", Code: "FRAME", Name: "机架", Unit: "set"}
	glue := &entity.Product{ID: "p-glue", Code: "GLUE", Name: "胶水", Unit: "ml"}
	acme := &entity.Party{ID: "party-acme", Code: "ACME", Name: "Acme"}

	main := entity.BOM{ID: "bom-main", Inputs: []entity.BOMInput{
		{ProductID: bolt.ID, Product: bolt, Quantity: 4, Unit: "pcs"},
		{ProductID: nut.ID, Product: nut, Quantity: 4, Unit: "pcs"},
		{ProductID: frame.ID, Product: frame, Quantity: 1, Unit: "set"},
	}}
	spare := entity.BOM{ID: "bom-spare", Inputs: []entity.BOMInput{
		{ProductID: bolt.ID, Product: bolt, Quantity: 10, Unit: "pcs"},
		{ProductID: glue.ID, Product: glue, Quantity: 50, Unit: "ml"},
	}}
	delivery := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	return &entity.Project{
		ID:   "prj-rec",
		BOMs: []entity.BOM{main, spare},
		Productions: []entity.Production{
			{ID: "mo-1", BOM: &main, BOMID: ptr(main.ID), Quantity: 3, PlannedDate: &delivery},
			{ID: "mo-2", BOM: &main, BOMID: ptr(main.ID), Quantity: 0},
			{ID: "mo-cancel", BOM: &spare, BOMID: ptr(spare.ID), Quantity: 5, State: entity.ProductionStateCancelled},
		},
		Purchases: []entity.Purchase{
			{ID: "po-1", State: entity.PurchaseStateConfirmed, Party: acme, Lines: []entity.PurchaseLine{
				{ProductID: ptr(bolt.ID), Quantity: 10, UnitPrice: decimal.RequireFromString("0.5")},
				{Description: "运费"},
			}},
			{ID: "po-cancel", State: entity.PurchaseStateCancelled, Lines: []entity.PurchaseLine{
				{ProductID: ptr(nut.ID), Quantity: 100},
			}},
			{ID: "po-2", State: entity.PurchaseStateDone, Lines: []entity.PurchaseLine{
				{ProductID: ptr(frame.ID), Quantity: 10},
			}},
		},
		PurchaseRequests: []entity.PurchaseRequest{
			{ID: "pr-open", ProductID: nut.ID, Quantity: 6, State: entity.PRStateDraft},
			{ID: "pr-cancel", ProductID: nut.ID, Quantity: 50, State: entity.PRStateCancelled},
			{ID: "pr-done", ProductID: nut.ID, Quantity: 50, State: entity.PRStateDone},
			{ID: "pr-bought", ProductID: bolt.ID, Quantity: 10, State: entity.PRStatePurchased, PurchaseID: ptr("po-1")},
		},
	}
}

func lineByCode(t *testing.T, p *Procurement, code string) ProcurementLine {
	t.Helper()
	for _, line := range p.Lines {
		if line.ProductCode == code {
			return line
		}
	}
	t.Fatalf("line %s not found", code)
	return ProcurementLine{}
}

func TestReconcile(t *testing.T) {
	project := reconcileProject()
	prices := map[string]decimal.Decimal{
		"p-bolt": decimal.RequireFromString("0.5"),
		"p-nut":  decimal.RequireFromString("0.125"),
	}

	result := Reconcile(project, prices)

	codes := make([]string, 0, len(result.Lines))
	for _, line := range result.Lines {
		codes = append(codes, line.ProductCode)
	}
	assert.Equal(t, []string{"BOLT", "FRAME", "GLUE", "NUT"}, codes, "lines are sorted by product code")

	// 螺栓: 4×3 + 4×1 + 备件BOM 10 = 26，已下单10
	bolt := lineByCode(t, result, "BOLT")
	assert.Equal(t, 26.0, bolt.Required)
	assert.Equal(t, 10.0, bolt.Ordered)
	assert.Equal(t, 0.0, bolt.Requested, "requests already turned into purchases are not counted twice")
	assert.Equal(t, 16.0, bolt.Missing)
	assert.Equal(t, "8.00", bolt.EstimatedCost.StringFixed(2))
	require.NotNil(t, bolt.Supplier)
	assert.Equal(t, "ACME", bolt.Supplier.Code)

	// 螺母: 16，取消的订单与申请不计，已申请6
	nut := lineByCode(t, result, "NUT")
	assert.Equal(t, 16.0, nut.Required)
	assert.Equal(t, 0.0, nut.Ordered)
	assert.Equal(t, 6.0, nut.Requested)
	assert.Equal(t, 10.0, nut.Missing)
	assert.Equal(t, "1.25", nut.EstimatedCost.StringFixed(2))

	// 机架: 超量采购，缺口为0
	frame := lineByCode(t, result, "FRAME")
	assert.Equal(t, 4.0, frame.Required)
	assert.Equal(t, 0.0, frame.Missing)
	assert.Equal(t, "set", frame.Unit)

	glue := lineByCode(t, result, "GLUE")
	assert.Equal(t, 50.0, glue.Missing)
	assert.True(t, glue.EstimatedCost.IsZero(), "unknown price yields zero cost")

	require.NotNil(t, bolt.RequiredDate)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *bolt.RequiredDate)

	assert.Equal(t, 3, result.MissingCount)
	assert.Equal(t, "9.25", result.EstimatedCost.StringFixed(2))
	assert.Len(t, result.MissingLines(), 3)
}

func TestReconcileEmptyProject(t *testing.T) {
	result := Reconcile(&entity.Project{ID: "empty"}, nil)
	assert.Empty(t, result.Lines)
	assert.Zero(t, result.MissingCount)
	assert.True(t, result.EstimatedCost.IsZero())
}

func TestReconcileNeverNegative(t *testing.T) {
	project := reconcileProject()
	project.PurchaseRequests = append(project.PurchaseRequests, entity.PurchaseRequest{
		ID: "pr-big", ProductID: "p-glue", Quantity: 1000, State: entity.PRStateProcessing,
	})
	glue := lineByCode(t, Reconcile(project, nil), "GLUE")
	assert.Equal(t, 0.0, glue.Missing)
}

func TestReconcileRequestsConvertedOutsideProject(t *testing.T) {
	project := reconcileProject()
	project.PurchaseRequests = append(project.PurchaseRequests,
		entity.PurchaseRequest{ID: "pr-elsewhere", ProductID: "p-glue", Quantity: 50, State: entity.PRStatePurchased,
			PurchaseID: ptr("po-other"), Purchase: &entity.Purchase{ID: "po-other", State: entity.PurchaseStateConfirmed}},
		entity.PurchaseRequest{ID: "pr-void", ProductID: "p-glue", Quantity: 50, State: entity.PRStatePurchased,
			PurchaseID: ptr("po-void"), Purchase: &entity.Purchase{ID: "po-void", State: entity.PurchaseStateCancelled}},
	)

	glue := lineByCode(t, Reconcile(project, nil), "GLUE")
	assert.Equal(t, 50.0, glue.Requested)
	assert.Equal(t, 0.0, glue.Missing)

	bolt := lineByCode(t, Reconcile(project, nil), "BOLT")
	assert.Equal(t, 0.0, bolt.Requested, "purchase of this project is counted by its lines")
}

func TestProcurementServiceRequestConvertedOutsideProject(t *testing.T) {
	svc, fx := newProcurementTestService(t)
	ctx := context.Background()

	created, err := svc.CreatePurchaseRequests(ctx, fx.Project.ID, "test-user")
	require.NoError(t, err)
	require.Len(t, created, 1)

	// 申请被转为不属于任何项目的采购单
	for _, pr := range created {
		purchase := &entity.Purchase{
			ID: "po-" + pr.ID, Number: "PO-" + pr.Code, PartyID: fx.Supplier.ID, State: entity.PurchaseStateConfirmed,
		}
		require.NoError(t, svc.db.Create(purchase).Error)
		require.NoError(t, svc.db.Model(&entity.PurchaseRequest{}).Where("id = ?", pr.ID).
			Updates(map[string]interface{}{"purchase_id": purchase.ID, "state": entity.PRStatePurchased}).Error)
	}

	again, err := svc.CreatePurchaseRequests(ctx, fx.Project.ID, "test-user")
	require.NoError(t, err)
	assert.Empty(t, again, "converted requests still cover the shortfall")
}

func newProcurementTestService(t *testing.T) (*ProcurementService, *testutil.Fixture) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.SeedProjectFixture(t, db)

	repos := repository.NewRepositories(db)
	cfg := config.ProcurementConfig{DefaultUnit: "pcs"}
	svc := NewProcurementService(repos.Project, repos.Purchase, db, NewReportCache(nil, 0, zap.NewNop()), cfg, zap.NewNop())
	return svc, fx
}

func TestProcurementServiceCreatePurchaseRequests(t *testing.T) {
	svc, fx := newProcurementTestService(t)
	ctx := context.Background()

	before, err := svc.Reconcile(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, before.MissingCount)

	created, err := svc.CreatePurchaseRequests(ctx, fx.Project.ID, "test-user")
	require.NoError(t, err)
	require.Len(t, created, 1)

	pr := created[0]
	assert.Equal(t, fx.Plate.ID, pr.ProductID)
	assert.Equal(t, 1.0, pr.Quantity)
	assert.Equal(t, entity.PRStateDraft, pr.State)
	assert.Equal(t, OriginPrefix+fx.Project.ID, pr.Origin)
	require.NotNil(t, pr.ProjectID)
	assert.Equal(t, fx.Project.ID, *pr.ProjectID)
	require.NotNil(t, pr.RequiredDate)
	assert.Equal(t, "2026-03-01", pr.RequiredDate.UTC().Format("2006-01-02"))

	again, err := svc.CreatePurchaseRequests(ctx, fx.Project.ID, "test-user")
	require.NoError(t, err)
	assert.Empty(t, again, "second run finds nothing missing")

	after, err := svc.Reconcile(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Zero(t, after.MissingCount)
}

func TestProcurementServiceReplenishOpenProjects(t *testing.T) {
	svc, _ := newProcurementTestService(t)
	ctx := context.Background()

	n, err := svc.ReplenishOpenProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.CreatePurchaseRequests(ctx, "missing-project", SchedulerUser)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunSchedulerDisabled(t *testing.T) {
	svc := NewProcurementService(nil, nil, nil, nil, config.ProcurementConfig{}, zap.NewNop())
	done := make(chan struct{})
	go func() {
		svc.RunScheduler(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler with zero interval should return immediately")
	}
}
