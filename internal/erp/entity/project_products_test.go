package entity

import (
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func productCodes(seq func(func(*Product) bool)) []string {
	var codes []string
	for p := range seq {
		codes = append(codes, p.Code)
	}
	return codes
}

// buildProject 构造一个覆盖各种采购状态的项目
func buildProject() *Project {
	screw := &Product{ID: "p-screw", Code: "SCREW", Name: "螺丝"}
	plate := &Product{ID: "p-plate", Code: "PLATE", Name: "钢板"}
	motor := &Product{ID: "p-motor", Code: "MOTOR", Name: "电机"}
	cable := &Product{ID: "p-cable", Code: "CABLE", Name: "线缆"}
	acme := &Party{ID: "party-acme", Code: "ACME", Name: "Acme"}
	globex := &Party{ID: "party-globex", Code: "GLOBEX", Name: "Globex"}

	bom := BOM{ID: "bom-1", Code: "BOM-1", Inputs: []BOMInput{
		{ID: "in-1", BOMID: "bom-1", ProductID: screw.ID, Product: screw, Quantity: 4},
		{ID: "in-2", BOMID: "bom-1", ProductID: plate.ID, Product: plate, Quantity: 1},
	}}

	donePurchase := &Purchase{ID: "po-done", State: PurchaseStateDone, PartyID: acme.ID, Party: acme}
	runningPurchase := &Purchase{ID: "po-run", State: PurchaseStateProcessing, PartyID: globex.ID, Party: globex}

	assembly := &Operation{ID: "op-asm", Name: OperationAssembly}
	paint := &Operation{ID: "op-paint", Name: "PAINT"}

	return &Project{
		ID:   "prj-1",
		Code: "P-001",
		Name: "测试项目",
		BOMs: []BOM{bom},
		Productions: []Production{
			{
				ID:          "mo-1",
				BOMID:       ptr(bom.ID),
				BOM:         &bom,
				Quantity:    2,
				PlannedDate: ptr(date(2026, 3, 1)),
				Works: []ProductionWork{
					{ID: "w-1", Operation: paint, TimesheetWorks: []TimesheetWork{{ID: "tw-paint", TimesheetStartDate: ptr(date(2026, 1, 5))}}},
					{ID: "w-2", Operation: assembly, TimesheetWorks: []TimesheetWork{
						{ID: "tw-asm-1", TimesheetStartDate: ptr(date(2026, 2, 10))},
						{ID: "tw-asm-2", TimesheetStartDate: ptr(date(2026, 2, 20))},
					}},
				},
			},
			{ID: "mo-2", PlannedDate: ptr(date(2026, 4, 1))},
		},
		PurchaseRequests: []PurchaseRequest{
			{ID: "pr-draft", ProductID: screw.ID, Product: screw, Quantity: 8, State: PRStateDraft},
			{ID: "pr-processing", ProductID: plate.ID, Product: plate, Quantity: 2, State: PRStateProcessing, PurchaseID: ptr(runningPurchase.ID), Purchase: runningPurchase},
			{ID: "pr-done", ProductID: motor.ID, Product: motor, Quantity: 1, State: PRStateDone},
			{ID: "pr-po-done", ProductID: cable.ID, Product: cable, Quantity: 3, State: PRStatePurchased, PurchaseID: ptr(donePurchase.ID), Purchase: donePurchase},
		},
		Purchases: []Purchase{
			{
				ID: "po-quote", State: PurchaseStateQuotation, PartyID: acme.ID, Party: acme,
				DeliveryDate: ptr(date(2026, 2, 1)),
				Lines: []PurchaseLine{
					{ID: "l-1", ProductID: ptr(screw.ID), Product: screw, Quantity: 8, UnitPrice: decimal.RequireFromString("0.125")},
					{ID: "l-note", Description: "运费说明"},
				},
			},
			{
				ID: "po-run", State: PurchaseStateProcessing, PartyID: globex.ID, Party: globex,
				DeliveryDate: ptr(date(2026, 2, 15)),
				Lines: []PurchaseLine{
					{ID: "l-2", ProductID: ptr(plate.ID), Product: plate, Quantity: 2, UnitPrice: decimal.RequireFromString("12.333")},
					{ID: "l-3", ProductID: ptr(screw.ID), Product: screw, Quantity: 16, UnitPrice: decimal.RequireFromString("0.1")},
				},
			},
			{
				ID: "po-done", State: PurchaseStateDone, PartyID: acme.ID, Party: acme,
				Lines: []PurchaseLine{
					{ID: "l-4", ProductID: ptr(cable.ID), Product: cable, Quantity: 3, UnitPrice: decimal.NewFromInt(5)},
				},
			},
		},
		TimesheetWorks: []TimesheetWork{
			{ID: "tw-prj", Lines: []TimesheetLine{
				{ID: "tl-1", Date: date(2026, 1, 10), Duration: 2 * time.Hour},
				{ID: "tl-2", Date: date(2026, 1, 10), Duration: 90 * time.Minute},
				{ID: "tl-3", Date: date(2026, 1, 11), Duration: 20 * time.Minute},
			}},
		},
	}
}

func TestAssemblyDate(t *testing.T) {
	p := buildProject()
	got := p.AssemblyDate()
	require.NotNil(t, got)
	assert.Equal(t, date(2026, 2, 10), *got)

	t.Run("assembly work without timesheet", func(t *testing.T) {
		p := buildProject()
		p.Productions[0].Works[1].TimesheetWorks = nil
		assert.Nil(t, p.AssemblyDate())
	})

	t.Run("no assembly work", func(t *testing.T) {
		p := buildProject()
		p.Productions[0].Works = p.Productions[0].Works[:1]
		assert.Nil(t, p.AssemblyDate())
	})

	t.Run("no productions", func(t *testing.T) {
		assert.Nil(t, (&Project{}).AssemblyDate())
	})
}

func TestDeliveryDate(t *testing.T) {
	p := buildProject()
	require.NotNil(t, p.DeliveryDate())
	assert.Equal(t, date(2026, 3, 1), *p.DeliveryDate())
	assert.Nil(t, (&Project{}).DeliveryDate())
}

func TestHasProduct(t *testing.T) {
	p := buildProject()
	assert.True(t, p.HasProduct("p-screw"))
	assert.False(t, p.HasProduct("p-motor"))
	assert.False(t, (&Project{}).HasProduct("p-screw"))
}

func TestRequestBasedProducts(t *testing.T) {
	p := buildProject()

	assert.Equal(t, []string{"SCREW"}, productCodes(p.MissingOrders()))
	assert.Equal(t, []string{"SCREW", "PLATE"}, productCodes(p.MissingProducts()))
	assert.Equal(t, []string{"MOTOR", "CABLE"}, productCodes(p.DeliveredProducts()))

	var ids []string
	for pr := range p.MissingOrderRequests() {
		ids = append(ids, pr.ID)
	}
	assert.Equal(t, []string{"pr-draft", "pr-processing"}, ids)

	assert.Equal(t, 2, p.CountMissingProducts())
	assert.Equal(t, 1, p.CountMissingOrders())
}

func TestPurchaseBasedProducts(t *testing.T) {
	p := buildProject()

	assert.Equal(t, []string{"SCREW"}, productCodes(p.QuotingProducts()))
	assert.Equal(t, []string{"PLATE", "SCREW"}, productCodes(p.PurchasedProducts()))
	assert.Equal(t, []string{"PLATE", "SCREW", "CABLE"}, productCodes(p.OrderedProducts()))
}

func TestAllProducts(t *testing.T) {
	p := buildProject()
	reqs := slices.Collect(p.AllProducts())
	require.Len(t, reqs, 2)
	assert.Equal(t, "p-screw", reqs[0].ProductID)
	assert.Equal(t, 4.0, reqs[0].Quantity)
	assert.Equal(t, "bom-1", reqs[0].BOMID)
	assert.Equal(t, "mo-1", reqs[0].ProductionID)
	assert.Equal(t, "p-plate", reqs[1].ProductID)
}

func TestCosts(t *testing.T) {
	p := buildProject()
	costs := p.PurchaseCosts()
	require.Len(t, costs, 5)
	assert.True(t, costs[0].Equal(decimal.NewFromInt(1)))
	assert.True(t, costs[1].IsZero())
	assert.True(t, costs[2].Equal(decimal.RequireFromString("24.666")))

	// 1 + 0 + 24.666 + 1.6 + 15 = 42.266
	assert.Equal(t, "42.27", p.TotalProductCost().StringFixed(2))
	assert.True(t, (&Project{}).TotalProductCost().IsZero())
}

func TestProductPurchase(t *testing.T) {
	p := buildProject()

	got := p.ProductPurchase("p-screw", nil)
	require.NotNil(t, got)
	assert.Equal(t, "po-quote", got.ID)

	got = p.ProductPurchase("p-screw", ptr(16.0))
	require.NotNil(t, got)
	assert.Equal(t, "po-run", got.ID)

	got = p.ProductPurchase("p-screw", ptr(0.0))
	require.NotNil(t, got)
	assert.Equal(t, "po-quote", got.ID)

	assert.Nil(t, p.ProductPurchase("p-screw", ptr(99.0)))
	assert.Nil(t, p.ProductPurchase("p-motor", nil))
}

func TestProductSupplierAndDeliveryDate(t *testing.T) {
	p := buildProject()

	supplier := p.ProductSupplier("p-plate", ptr(2.0))
	require.NotNil(t, supplier)
	assert.Equal(t, "GLOBEX", supplier.Code)

	delivery := p.ProductDeliveryDate("p-plate", nil)
	require.NotNil(t, delivery)
	assert.Equal(t, date(2026, 2, 15), *delivery)

	assert.Nil(t, p.ProductSupplier("p-motor", nil))
	assert.Nil(t, p.ProductDeliveryDate("p-cable", nil))
}

func TestHours(t *testing.T) {
	p := buildProject()
	assert.InDelta(t, 3.5, p.TodayHours(date(2026, 1, 10)), 1e-9)
	assert.InDelta(t, 0.0, p.TodayHours(date(2026, 1, 12)), 1e-9)
	assert.InDelta(t, 3.5, p.TodayHours(time.Date(2026, 1, 10, 17, 30, 0, 0, time.UTC)), 1e-9)
	assert.Equal(t, 3.83, p.TotalHours())
	assert.Equal(t, 0.0, (&Project{}).TotalHours())
}

func TestTodayHoursInLocalZone(t *testing.T) {
	p := buildProject()
	for _, offset := range []int{8, 1, -5} {
		zone := time.FixedZone("test", offset*3600)
		day, err := time.ParseInLocation("2006-01-02", "2026-01-10", zone)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, p.TodayHours(day), 1e-9, "offset %d", offset)
		assert.InDelta(t, 3.5, p.TodayHours(day.Add(23*time.Hour)), 1e-9, "offset %d late", offset)
	}
}
