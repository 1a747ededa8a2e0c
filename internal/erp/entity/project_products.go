package entity

import (
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// 以下方法都只遍历已加载的关联数据，调用方负责 Preload。

// ProductRequirement 生产单BOM中的一条投入需求
type ProductRequirement struct {
	Product      *Product `json:"product"`
	ProductID    string   `json:"product_id"`
	Quantity     float64  `json:"quantity"`
	BOMID        string   `json:"bom_id"`
	ProductionID string   `json:"production_id"`
}

// AssemblyDate 装配日期：第一个包含装配工序的生产单的第一条工时作业开始日期
func (p *Project) AssemblyDate() *time.Time {
	for _, production := range p.Productions {
		for _, work := range production.Works {
			if work.Operation == nil || work.Operation.Name != OperationAssembly {
				continue
			}
			if len(work.TimesheetWorks) == 0 {
				return nil
			}
			return work.TimesheetWorks[0].TimesheetStartDate
		}
	}
	return nil
}

// DeliveryDate 交付日期：第一个生产单的计划日期
func (p *Project) DeliveryDate() *time.Time {
	if len(p.Productions) == 0 {
		return nil
	}
	return p.Productions[0].PlannedDate
}

// HasProduct 项目关联的BOM中是否含有该产品
func (p *Project) HasProduct(productID string) bool {
	for _, bom := range p.BOMs {
		for _, input := range bom.Inputs {
			if input.ProductID == productID {
				return true
			}
		}
	}
	return false
}

// MissingOrders 尚未下单的产品（申请既未处理也未完成，且采购未完成）
func (p *Project) MissingOrders() iter.Seq[*Product] {
	return p.requestProducts(func(pr *PurchaseRequest) bool {
		if pr.State == PRStateProcessing || pr.State == PRStateDone {
			return false
		}
		return !pr.PurchaseDone()
	})
}

// MissingProducts 尚未到货的产品
func (p *Project) MissingProducts() iter.Seq[*Product] {
	return p.requestProducts(isMissingRequest)
}

// MissingOrderRequests 尚未到货的采购申请
func (p *Project) MissingOrderRequests() iter.Seq[*PurchaseRequest] {
	return func(yield func(*PurchaseRequest) bool) {
		for i := range p.PurchaseRequests {
			pr := &p.PurchaseRequests[i]
			if !isMissingRequest(pr) {
				continue
			}
			if !yield(pr) {
				return
			}
		}
	}
}

// DeliveredProducts 已到货的产品
func (p *Project) DeliveredProducts() iter.Seq[*Product] {
	return p.requestProducts(func(pr *PurchaseRequest) bool {
		return pr.State == PRStateDone || pr.PurchaseDone()
	})
}

// QuotingProducts 询价中的产品
func (p *Project) QuotingProducts() iter.Seq[*Product] {
	return p.purchaseProducts(PurchaseStateQuotation)
}

// PurchasedProducts 已确认采购的产品
func (p *Project) PurchasedProducts() iter.Seq[*Product] {
	return p.purchaseProducts(PurchaseStateConfirmed, PurchaseStateProcessing)
}

// OrderedProducts 已下单的产品
func (p *Project) OrderedProducts() iter.Seq[*Product] {
	return p.purchaseProducts(PurchaseStateDone, PurchaseStateProcessing)
}

// AllProducts 经由生产单BOM展开的全部投入
func (p *Project) AllProducts() iter.Seq[ProductRequirement] {
	return func(yield func(ProductRequirement) bool) {
		for _, production := range p.Productions {
			if production.BOM == nil {
				continue
			}
			for _, input := range production.BOM.Inputs {
				req := ProductRequirement{
					Product:      input.Product,
					ProductID:    input.ProductID,
					Quantity:     input.Quantity,
					BOMID:        production.BOM.ID,
					ProductionID: production.ID,
				}
				if !yield(req) {
					return
				}
			}
		}
	}
}

// PurchaseCosts 每条采购行的金额
func (p *Project) PurchaseCosts() []decimal.Decimal {
	var costs []decimal.Decimal
	for _, purchase := range p.Purchases {
		for _, line := range purchase.Lines {
			costs = append(costs, line.Amount())
		}
	}
	return costs
}

// TotalProductCost 采购总成本，保留两位小数
func (p *Project) TotalProductCost() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.PurchaseCosts() {
		total = total.Add(c)
	}
	return total.Round(2)
}

// ProductPurchase 第一张包含该产品的采购订单；quantity 非空时数量也须一致
func (p *Project) ProductPurchase(productID string, quantity *float64) *Purchase {
	for i := range p.Purchases {
		purchase := &p.Purchases[i]
		for _, line := range purchase.Lines {
			if line.ProductID == nil || *line.ProductID != productID {
				continue
			}
			if quantity != nil && *quantity != 0 && line.Quantity != *quantity {
				continue
			}
			return purchase
		}
	}
	return nil
}

// ProductSupplier 该产品的供应商
func (p *Project) ProductSupplier(productID string, quantity *float64) *Party {
	if purchase := p.ProductPurchase(productID, quantity); purchase != nil {
		return purchase.Party
	}
	return nil
}

// ProductDeliveryDate 该产品的交货日期
func (p *Project) ProductDeliveryDate(productID string, quantity *float64) *time.Time {
	if purchase := p.ProductPurchase(productID, quantity); purchase != nil {
		return purchase.DeliveryDate
	}
	return nil
}

// TodayHours 指定日期的工时（小时）
func (p *Project) TodayHours(day time.Time) float64 {
	var total time.Duration
	for _, tw := range p.TimesheetWorks {
		for _, tl := range tw.Lines {
			if sameDay(tl.Date, day) {
				total += tl.Duration
			}
		}
	}
	return total.Hours()
}

// TotalHours 总工时（小时），保留两位小数
func (p *Project) TotalHours() float64 {
	var total time.Duration
	for _, tw := range p.TimesheetWorks {
		for _, tl := range tw.Lines {
			total += tl.Duration
		}
	}
	hours, _ := decimal.NewFromFloat(total.Hours()).Round(2).Float64()
	return hours
}

// CountMissingProducts 缺料数量
func (p *Project) CountMissingProducts() int {
	return count(p.MissingProducts())
}

// CountMissingOrders 未下单数量
func (p *Project) CountMissingOrders() int {
	return count(p.MissingOrders())
}

func isMissingRequest(pr *PurchaseRequest) bool {
	if pr.State == PRStateDone {
		return false
	}
	return !pr.PurchaseDone()
}

func (p *Project) requestProducts(keep func(*PurchaseRequest) bool) iter.Seq[*Product] {
	return func(yield func(*Product) bool) {
		for i := range p.PurchaseRequests {
			pr := &p.PurchaseRequests[i]
			if !keep(pr) {
				continue
			}
			if !yield(pr.Product) {
				return
			}
		}
	}
}

func (p *Project) purchaseProducts(states ...string) iter.Seq[*Product] {
	return func(yield func(*Product) bool) {
		for _, purchase := range p.Purchases {
			if !slices.Contains(states, purchase.State) {
				continue
			}
			for _, line := range purchase.Lines {
				if line.ProductID == nil {
					continue
				}
				if !yield(line.Product) {
					return
				}
			}
		}
	}
}

func count[T any](seq iter.Seq[T]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

// sameDay 比较日历日期：date 列按 UTC 零点读出，day 取其自身时区的日期，不做时区换算
func sameDay(column, day time.Time) bool {
	ay, am, ad := column.UTC().Date()
	by, bm, bd := day.Date()
	return ay == by && am == bm && ad == bd
}
