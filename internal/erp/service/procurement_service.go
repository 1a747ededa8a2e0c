package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OriginPrefix 自动创建的采购申请来源前缀
const OriginPrefix = "project:"

// SchedulerUser 定时补货的操作人
const SchedulerUser = "scheduler"

// ProcurementLine 单个产品的需求与覆盖情况
type ProcurementLine struct {
	ProductID     string          `json:"product_id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	Unit          string          `json:"unit"`
	Required      float64         `json:"required"`
	Ordered       float64         `json:"ordered"`
	Requested     float64         `json:"requested"`
	Missing       float64         `json:"missing"`
	RequiredDate  *time.Time      `json:"required_date"`
	Supplier      *entity.Party   `json:"supplier,omitempty"`
	DeliveryDate  *time.Time      `json:"delivery_date"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
}

// Procurement 项目的补货分析结果
type Procurement struct {
	ProjectID     string            `json:"project_id"`
	Lines         []ProcurementLine `json:"lines"`
	MissingCount  int               `json:"missing_count"`
	EstimatedCost decimal.Decimal   `json:"estimated_cost"`
}

// MissingLines 缺口大于0的行
func (p *Procurement) MissingLines() []ProcurementLine {
	var lines []ProcurementLine
	for _, line := range p.Lines {
		if line.Missing > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// Reconcile 对比项目的BOM需求与已下单、已申请数量。prices 为产品最近单价，可为 nil。
//
// 需求 = 关联生产单的BOM投入 × 生产数量（数量为0按1计），加上未被任何关联生产单使用的关联BOM投入；
// 已下单 = 非取消采购订单的行数量；已申请 = 未取消、未完成且尚未转采购的申请数量，
// 以及已转为其他项目（或无项目）未取消采购单的申请数量。
func Reconcile(project *entity.Project, prices map[string]decimal.Decimal) *Procurement {
	type acc struct {
		line     ProcurementLine
		required decimal.Decimal
	}
	byProduct := make(map[string]*acc)
	get := func(productID string, product *entity.Product, unit string) *acc {
		a, ok := byProduct[productID]
		if !ok {
			a = &acc{line: ProcurementLine{ProductID: productID, Unit: unit}, required: decimal.Zero}
			byProduct[productID] = a
		}
		if product != nil && a.line.ProductCode == "" {
			a.line.ProductCode = product.Code
			a.line.ProductName = product.Name
			if a.line.Unit == "" {
				a.line.Unit = product.Unit
			}
		}
		return a
	}

	usedBOMs := make(map[string]bool)
	for _, production := range project.Productions {
		if production.BOM == nil || production.State == entity.ProductionStateCancelled {
			continue
		}
		usedBOMs[production.BOM.ID] = true
		factor := decimal.NewFromFloat(production.Quantity)
		if factor.IsZero() {
			factor = decimal.NewFromInt(1)
		}
		for _, input := range production.BOM.Inputs {
			a := get(input.ProductID, input.Product, input.Unit)
			a.required = a.required.Add(decimal.NewFromFloat(input.Quantity).Mul(factor))
		}
	}
	for _, bom := range project.BOMs {
		if usedBOMs[bom.ID] {
			continue
		}
		for _, input := range bom.Inputs {
			a := get(input.ProductID, input.Product, input.Unit)
			a.required = a.required.Add(decimal.NewFromFloat(input.Quantity))
		}
	}

	ordered := make(map[string]decimal.Decimal)
	projectPurchases := make(map[string]bool, len(project.Purchases))
	for _, purchase := range project.Purchases {
		projectPurchases[purchase.ID] = true
		if purchase.State == entity.PurchaseStateCancelled {
			continue
		}
		for _, line := range purchase.Lines {
			if line.ProductID == nil {
				continue
			}
			ordered[*line.ProductID] = ordered[*line.ProductID].Add(decimal.NewFromFloat(line.Quantity))
		}
	}

	requested := make(map[string]decimal.Decimal)
	for _, pr := range project.PurchaseRequests {
		if pr.State == entity.PRStateCancelled {
			continue
		}
		if pr.PurchaseID != nil {
			// 采购单属于本项目时已按订单行计入；不属于本项目的按申请数量计入
			if projectPurchases[*pr.PurchaseID] {
				continue
			}
			if pr.Purchase != nil && pr.Purchase.State == entity.PurchaseStateCancelled {
				continue
			}
		} else if pr.State == entity.PRStateDone {
			continue
		}
		requested[pr.ProductID] = requested[pr.ProductID].Add(decimal.NewFromFloat(pr.Quantity))
	}

	result := &Procurement{ProjectID: project.ID, EstimatedCost: decimal.Zero}
	requiredDate := project.DeliveryDate()
	for productID, a := range byProduct {
		if !a.required.IsPositive() {
			continue
		}
		missing := a.required.Sub(ordered[productID]).Sub(requested[productID])
		if missing.IsNegative() {
			missing = decimal.Zero
		}

		line := a.line
		line.Required = a.required.InexactFloat64()
		line.Ordered = ordered[productID].InexactFloat64()
		line.Requested = requested[productID].InexactFloat64()
		line.Missing = missing.InexactFloat64()
		line.RequiredDate = requiredDate
		line.Supplier = project.ProductSupplier(productID, nil)
		line.DeliveryDate = project.ProductDeliveryDate(productID, nil)
		line.UnitPrice = prices[productID]
		line.EstimatedCost = missing.Mul(line.UnitPrice).Round(2)

		if missing.IsPositive() {
			result.MissingCount++
			result.EstimatedCost = result.EstimatedCost.Add(line.EstimatedCost)
		}
		result.Lines = append(result.Lines, line)
	}

	slices.SortFunc(result.Lines, func(a, b ProcurementLine) int {
		return cmp.Or(cmp.Compare(a.ProductCode, b.ProductCode), cmp.Compare(a.ProductID, b.ProductID))
	})
	return result
}

// ProcurementService 项目补货服务
type ProcurementService struct {
	projectRepo  *repository.ProjectRepository
	purchaseRepo *repository.PurchaseRepository
	db           *gorm.DB
	cache        *ReportCache
	cfg          config.ProcurementConfig
	logger       *zap.Logger
}

func NewProcurementService(pr *repository.ProjectRepository, pur *repository.PurchaseRepository, db *gorm.DB, cache *ReportCache, cfg config.ProcurementConfig, logger *zap.Logger) *ProcurementService {
	return &ProcurementService{
		projectRepo:  pr,
		purchaseRepo: pur,
		db:           db,
		cache:        cache,
		cfg:          cfg,
		logger:       logger,
	}
}

// Reconcile 加载项目并计算补货分析
func (s *ProcurementService) Reconcile(ctx context.Context, projectID string) (*Procurement, error) {
	project, err := s.projectRepo.FindDetail(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	return s.reconcileLoaded(ctx, s.purchaseRepo, project)
}

func (s *ProcurementService) reconcileLoaded(ctx context.Context, purchaseRepo *repository.PurchaseRepository, project *entity.Project) (*Procurement, error) {
	var productIDs []string
	for req := range project.AllProducts() {
		productIDs = append(productIDs, req.ProductID)
	}
	for _, bom := range project.BOMs {
		for _, input := range bom.Inputs {
			productIDs = append(productIDs, input.ProductID)
		}
	}
	slices.Sort(productIDs)
	productIDs = slices.Compact(productIDs)

	prices, err := purchaseRepo.LastUnitPrices(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("查询产品单价失败: %w", err)
	}
	return Reconcile(project, prices), nil
}

// CreatePurchaseRequests 为每个缺口创建一张草稿采购申请，全部在同一事务中完成。
// 新申请会计入下一次分析的已申请数量，重复调用不会重复创建。
func (s *ProcurementService) CreatePurchaseRequests(ctx context.Context, projectID, userID string) ([]entity.PurchaseRequest, error) {
	var created []entity.PurchaseRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projectRepo := s.projectRepo.WithTx(tx)
		purchaseRepo := s.purchaseRepo.WithTx(tx)

		if err := projectRepo.LockByID(ctx, projectID); err != nil {
			return fmt.Errorf("项目不存在: %w", err)
		}
		project, err := projectRepo.FindDetail(ctx, projectID)
		if err != nil {
			return fmt.Errorf("项目不存在: %w", err)
		}

		procurement, err := s.reconcileLoaded(ctx, purchaseRepo, project)
		if err != nil {
			return err
		}

		for i, line := range procurement.MissingLines() {
			code, err := purchaseRepo.GenerateRequestCode(ctx, i)
			if err != nil {
				return fmt.Errorf("生成采购申请编码失败: %w", err)
			}
			unit := line.Unit
			if unit == "" {
				unit = s.cfg.DefaultUnit
			}
			pr := entity.PurchaseRequest{
				ID:           uuid.New().String(),
				Code:         code,
				ProductID:    line.ProductID,
				Quantity:     line.Missing,
				Unit:         unit,
				State:        entity.PRStateDraft,
				ProjectID:    &project.ID,
				RequiredDate: line.RequiredDate,
				Origin:       OriginPrefix + project.ID,
				CreatedBy:    userID,
			}
			if line.Supplier != nil {
				pr.PartyID = &line.Supplier.ID
			}
			created = append(created, pr)
		}

		return purchaseRepo.BatchCreateRequests(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.cache.Invalidate(ctx, projectID)
		s.logger.Info("Purchase requests created",
			zap.String("project_id", projectID),
			zap.Int("count", len(created)),
			zap.String("user_id", userID),
		)
	}
	if created == nil {
		created = []entity.PurchaseRequest{}
	}
	return created, nil
}

// ReplenishOpenProjects 为所有进行中的项目补建采购申请，返回新建数量。
// 单个项目失败只记录日志，不影响其他项目。
func (s *ProcurementService) ReplenishOpenProjects(ctx context.Context) (int, error) {
	ids, err := s.projectRepo.FindOpenIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("查询进行中项目失败: %w", err)
	}

	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		created, err := s.CreatePurchaseRequests(ctx, id, SchedulerUser)
		if err != nil {
			s.logger.Error("Replenish project failed", zap.String("project_id", id), zap.Error(err))
			continue
		}
		total += len(created)
	}
	return total, nil
}

// RunScheduler 按配置的间隔定时补货，ctx 取消时退出；间隔为 0 时立即返回
func (s *ProcurementService) RunScheduler(ctx context.Context) {
	interval := s.cfg.AutoInterval
	if interval <= 0 {
		return
	}

	s.logger.Info("Procurement scheduler started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Procurement scheduler stopped")
			return
		case <-ticker.C:
			n, err := s.ReplenishOpenProjects(ctx)
			if err != nil {
				s.logger.Error("Procurement run failed", zap.Error(err))
				continue
			}
			s.logger.Info("Procurement run finished", zap.Int("created", n))
		}
	}
}
