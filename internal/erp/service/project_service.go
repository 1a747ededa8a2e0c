package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 产品列表类别
const (
	ProductKindMissingOrders = "missing_orders"
	ProductKindMissing       = "missing"
	ProductKindDelivered     = "delivered"
	ProductKindQuoting       = "quoting"
	ProductKindPurchased     = "purchased"
	ProductKindOrdered       = "ordered"
	ProductKindAll           = "all"
)

// ProductKinds 所有合法的产品列表类别
var ProductKinds = []string{
	ProductKindMissingOrders,
	ProductKindMissing,
	ProductKindDelivered,
	ProductKindQuoting,
	ProductKindPurchased,
	ProductKindOrdered,
	ProductKindAll,
}

// ProjectService 项目服务
type ProjectService struct {
	projectRepo  *repository.ProjectRepository
	purchaseRepo *repository.PurchaseRepository
	catalogRepo  *repository.CatalogRepository
	cache        *ReportCache
	logger       *zap.Logger
}

func NewProjectService(pr *repository.ProjectRepository, pur *repository.PurchaseRepository, cr *repository.CatalogRepository, cache *ReportCache, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projectRepo:  pr,
		purchaseRepo: pur,
		catalogRepo:  cr,
		cache:        cache,
		logger:       logger,
	}
}

type CreateProjectRequest struct {
	Code string `json:"code" binding:"max=64"`
	Name string `json:"name" binding:"required,max=200"`
}

type UpdateProjectRequest struct {
	Code   *string `json:"code" binding:"omitempty,max=64"`
	Name   *string `json:"name" binding:"omitempty,min=1,max=200"`
	Status *string `json:"status" binding:"omitempty,oneof=opened done"`
}

// List 项目列表
func (s *ProjectService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Project, int64, error) {
	return s.projectRepo.FindAll(ctx, page, pageSize, filters)
}

// Get 项目详情（含全部关联）
func (s *ProjectService) Get(ctx context.Context, id string) (*entity.Project, error) {
	project, err := s.projectRepo.FindDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	return project, nil
}

// Create 创建项目；未指定编号时自动生成
func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest, userID string) (*entity.Project, error) {
	code := req.Code
	if code == "" {
		generated, err := s.projectRepo.GenerateCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("生成项目编码失败: %w", err)
		}
		code = generated
	}

	project := &entity.Project{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      req.Name,
		Status:    entity.ProjectStatusOpened,
		CreatedBy: userID,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", err)
	}

	s.logger.Info("Project created", zap.String("project_id", project.ID), zap.String("code", code), zap.String("user_id", userID))
	return project, nil
}

// Update 更新项目
func (s *ProjectService) Update(ctx context.Context, id string, req *UpdateProjectRequest) (*entity.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}

	if req.Code != nil {
		project.Code = *req.Code
	}
	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Status != nil {
		project.Status = *req.Status
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("更新项目失败: %w", err)
	}
	s.cache.Invalidate(ctx, id)
	return project, nil
}

// === BOM / 生产单关联 ===

func (s *ProjectService) ListBOMs(ctx context.Context, projectID string) ([]entity.BOM, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	return s.projectRepo.ListBOMs(ctx, projectID)
}

// LinkBOM 关联BOM（重复关联视为成功）
func (s *ProjectService) LinkBOM(ctx context.Context, projectID, bomID string) error {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return fmt.Errorf("项目不存在: %w", err)
	}
	if _, err := s.catalogRepo.FindBOMByID(ctx, bomID); err != nil {
		return fmt.Errorf("BOM不存在: %w", err)
	}
	if err := s.projectRepo.LinkBOM(ctx, projectID, bomID); err != nil {
		return fmt.Errorf("关联BOM失败: %w", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func (s *ProjectService) UnlinkBOM(ctx context.Context, projectID, bomID string) error {
	if err := s.projectRepo.UnlinkBOM(ctx, projectID, bomID); err != nil {
		return fmt.Errorf("项目未关联该BOM: %w", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func (s *ProjectService) ListProductions(ctx context.Context, projectID string) ([]entity.Production, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	return s.projectRepo.ListProductions(ctx, projectID)
}

// LinkProduction 关联生产单（重复关联视为成功）
func (s *ProjectService) LinkProduction(ctx context.Context, projectID, productionID string) error {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return fmt.Errorf("项目不存在: %w", err)
	}
	if _, err := s.catalogRepo.FindProductionByID(ctx, productionID); err != nil {
		return fmt.Errorf("生产单不存在: %w", err)
	}
	if err := s.projectRepo.LinkProduction(ctx, projectID, productionID); err != nil {
		return fmt.Errorf("关联生产单失败: %w", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func (s *ProjectService) UnlinkProduction(ctx context.Context, projectID, productionID string) error {
	if err := s.projectRepo.UnlinkProduction(ctx, projectID, productionID); err != nil {
		return fmt.Errorf("项目未关联该生产单: %w", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

// === 采购申请 / 采购订单归属 ===

func (s *ProjectService) ListPurchaseRequests(ctx context.Context, projectID string) ([]entity.PurchaseRequest, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	return s.purchaseRepo.ListRequestsByProject(ctx, projectID)
}

// AttachPurchaseRequest 将采购申请归属到项目；已属于其他项目时返回 ErrConflict
func (s *ProjectService) AttachPurchaseRequest(ctx context.Context, projectID, prID string) error {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return fmt.Errorf("项目不存在: %w", err)
	}
	pr, err := s.purchaseRepo.FindRequestByID(ctx, prID)
	if err != nil {
		return fmt.Errorf("采购申请不存在: %w", err)
	}
	if err := checkOwner(pr.ProjectID, projectID); err != nil {
		return fmt.Errorf("采购申请 %s 已属于其他项目: %w", pr.Code, err)
	}
	claimed, err := s.purchaseRepo.ClaimRequest(ctx, prID, projectID)
	if err != nil {
		return fmt.Errorf("关联采购申请失败: %w", err)
	}
	if !claimed {
		return fmt.Errorf("采购申请 %s 已属于其他项目: %w", pr.Code, ErrConflict)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func (s *ProjectService) DetachPurchaseRequest(ctx context.Context, projectID, prID string) error {
	pr, err := s.purchaseRepo.FindRequestByID(ctx, prID)
	if err != nil {
		return fmt.Errorf("采购申请不存在: %w", err)
	}
	if pr.ProjectID == nil || *pr.ProjectID != projectID {
		return fmt.Errorf("项目未关联该采购申请: %w", repository.ErrNotFound)
	}
	if err := s.purchaseRepo.SetRequestProject(ctx, prID, nil); err != nil {
		return fmt.Errorf("取消关联采购申请失败: %w", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func (s *ProjectService) ListPurchases(ctx context.Context, projectID string) ([]entity.Purchase, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("项目不存在: %w", err)
	}
	return s.purchaseRepo.ListPurchasesByProject(ctx, projectID)
}

// AttachPurchase 将采购订单归属到项目；已属于其他项目时返回 ErrConflict
func (s *ProjectService) AttachPurchase(ctx context.Context, projectID, purchaseID string) error {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return fmt.Errorf("项目不存在: %w", err)
	}
	purchase, err := s.purchaseRepo.FindPurchaseByID(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("采购订单不存在: %w", err)
	}
	if err := checkOwner(purchase.ProjectID, projectID); err != nil {
		return fmt.Errorf("采购订单 %s 已属于其他项目: %w", purchase.Number, err)
	}
	claimed, err := s.purchaseRepo.ClaimPurchase(ctx, purchaseID, projectID)
	if err != nil {
		return fmt.Errorf("关联采购订单失败: %w", err)
	}
	if !claimed {
		return fmt.Errorf("采购订单 %s 已属于其他项目: %w", purchase.Number, ErrConflict)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func (s *ProjectService) DetachPurchase(ctx context.Context, projectID, purchaseID string) error {
	purchase, err := s.purchaseRepo.FindPurchaseByID(ctx, purchaseID)
	if err != nil {
		return fmt.Errorf("采购订单不存在: %w", err)
	}
	if purchase.ProjectID == nil || *purchase.ProjectID != projectID {
		return fmt.Errorf("项目未关联该采购订单: %w", repository.ErrNotFound)
	}
	if err := s.purchaseRepo.SetPurchaseProject(ctx, purchaseID, nil); err != nil {
		return fmt.Errorf("取消关联采购订单失败: %w", err)
	}
	s.cache.Invalidate(ctx, projectID)
	return nil
}

func checkOwner(current *string, projectID string) error {
	if current != nil && *current != "" && *current != projectID {
		return ErrConflict
	}
	return nil
}

// === 派生查询 ===

// ProductList 按类别列出的产品
type ProductList struct {
	Kind         string                      `json:"kind"`
	Count        int                         `json:"count"`
	Products     []*entity.Product           `json:"products,omitempty"`
	Requirements []entity.ProductRequirement `json:"requirements,omitempty"`
}

// Products 按类别列出项目产品
func (s *ProjectService) Products(ctx context.Context, projectID, kind string) (*ProductList, error) {
	if !slices.Contains(ProductKinds, kind) {
		return nil, fmt.Errorf("未知的产品类别 %q: %w", kind, ErrInvalidInput)
	}
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return BuildProductList(project, kind), nil
}

// BuildProductList 从已加载的项目构造产品列表
func BuildProductList(project *entity.Project, kind string) *ProductList {
	list := &ProductList{Kind: kind}
	switch kind {
	case ProductKindAll:
		list.Requirements = slices.Collect(project.AllProducts())
		list.Count = len(list.Requirements)
		return list
	case ProductKindMissingOrders:
		list.Products = slices.Collect(project.MissingOrders())
	case ProductKindMissing:
		list.Products = slices.Collect(project.MissingProducts())
	case ProductKindDelivered:
		list.Products = slices.Collect(project.DeliveredProducts())
	case ProductKindQuoting:
		list.Products = slices.Collect(project.QuotingProducts())
	case ProductKindPurchased:
		list.Products = slices.Collect(project.PurchasedProducts())
	case ProductKindOrdered:
		list.Products = slices.Collect(project.OrderedProducts())
	}
	list.Count = len(list.Products)
	return list
}

// MissingOrderRequests 未到货的采购申请
func (s *ProjectService) MissingOrderRequests(ctx context.Context, projectID string) ([]*entity.PurchaseRequest, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return slices.Collect(project.MissingOrderRequests()), nil
}

// ProjectDates 项目关键日期
type ProjectDates struct {
	AssemblyDate *time.Time `json:"assembly_date"`
	DeliveryDate *time.Time `json:"delivery_date"`
}

func (s *ProjectService) Dates(ctx context.Context, projectID string) (*ProjectDates, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ProjectDates{
		AssemblyDate: project.AssemblyDate(),
		DeliveryDate: project.DeliveryDate(),
	}, nil
}

// ProjectCosts 项目采购成本
type ProjectCosts struct {
	LineCosts []decimal.Decimal `json:"line_costs"`
	Total     decimal.Decimal   `json:"total"`
}

func (s *ProjectService) Costs(ctx context.Context, projectID string) (*ProjectCosts, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	costs := project.PurchaseCosts()
	if costs == nil {
		costs = []decimal.Decimal{}
	}
	return &ProjectCosts{LineCosts: costs, Total: project.TotalProductCost()}, nil
}

// ProjectHours 项目工时
type ProjectHours struct {
	Day        string  `json:"day"`
	TodayHours float64 `json:"today_hours"`
	TotalHours float64 `json:"total_hours"`
}

func (s *ProjectService) Hours(ctx context.Context, projectID string, day time.Time) (*ProjectHours, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ProjectHours{
		Day:        day.Format("2006-01-02"),
		TodayHours: project.TodayHours(day),
		TotalHours: project.TotalHours(),
	}, nil
}

// ProductPurchaseInfo 某产品在项目中的采购信息
type ProductPurchaseInfo struct {
	ProductID    string           `json:"product_id"`
	InBOM        bool             `json:"in_bom"` // 项目关联的BOM中是否含有该产品
	Purchase     *entity.Purchase `json:"purchase"`
	Supplier     *entity.Party    `json:"supplier"`
	DeliveryDate *time.Time       `json:"delivery_date"`
}

// ProductPurchase 产品对应的采购订单、供应商与交期；quantity 为 nil 时不限数量
func (s *ProjectService) ProductPurchase(ctx context.Context, projectID, productID string, quantity *float64) (*ProductPurchaseInfo, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalogRepo.FindProductByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("产品不存在: %w", err)
	}
	purchase := project.ProductPurchase(productID, quantity)
	if purchase == nil {
		return nil, fmt.Errorf("项目中没有该产品的采购订单: %w", repository.ErrNotFound)
	}
	return &ProductPurchaseInfo{
		ProductID:    productID,
		InBOM:        project.HasProduct(productID),
		Purchase:     purchase,
		Supplier:     project.ProductSupplier(productID, quantity),
		DeliveryDate: project.ProductDeliveryDate(productID, quantity),
	}, nil
}
