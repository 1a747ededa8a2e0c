package handler

import (
	"strconv"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	svc *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// LinkRequest 关联请求
type LinkRequest struct {
	ID string `json:"id" binding:"required"`
}

// ProductsQuery 产品列表查询参数
type ProductsQuery struct {
	Kind string `form:"kind" binding:"omitempty,product_kind"`
}

// List 项目列表
// GET /api/v1/erp/projects?status=xxx&search=xxx
func (h *ProjectHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status": c.Query("status"),
		"search": c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取项目列表失败: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// Get 项目详情
// GET /api/v1/erp/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取项目失败", err)
		return
	}
	Success(c, project)
}

// Create 创建项目
// POST /api/v1/erp/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	project, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		handleError(c, "创建项目失败", err)
		return
	}
	Created(c, project)
}

// Update 更新项目
// PUT /api/v1/erp/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	project, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleError(c, "更新项目失败", err)
		return
	}
	Success(c, project)
}

// ==================== BOM / 生产单关联 ====================

// ListBOMs GET /projects/:id/boms
func (h *ProjectHandler) ListBOMs(c *gin.Context) {
	boms, err := h.svc.ListBOMs(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取项目BOM失败", err)
		return
	}
	Success(c, boms)
}

// LinkBOM POST /projects/:id/boms
func (h *ProjectHandler) LinkBOM(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.LinkBOM(c.Request.Context(), c.Param("id"), req.ID); err != nil {
		handleError(c, "关联BOM失败", err)
		return
	}
	Success(c, gin.H{"linked": true})
}

// UnlinkBOM DELETE /projects/:id/boms/:bomId
func (h *ProjectHandler) UnlinkBOM(c *gin.Context) {
	if err := h.svc.UnlinkBOM(c.Request.Context(), c.Param("id"), c.Param("bomId")); err != nil {
		handleError(c, "取消关联BOM失败", err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// ListProductions GET /projects/:id/productions
func (h *ProjectHandler) ListProductions(c *gin.Context) {
	productions, err := h.svc.ListProductions(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取项目生产单失败", err)
		return
	}
	Success(c, productions)
}

// LinkProduction POST /projects/:id/productions
func (h *ProjectHandler) LinkProduction(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.LinkProduction(c.Request.Context(), c.Param("id"), req.ID); err != nil {
		handleError(c, "关联生产单失败", err)
		return
	}
	Success(c, gin.H{"linked": true})
}

// UnlinkProduction DELETE /projects/:id/productions/:productionId
func (h *ProjectHandler) UnlinkProduction(c *gin.Context) {
	if err := h.svc.UnlinkProduction(c.Request.Context(), c.Param("id"), c.Param("productionId")); err != nil {
		handleError(c, "取消关联生产单失败", err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// ==================== 采购申请 / 采购订单归属 ====================

// ListPurchaseRequests GET /projects/:id/purchase-requests
func (h *ProjectHandler) ListPurchaseRequests(c *gin.Context) {
	requests, err := h.svc.ListPurchaseRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取采购申请失败", err)
		return
	}
	Success(c, requests)
}

// AttachPurchaseRequest POST /projects/:id/purchase-requests
func (h *ProjectHandler) AttachPurchaseRequest(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.AttachPurchaseRequest(c.Request.Context(), c.Param("id"), req.ID); err != nil {
		handleError(c, "关联采购申请失败", err)
		return
	}
	Success(c, gin.H{"linked": true})
}

// DetachPurchaseRequest DELETE /projects/:id/purchase-requests/:requestId
func (h *ProjectHandler) DetachPurchaseRequest(c *gin.Context) {
	if err := h.svc.DetachPurchaseRequest(c.Request.Context(), c.Param("id"), c.Param("requestId")); err != nil {
		handleError(c, "取消关联采购申请失败", err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// ListPurchases GET /projects/:id/purchases
func (h *ProjectHandler) ListPurchases(c *gin.Context) {
	purchases, err := h.svc.ListPurchases(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取采购订单失败", err)
		return
	}
	Success(c, purchases)
}

// AttachPurchase POST /projects/:id/purchases
func (h *ProjectHandler) AttachPurchase(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.AttachPurchase(c.Request.Context(), c.Param("id"), req.ID); err != nil {
		handleError(c, "关联采购订单失败", err)
		return
	}
	Success(c, gin.H{"linked": true})
}

// DetachPurchase DELETE /projects/:id/purchases/:purchaseId
func (h *ProjectHandler) DetachPurchase(c *gin.Context) {
	if err := h.svc.DetachPurchase(c.Request.Context(), c.Param("id"), c.Param("purchaseId")); err != nil {
		handleError(c, "取消关联采购订单失败", err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// ==================== 派生查询 ====================

// Products GET /projects/:id/products?kind=missing
func (h *ProjectHandler) Products(c *gin.Context) {
	var q ProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if q.Kind == "" {
		q.Kind = service.ProductKindAll
	}

	list, err := h.svc.Products(c.Request.Context(), c.Param("id"), q.Kind)
	if err != nil {
		handleError(c, "获取项目产品失败", err)
		return
	}
	Success(c, list)
}

// MissingOrders GET /projects/:id/missing-orders
func (h *ProjectHandler) MissingOrders(c *gin.Context) {
	requests, err := h.svc.MissingOrderRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取未到货申请失败", err)
		return
	}
	Success(c, requests)
}

// Dates GET /projects/:id/dates
func (h *ProjectHandler) Dates(c *gin.Context) {
	dates, err := h.svc.Dates(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取项目日期失败", err)
		return
	}
	Success(c, dates)
}

// Costs GET /projects/:id/costs
func (h *ProjectHandler) Costs(c *gin.Context) {
	costs, err := h.svc.Costs(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "获取项目成本失败", err)
		return
	}
	Success(c, costs)
}

// Hours GET /projects/:id/hours?day=2026-03-01，day 缺省为今天
func (h *ProjectHandler) Hours(c *gin.Context) {
	day := time.Now()
	if d := c.Query("day"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, time.Local)
		if err != nil {
			BadRequest(c, "日期格式错误，应为 YYYY-MM-DD")
			return
		}
		day = parsed
	}

	hours, err := h.svc.Hours(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		handleError(c, "获取项目工时失败", err)
		return
	}
	Success(c, hours)
}

// ProductPurchase GET /projects/:id/products/:productId/purchase?quantity=10
func (h *ProjectHandler) ProductPurchase(c *gin.Context) {
	var quantity *float64
	if q := c.Query("quantity"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			BadRequest(c, "数量格式错误")
			return
		}
		quantity = &v
	}

	info, err := h.svc.ProductPurchase(c.Request.Context(), c.Param("id"), c.Param("productId"), quantity)
	if err != nil {
		handleError(c, "获取产品采购信息失败", err)
		return
	}
	Success(c, info)
}
