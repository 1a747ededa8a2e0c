package handler

import (
	"errors"
	"slices"
	"strconv"

	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/Epitheton-ltd/project-bom/internal/erp/service"
	"github.com/Epitheton-ltd/project-bom/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// 权限标识
const (
	PermProjectWrite     = "project:write"
	PermProcurementWrite = "procurement:write"
	PermReportArchive    = "report:archive"
)

// Handlers 项目BOM处理器集合
type Handlers struct {
	Project     *ProjectHandler
	Procurement *ProcurementHandler
	Report      *ReportHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Project:     NewProjectHandler(services.Project),
		Procurement: NewProcurementHandler(services.Procurement),
		Report:      NewReportHandler(services.Report),
	}
}

// RegisterRoutes 注册全部路由，写操作需要对应权限
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	write := middleware.RequirePermission(PermProjectWrite)

	projects := api.Group("/projects")
	{
		projects.GET("", h.Project.List)
		projects.POST("", write, h.Project.Create)
		projects.GET("/:id", h.Project.Get)
		projects.PUT("/:id", write, h.Project.Update)

		projects.GET("/:id/boms", h.Project.ListBOMs)
		projects.POST("/:id/boms", write, h.Project.LinkBOM)
		projects.DELETE("/:id/boms/:bomId", write, h.Project.UnlinkBOM)

		projects.GET("/:id/productions", h.Project.ListProductions)
		projects.POST("/:id/productions", write, h.Project.LinkProduction)
		projects.DELETE("/:id/productions/:productionId", write, h.Project.UnlinkProduction)

		projects.GET("/:id/purchase-requests", h.Project.ListPurchaseRequests)
		projects.POST("/:id/purchase-requests", write, h.Project.AttachPurchaseRequest)
		projects.DELETE("/:id/purchase-requests/:requestId", write, h.Project.DetachPurchaseRequest)

		projects.GET("/:id/purchases", h.Project.ListPurchases)
		projects.POST("/:id/purchases", write, h.Project.AttachPurchase)
		projects.DELETE("/:id/purchases/:purchaseId", write, h.Project.DetachPurchase)

		projects.GET("/:id/products", h.Project.Products)
		projects.GET("/:id/products/:productId/purchase", h.Project.ProductPurchase)
		projects.GET("/:id/missing-orders", h.Project.MissingOrders)
		projects.GET("/:id/dates", h.Project.Dates)
		projects.GET("/:id/costs", h.Project.Costs)
		projects.GET("/:id/hours", h.Project.Hours)

		projects.GET("/:id/procurement", h.Procurement.Reconcile)
		projects.POST("/:id/procurement/purchase-requests",
			middleware.RequirePermission(PermProcurementWrite), h.Procurement.CreatePurchaseRequests)

		projects.GET("/:id/report", h.Report.Get)
		projects.GET("/:id/report/export", h.Report.ExportExcel)
		projects.POST("/:id/report/archive", middleware.RequirePermission(PermReportArchive), h.Report.Archive)
		projects.GET("/:id/missing-products/export", h.Report.ExportMissingCSV)
	}
}

// RegisterValidators 注册自定义校验规则，需在路由初始化前调用
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return v.RegisterValidation("product_kind", func(fl validator.FieldLevel) bool {
		return slices.Contains(service.ProductKinds, fl.Field().String())
	})
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, 50300, message)
}

// handleError 按错误类型选择响应码
func handleError(c *gin.Context, prefix string, err error) {
	msg := prefix + ": " + err.Error()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, msg)
	case errors.Is(err, service.ErrConflict):
		Conflict(c, msg)
	case errors.Is(err, service.ErrInvalidInput):
		BadRequest(c, msg)
	case errors.Is(err, service.ErrUnavailable):
		ServiceUnavailable(c, msg)
	default:
		InternalError(c, msg)
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(middleware.KeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
