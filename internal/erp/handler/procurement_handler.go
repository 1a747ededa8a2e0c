package handler

import (
	"github.com/Epitheton-ltd/project-bom/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// ProcurementHandler 补货处理器
type ProcurementHandler struct {
	svc *service.ProcurementService
}

func NewProcurementHandler(svc *service.ProcurementService) *ProcurementHandler {
	return &ProcurementHandler{svc: svc}
}

// Reconcile 补货分析
// GET /api/v1/erp/projects/:id/procurement
func (h *ProcurementHandler) Reconcile(c *gin.Context) {
	result, err := h.svc.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "补货分析失败", err)
		return
	}
	Success(c, result)
}

// CreatePurchaseRequests 按缺口生成采购申请
// POST /api/v1/erp/projects/:id/procurement/purchase-requests
func (h *ProcurementHandler) CreatePurchaseRequests(c *gin.Context) {
	created, err := h.svc.CreatePurchaseRequests(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		handleError(c, "生成采购申请失败", err)
		return
	}
	Created(c, gin.H{"count": len(created), "items": created})
}
