package handler

import (
	"strings"

	"github.com/Epitheton-ltd/project-bom/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler 项目报表处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Get GET /projects/:id/report
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.svc.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "生成项目报表失败", err)
		return
	}
	Success(c, report)
}

// ExportExcel GET /projects/:id/report/export
func (h *ReportHandler) ExportExcel(c *gin.Context) {
	f, filename, err := h.svc.ExportExcel(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "导出项目报表失败", err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// ExportMissingCSV GET /projects/:id/missing-products/export?encoding=gbk
func (h *ReportHandler) ExportMissingCSV(c *gin.Context) {
	encoding := c.DefaultQuery("encoding", service.EncodingUTF8)
	data, filename, err := h.svc.ExportMissingCSV(c.Request.Context(), c.Param("id"), encoding)
	if err != nil {
		handleError(c, "导出缺料清单失败", err)
		return
	}

	charset := "utf-8"
	if strings.EqualFold(encoding, service.EncodingGBK) {
		charset = "gbk"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(200, "text/csv; charset="+charset, data)
}

// Archive POST /projects/:id/report/archive
func (h *ReportHandler) Archive(c *gin.Context) {
	result, err := h.svc.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, "归档项目报表失败", err)
		return
	}
	Created(c, result)
}
