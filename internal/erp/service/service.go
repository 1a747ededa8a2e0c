package service

import (
	"errors"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/Epitheton-ltd/project-bom/internal/erp/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrConflict 记录已被其他项目占用
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput 参数不合法
	ErrInvalidInput = errors.New("invalid input")
)

// Services 项目BOM服务集合
type Services struct {
	Project     *ProjectService
	Procurement *ProcurementService
	Report      *ReportService
}

// NewServices 创建服务集合；rdb 与 store 可以为 nil
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, store *ArchiveStore, cfg *config.Config, logger *zap.Logger) *Services {
	cache := NewReportCache(rdb, cfg.Report.CacheTTL, logger)
	procurement := NewProcurementService(repos.Project, repos.Purchase, db, cache, cfg.Procurement, logger)

	return &Services{
		Project:     NewProjectService(repos.Project, repos.Purchase, repos.Catalog, cache, logger),
		Procurement: procurement,
		Report:      NewReportService(repos.Project, procurement, cache, store, cfg.Report, logger),
	}
}
