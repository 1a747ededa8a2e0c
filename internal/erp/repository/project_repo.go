package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

// LockByID 在事务内锁定项目行，串行化同一项目的补货
func (r *ProjectRepository) LockByID(ctx context.Context, id string) error {
	var project entity.Project
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		First(&project).Error
	return notFound(err)
}

// FindAll 查询项目列表
func (r *ProjectRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Project, int64, error) {
	var items []entity.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Project{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找项目（不含关联）
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// FindDetail 根据ID查找项目，并加载报表所需的全部关联
func (r *ProjectRepository) FindDetail(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).
		Preload("BOMs", func(db *gorm.DB) *gorm.DB {
			return db.Order("erp_boms.code ASC")
		}).
		Preload("BOMs.Inputs", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("BOMs.Inputs.Product").
		// 生产单按关联顺序排列，第一个即最早关联者
		Preload("Productions", func(db *gorm.DB) *gorm.DB {
			return db.
				Joins("JOIN erp_project_productions pp ON pp.production_id = erp_productions.id AND pp.project_id = ?", id).
				Order("pp.created_at ASC, erp_productions.code ASC")
		}).
		Preload("Productions.BOM").
		Preload("Productions.BOM.Inputs", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Productions.BOM.Inputs.Product").
		Preload("Productions.Works", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Productions.Works.Operation").
		Preload("Productions.Works.TimesheetWorks", func(db *gorm.DB) *gorm.DB {
			return db.Order("timesheet_start_date ASC NULLS LAST")
		}).
		Preload("PurchaseRequests", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("PurchaseRequests.Product").
		Preload("PurchaseRequests.Purchase").
		Preload("Purchases", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Purchases.Party").
		Preload("Purchases.Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Purchases.Lines.Product").
		Preload("TimesheetWorks").
		Preload("TimesheetWorks.Lines").
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// FindOpenIDs 所有进行中的项目ID
func (r *ProjectRepository) FindOpenIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Where("status = ?", entity.ProjectStatusOpened).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// Update 更新项目基本字段
func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(project).Error
}

// ListBOMs 项目关联的BOM
func (r *ProjectRepository) ListBOMs(ctx context.Context, projectID string) ([]entity.BOM, error) {
	var boms []entity.BOM
	err := r.db.WithContext(ctx).
		Joins("JOIN erp_project_boms pb ON pb.bom_id = erp_boms.id").
		Where("pb.project_id = ?", projectID).
		Order("erp_boms.code ASC").
		Find(&boms).Error
	return boms, err
}

// LinkBOM 关联BOM，重复关联不报错
func (r *ProjectRepository) LinkBOM(ctx context.Context, projectID, bomID string) error {
	link := entity.ProjectBOM{ProjectID: projectID, BOMID: bomID, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

// UnlinkBOM 取消关联BOM
func (r *ProjectRepository) UnlinkBOM(ctx context.Context, projectID, bomID string) error {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND bom_id = ?", projectID, bomID).
		Delete(&entity.ProjectBOM{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProductions 项目关联的生产单，按关联顺序
func (r *ProjectRepository) ListProductions(ctx context.Context, projectID string) ([]entity.Production, error) {
	var productions []entity.Production
	err := r.db.WithContext(ctx).
		Joins("JOIN erp_project_productions pp ON pp.production_id = erp_productions.id").
		Where("pp.project_id = ?", projectID).
		Order("pp.created_at ASC, erp_productions.code ASC").
		Find(&productions).Error
	return productions, err
}

// LinkProduction 关联生产单，重复关联不报错
func (r *ProjectRepository) LinkProduction(ctx context.Context, projectID, productionID string) error {
	link := entity.ProjectProduction{ProjectID: projectID, ProductionID: productionID, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

// UnlinkProduction 取消关联生产单
func (r *ProjectRepository) UnlinkProduction(ctx context.Context, projectID, productionID string) error {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND production_id = ?", projectID, productionID).
		Delete(&entity.ProjectProduction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateCode 生成项目编码 PRJ-{year}-{4位}
func (r *ProjectRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("PRJ-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Select("COALESCE(MAX(code), '')").
		Where("code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "PRJ-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("PRJ-%s-%04d", year, seq), nil
}
