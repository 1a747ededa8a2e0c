package repository

import (
	"context"

	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"gorm.io/gorm"
)

// CatalogRepository 宿主基础数据（产品、BOM、生产单）只读仓库
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindBOMByID(ctx context.Context, id string) (*entity.BOM, error) {
	var bom entity.BOM
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bom).Error; err != nil {
		return nil, notFound(err)
	}
	return &bom, nil
}

func (r *CatalogRepository) FindProductionByID(ctx context.Context, id string) (*entity.Production, error) {
	var production entity.Production
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&production).Error; err != nil {
		return nil, notFound(err)
	}
	return &production, nil
}

func (r *CatalogRepository) FindProductByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}
