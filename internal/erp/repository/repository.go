package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 项目BOM仓库集合
type Repositories struct {
	Project  *ProjectRepository
	Purchase *PurchaseRepository
	Catalog  *CatalogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Project:  NewProjectRepository(db),
		Purchase: NewPurchaseRepository(db),
		Catalog:  NewCatalogRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
