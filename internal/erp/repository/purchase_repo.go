package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRepository 采购申请与采购订单仓库
type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *PurchaseRepository) WithTx(tx *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: tx}
}

// --- Purchase Request ---

// FindRequestByID 根据ID查找采购申请
func (r *PurchaseRepository) FindRequestByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	var pr entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Purchase").
		Where("id = ?", id).
		First(&pr).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &pr, nil
}

// ListRequestsByProject 项目下的采购申请
func (r *PurchaseRepository) ListRequestsByProject(ctx context.Context, projectID string) ([]entity.PurchaseRequest, error) {
	var items []entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Purchase").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// SetRequestProject 设置/清空采购申请所属项目
func (r *PurchaseRepository) SetRequestProject(ctx context.Context, id string, projectID *string) error {
	return r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Where("id = ?", id).
		Update("project_id", projectID).Error
}

// ClaimRequest 将无归属（或已属于该项目）的采购申请归属到项目；已被其他项目占用时返回 false
func (r *PurchaseRepository) ClaimRequest(ctx context.Context, id, projectID string) (bool, error) {
	return claimOwner(r.db.WithContext(ctx).Model(&entity.PurchaseRequest{}), id, projectID)
}

// BatchCreateRequests 批量创建采购申请
func (r *PurchaseRepository) BatchCreateRequests(ctx context.Context, prs []entity.PurchaseRequest) error {
	if len(prs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&prs).Error
}

// GenerateRequestCode 生成采购申请编码 PR-{year}-{4位}，offset 用于同批次连续编号
func (r *PurchaseRepository) GenerateRequestCode(ctx context.Context, offset int) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("PR-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Select("COALESCE(MAX(code), '')").
		Where("code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "PR-"+year+"-%04d", &seq)
	}
	seq += 1 + offset
	return fmt.Sprintf("PR-%s-%04d", year, seq), nil
}

// --- Purchase ---

// FindPurchaseByID 根据ID查找采购订单（含行）
func (r *PurchaseRepository) FindPurchaseByID(ctx context.Context, id string) (*entity.Purchase, error) {
	var purchase entity.Purchase
	err := r.db.WithContext(ctx).
		Preload("Party").
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Lines.Product").
		Where("id = ?", id).
		First(&purchase).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &purchase, nil
}

// ListPurchasesByProject 项目下的采购订单
func (r *PurchaseRepository) ListPurchasesByProject(ctx context.Context, projectID string) ([]entity.Purchase, error) {
	var items []entity.Purchase
	err := r.db.WithContext(ctx).
		Preload("Party").
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Lines.Product").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// SetPurchaseProject 设置/清空采购订单所属项目
func (r *PurchaseRepository) SetPurchaseProject(ctx context.Context, id string, projectID *string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Purchase{}).
		Where("id = ?", id).
		Update("project_id", projectID).Error
}

// ClaimPurchase 将无归属（或已属于该项目）的采购订单归属到项目；已被其他项目占用时返回 false
func (r *PurchaseRepository) ClaimPurchase(ctx context.Context, id, projectID string) (bool, error) {
	return claimOwner(r.db.WithContext(ctx).Model(&entity.Purchase{}), id, projectID)
}

func claimOwner(db *gorm.DB, id, projectID string) (bool, error) {
	result := db.
		Where("id = ? AND (project_id IS NULL OR project_id = '' OR project_id = ?)", id, projectID).
		Update("project_id", projectID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LastUnitPrices 每个产品最近一次非取消采购的单价
func (r *PurchaseRepository) LastUnitPrices(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return prices, nil
	}

	var rows []struct {
		ProductID string
		UnitPrice decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (l.product_id) l.product_id, l.unit_price
		FROM erp_purchase_lines l
		JOIN erp_purchases p ON p.id = l.purchase_id
		WHERE l.product_id IN ?
		AND p.state <> ?
		ORDER BY l.product_id, COALESCE(p.purchase_date, p.created_at) DESC, l.created_at DESC
	`, productIDs, entity.PurchaseStateCancelled).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		prices[row.ProductID] = row.UnitPrice
	}
	return prices, nil
}
