package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseState 采购订单状态
const (
	PurchaseStateDraft      = "draft"
	PurchaseStateQuotation  = "quotation"
	PurchaseStateConfirmed  = "confirmed"
	PurchaseStateProcessing = "processing"
	PurchaseStateDone       = "done"
	PurchaseStateCancelled  = "cancelled"
)

// PurchaseRequestState 采购申请状态
const (
	PRStateDraft      = "draft"
	PRStateProcessing = "processing"
	PRStatePurchased  = "purchased"
	PRStateDone       = "done"
	PRStateCancelled  = "cancelled"
	PRStateException  = "exception"
)

// Purchase 采购订单
type Purchase struct {
	ID           string         `json:"id" gorm:"primaryKey;size:36"`
	Number       string         `json:"number" gorm:"size:50;index"`
	Reference    string         `json:"reference" gorm:"size:100"`
	PartyID      string         `json:"party_id" gorm:"size:36;index"`
	Party        *Party         `json:"party,omitempty" gorm:"foreignKey:PartyID"`
	State        string         `json:"state" gorm:"size:20;not null;default:draft"`
	PurchaseDate *time.Time     `json:"purchase_date"`
	DeliveryDate *time.Time     `json:"delivery_date"`
	Currency     string         `json:"currency" gorm:"size:10;default:EUR"`
	ProjectID    *string        `json:"project_id" gorm:"size:36;index"`
	Lines        []PurchaseLine `json:"lines,omitempty" gorm:"foreignKey:PurchaseID"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Purchase) TableName() string {
	return "erp_purchases"
}

// PurchaseLine 采购订单行；说明行没有产品
type PurchaseLine struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	PurchaseID  string          `json:"purchase_id" gorm:"size:36;not null;index"`
	ProductID   *string         `json:"product_id" gorm:"size:36;index"`
	Product     *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Description string          `json:"description" gorm:"size:500"`
	Quantity    float64         `json:"quantity" gorm:"type:decimal(12,4);default:0"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(16,4);default:0"`
	Sequence    int             `json:"sequence" gorm:"default:0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (PurchaseLine) TableName() string {
	return "erp_purchase_lines"
}

// Amount 行金额 = 数量 × 单价
func (l PurchaseLine) Amount() decimal.Decimal {
	return decimal.NewFromFloat(l.Quantity).Mul(l.UnitPrice)
}

// PurchaseRequest 采购申请，最多属于一个项目
type PurchaseRequest struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Code         string     `json:"code" gorm:"size:50;index"`
	ProductID    string     `json:"product_id" gorm:"size:36;not null;index"`
	Product      *Product   `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity     float64    `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit         string     `json:"unit" gorm:"size:20;default:pcs"`
	State        string     `json:"state" gorm:"size:20;not null;default:draft"`
	PartyID      *string    `json:"party_id" gorm:"size:36"`
	PurchaseID   *string    `json:"purchase_id" gorm:"size:36;index"`
	Purchase     *Purchase  `json:"purchase,omitempty" gorm:"foreignKey:PurchaseID"`
	ProjectID    *string    `json:"project_id" gorm:"size:36;index"`
	RequiredDate *time.Time `json:"required_date"`
	Origin       string     `json:"origin" gorm:"size:100"`
	CreatedBy    string     `json:"created_by" gorm:"size:64"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (PurchaseRequest) TableName() string {
	return "erp_purchase_requests"
}

// PurchaseDone 关联的采购订单已完成
func (pr *PurchaseRequest) PurchaseDone() bool {
	return pr.Purchase != nil && pr.Purchase.State == PurchaseStateDone
}
