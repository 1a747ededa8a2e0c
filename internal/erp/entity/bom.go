package entity

import "time"

// BOM 物料清单
type BOM struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Code      string     `json:"code" gorm:"size:64"`
	Name      string     `json:"name" gorm:"size:200;not null"`
	Inputs    []BOMInput `json:"inputs,omitempty" gorm:"foreignKey:BOMID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (BOM) TableName() string {
	return "erp_boms"
}

// BOMInput BOM投入行
type BOMInput struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	BOMID     string    `json:"bom_id" gorm:"size:36;not null;index"`
	ProductID string    `json:"product_id" gorm:"size:36;not null;index"`
	Product   *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Unit      string    `json:"unit" gorm:"size:20;default:pcs"`
	Sequence  int       `json:"sequence" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BOMInput) TableName() string {
	return "erp_bom_inputs"
}
