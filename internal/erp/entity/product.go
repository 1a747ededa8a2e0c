package entity

import "time"

// Product 产品/物料
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:64;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Unit      string    `json:"unit" gorm:"size:20;default:pcs"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "erp_products"
}

// Party 往来单位（供应商）
type Party struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:64;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Party) TableName() string {
	return "erp_parties"
}
