package entity

import "time"

// ProjectStatus 项目状态
const (
	ProjectStatusOpened = "opened"
	ProjectStatusDone   = "done"
)

// Project 项目
type Project struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	Code   string `json:"code" gorm:"size:64;index"` // 项目的另一个编号
	Name   string `json:"name" gorm:"size:200;not null"`
	Status string `json:"status" gorm:"size:20;not null;default:opened"`

	BOMs             []BOM             `json:"boms,omitempty" gorm:"many2many:erp_project_boms;joinForeignKey:ProjectID;joinReferences:BOMID"`
	Productions      []Production      `json:"productions,omitempty" gorm:"many2many:erp_project_productions;joinForeignKey:ProjectID;joinReferences:ProductionID"`
	PurchaseRequests []PurchaseRequest `json:"purchase_requests,omitempty" gorm:"foreignKey:ProjectID"`
	Purchases        []Purchase        `json:"purchases,omitempty" gorm:"foreignKey:ProjectID"`
	TimesheetWorks   []TimesheetWork   `json:"timesheet_works,omitempty" gorm:"foreignKey:ProjectID"`

	CreatedBy string    `json:"created_by" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "erp_projects"
}

// ProjectBOM 项目与BOM的关联
type ProjectBOM struct {
	ProjectID string    `json:"project_id" gorm:"primaryKey;size:36"`
	BOMID     string    `json:"bom_id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectBOM) TableName() string {
	return "erp_project_boms"
}

// ProjectProduction 项目与生产单的关联，一个项目可以有多个（不重复的）生产单
type ProjectProduction struct {
	ProjectID    string    `json:"project_id" gorm:"primaryKey;size:36"`
	ProductionID string    `json:"production_id" gorm:"primaryKey;size:36"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ProjectProduction) TableName() string {
	return "erp_project_productions"
}
