package entity

import "time"

// ProductionState 生产单状态
const (
	ProductionStateRequest   = "request"
	ProductionStateDraft     = "draft"
	ProductionStateWaiting   = "waiting"
	ProductionStateAssigned  = "assigned"
	ProductionStateRunning   = "running"
	ProductionStateDone      = "done"
	ProductionStateCancelled = "cancelled"
)

// OperationAssembly 装配工序名称
const OperationAssembly = "ASSEMBLY"

// Operation 工序
type Operation struct {
	ID   string `json:"id" gorm:"primaryKey;size:36"`
	Name string `json:"name" gorm:"size:100;not null"`
}

func (Operation) TableName() string {
	return "erp_operations"
}

// Production 生产单
type Production struct {
	ID          string           `json:"id" gorm:"primaryKey;size:36"`
	Code        string           `json:"code" gorm:"size:50;uniqueIndex"`
	ProductID   string           `json:"product_id" gorm:"size:36;index"`
	BOMID       *string          `json:"bom_id" gorm:"size:36"`
	BOM         *BOM             `json:"bom,omitempty" gorm:"foreignKey:BOMID"`
	Quantity    float64          `json:"quantity" gorm:"type:decimal(12,4);default:0"`
	PlannedDate *time.Time       `json:"planned_date"`
	State       string           `json:"state" gorm:"size:20;not null;default:draft"`
	Works       []ProductionWork `json:"works,omitempty" gorm:"foreignKey:ProductionID"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (Production) TableName() string {
	return "erp_productions"
}

// ProductionWork 生产工单下的工序作业
type ProductionWork struct {
	ID             string          `json:"id" gorm:"primaryKey;size:36"`
	ProductionID   string          `json:"production_id" gorm:"size:36;not null;index"`
	OperationID    string          `json:"operation_id" gorm:"size:36"`
	Operation      *Operation      `json:"operation,omitempty" gorm:"foreignKey:OperationID"`
	Sequence       int             `json:"sequence" gorm:"default:0"`
	TimesheetWorks []TimesheetWork `json:"timesheet_works,omitempty" gorm:"foreignKey:ProductionWorkID"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (ProductionWork) TableName() string {
	return "erp_production_works"
}
