package entity

import "time"

// TimesheetWork 工时作业
type TimesheetWork struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:36"`
	Name               string          `json:"name" gorm:"size:200"`
	ProjectID          *string         `json:"project_id" gorm:"size:36;index"`
	ProductionWorkID   *string         `json:"production_work_id" gorm:"size:36;index"`
	TimesheetStartDate *time.Time      `json:"timesheet_start_date"`
	TimesheetEndDate   *time.Time      `json:"timesheet_end_date"`
	Lines              []TimesheetLine `json:"lines,omitempty" gorm:"foreignKey:WorkID"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (TimesheetWork) TableName() string {
	return "erp_timesheet_works"
}

// TimesheetLine 工时记录
type TimesheetLine struct {
	ID       string        `json:"id" gorm:"primaryKey;size:36"`
	WorkID   string        `json:"work_id" gorm:"size:36;not null;index"`
	Employee string        `json:"employee" gorm:"size:100"`
	Date     time.Time     `json:"date" gorm:"type:date;not null"`
	Duration time.Duration `json:"duration" gorm:"not null"`
	Notes    string        `json:"notes" gorm:"type:text"`
}

func (TimesheetLine) TableName() string {
	return "erp_timesheet_lines"
}
