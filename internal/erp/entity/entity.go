package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移项目扩展表及其读取的宿主表
func AutoMigrate(db *gorm.DB) error {
	// 关联表使用自定义模型（带创建时间）
	if err := db.SetupJoinTable(&Project{}, "BOMs", &ProjectBOM{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&Project{}, "Productions", &ProjectProduction{}); err != nil {
		return err
	}

	return db.AutoMigrate(
		// 基础数据
		&Product{},
		&Party{},

		// 生产
		&BOM{},
		&BOMInput{},
		&Operation{},
		&Production{},
		&ProductionWork{},

		// 采购
		&Purchase{},
		&PurchaseLine{},
		&PurchaseRequest{},

		// 工时
		&TimesheetWork{},
		&TimesheetLine{},

		// 项目
		&Project{},
		&ProjectBOM{},
		&ProjectProduction{},
	)
}
