package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/Epitheton-ltd/project-bom/internal/erp/entity"
	"github.com/Epitheton-ltd/project-bom/internal/erp/seed"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 用法: seed [file]，缺省读取 SEED_FILE 或 configs/seed.yaml
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	path := config.GetEnvOrDefault("SEED_FILE", "configs/seed.yaml")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ds, err := seed.LoadFile(path)
	if err != nil {
		zapLogger.Fatal("Failed to load seed file", zap.String("path", path), zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to auto-migrate tables", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := ds.Apply(ctx, db); err != nil {
		zapLogger.Fatal("Failed to seed database", zap.Error(err))
	}

	zapLogger.Info("Seed completed",
		zap.String("path", path),
		zap.Int("projects", len(ds.Projects)),
		zap.Int("boms", len(ds.BOMs)),
		zap.Int("productions", len(ds.Productions)),
		zap.Int("purchases", len(ds.Purchases)),
		zap.Int("purchase_requests", len(ds.PurchaseRequests)),
	)
}
