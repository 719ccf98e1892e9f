// internal/service/inventory/infrastructure/mysql.go
package infrastructure

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stockpile/internal/pkg/logger"
)

// NewMysqlDB 初始化 GORM 连接并迁移库存相关的表结构
func NewMysqlDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&InventoryItemModel{}, &OrderReservationModel{}); err != nil {
		return nil, err
	}

	logger.Logger.Info().Msg("✅ MySQL connected, inventory schema migrated")
	return db, nil
}
