package db

import (
	"fmt"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Connect 连接 Postgres，容器尚未就绪时按递增间隔重试。
func Connect(dsn string) (*gorm.DB, error) {
	var err error
	for i := 0; i < connectAttempts; i++ {
		var gdb *gorm.DB
		gdb, err = Open(postgres.Open(dsn))
		if err == nil {
			return gdb, nil
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", connectAttempts, err)
}

// Open 用给定方言打开连接并设置连接池参数。
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	// TranslateError 让唯一索引冲突统一表现为 gorm.ErrDuplicatedKey。
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return gdb, nil
}

// Migrate 自动迁移招聘平台涉及的全部表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Company{},
		&models.Job{},
		&models.Application{},
		&models.Interview{},
		&models.Chat{},
		&models.ChatMessage{},
		&models.RefreshToken{},
	)
}
