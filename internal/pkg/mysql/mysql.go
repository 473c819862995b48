// internal/pkg/mysql/mysql.go
package mysql

import (
	"context"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 建立 MySQL 连接并配置连接池。
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// 唯一键冲突需要翻译成 gorm.ErrDuplicatedKey 供去重表判重
		TranslateError: true,
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

	return db, nil
}

type txKey struct{}

// RunInTx 在一个数据库事务中执行 fn，并把事务句柄写入 ctx，
// 供同一调用链上的仓储与 outbox 发布器加入同一事务。
// 如果 ctx 中已存在事务，则直接复用（加入外层事务）。
func RunInTx(ctx context.Context, db *gorm.DB, fn func(txCtx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// TxFromContext 取出 ctx 中携带的事务句柄。
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// Conn 返回当前应使用的数据库句柄：
// 事务内返回事务句柄，事务外返回带 ctx 的普通连接。
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db.WithContext(ctx)
}
