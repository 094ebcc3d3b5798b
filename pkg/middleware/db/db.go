package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

type LogConf struct {
	Level string
}

type Config struct {
	Host    string
	Port    int
	User    string
	PW      string
	DBName  string
	LogConf LogConf
}

type Datastore struct {
	db *gorm.DB
}

var (
	store     *Datastore
	storeOnce sync.Once
)

func gormLevel(level string) gormLogger.LogLevel {
	switch level {
	case "debug":
		return gormLogger.Info
	case "info", "warn":
		return gormLogger.Warn
	case "error":
		return gormLogger.Error
	default:
		return gormLogger.Silent
	}
}

func InitPostgres(ctx context.Context, conf *Config) {
	storeOnce.Do(func() {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			conf.Host, conf.Port, conf.User, conf.PW, conf.DBName)
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLevel(conf.LogConf.Level)),
		})
		if err != nil {
			logger.Fatalf(ctx, "init postgres fail err: %+v", err)
			return
		}
		if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			logger.Fatalf(ctx, "init postgres trace plugin fail err: %+v", err)
			return
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			logger.Fatalf(ctx, "get postgres sql db fail err: %+v", err)
			return
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		store = &Datastore{db: gdb}
	})
}

func ClosePostgres(ctx context.Context) {
	if store == nil {
		return
	}
	sqlDB, err := store.db.DB()
	if err != nil {
		logger.Errorf(ctx, "close postgres get db err: %+v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Errorf(ctx, "close postgres err: %+v", err)
	}
}

func DB() *Datastore {
	return store
}

func (d *Datastore) DBWithContext(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

func (d *Datastore) DBIns() *gorm.DB {
	return d.db
}
