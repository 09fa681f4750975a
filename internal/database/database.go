package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"jobportal/internal/config"
)

// NewGormLogger 让 SQL 日志走进程的 slog；只记录慢查询与错误。
func NewGormLogger(l *slog.Logger) logger.Interface {
	if l == nil {
		return logger.Default.LogMode(logger.Warn)
	}
	return &gormSlog{l: l.With(slog.String("component", "gorm")), level: logger.Warn, slow: 200 * time.Millisecond}
}

type gormSlog struct {
	l     *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func (g *gormSlog) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormSlog) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= logger.Info {
		g.l.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormSlog) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= logger.Warn {
		g.l.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormSlog) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= logger.Error {
		g.l.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormSlog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= logger.Error:
		sql, rows := fc()
		g.l.ErrorContext(ctx, "sql error", slog.Any("error", err), slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed))
	case elapsed > g.slow && g.level >= logger.Warn:
		sql, rows := fc()
		g.l.WarnContext(ctx, "slow sql", slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed))
	case g.level >= logger.Info:
		sql, rows := fc()
		g.l.DebugContext(ctx, "sql", slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed))
	}
}

// InitDatabase 连接 PostgreSQL。
// TranslateError 打开后唯一约束冲突会以 gorm.ErrDuplicatedKey 返回，注册与收藏依赖这一点。
func InitDatabase(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap db: %w", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate 创建或更新全部业务表。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping 检查连接池可用性，供就绪探针使用。
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unwrap db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
