// Package database 负责创建 GORM 连接。生产环境使用 MySQL，本地开发与测试可用内嵌 SQLite。
package database

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"nexus-commerce/internal/pkg/logger"

	"github.com/glebarez/sqlite"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"` // 设置后忽略下面的分项配置
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	LogLevel        string        `yaml:"log_level"`
}

// MySQLDSN 用 go-sql-driver 的 Config 拼装 DSN，避免手写转义。
func MySQLDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dc := mysqlDriver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// Open 按配置打开数据库连接。
func Open(cfg Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err == nil {
			// SQLite 只允许单写者，内存库每个连接都是独立的数据库
			cfg.MaxOpenConns = 1
		}
	case DriverMySQL, "":
		db, err = gorm.Open(mysql.Open(MySQLDSN(cfg)), gormCfg)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.L().Info().Str("driver", driverName(cfg.Driver)).Msg("✅ Database connection established.")
	return db, nil
}

// Migrate 在开启 AutoMigrate 时建表。
func Migrate(db *gorm.DB, cfg Config, models ...interface{}) error {
	if !cfg.AutoMigrate {
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

func driverName(d string) string {
	if d == "" {
		return DriverMySQL
	}
	return d
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// OpenInMemory 返回一个迁移好的内存 SQLite 库，测试用。
func OpenInMemory(models ...interface{}) (*gorm.DB, error) {
	cfg := Config{Driver: DriverSQLite, DSN: ":memory:", AutoMigrate: true, LogLevel: "silent"}
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg, models...); err != nil {
		return nil, fmt.Errorf("migrate in-memory db: %w", err)
	}
	return db, nil
}
