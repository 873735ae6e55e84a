package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DSN builds the go-sql-driver/mysql data source name. A host of the form
// "/cloudsql/<CONNECTION_NAME>" connects through the Cloud SQL unix socket.
func (c DatabaseConfig) DSN() string {
	mc := gomysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%s", c.Host, c.Port)
	if strings.HasPrefix(c.Host, "/cloudsql/") {
		mc.Net = "unix"
		mc.Addr = c.Host
	}
	mc.DBName = c.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// ConnectDatabaseWithRetry opens the SQL mirror, retrying with backoff until
// it succeeds or ctx ends.
func ConnectDatabaseWithRetry(ctx context.Context, cfg DatabaseConfig) (*gorm.DB, error) {
	var attempt int
	for {
		attempt++
		db, err := gorm.Open(mysql.Open(cfg.DSN()), GormConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				if cfg.MaxOpenConns > 0 {
					sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
				}
				if cfg.MaxIdleConns >= 0 {
					sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
				}
				if cfg.ConnMaxLifetime > 0 {
					sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
				}
			}
			if err := InstallPlugins(db); err != nil {
				return nil, err
			}
			logg.WithField("attempt", attempt).Info("connected to database")
			return db, nil
		}

		sleep := backoff(attempt)
		logg.WithFields(logrus.Fields{"attempt": attempt, "retry_in": sleep.String()}).
			Warnf("failed to connect database: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// InstallPlugins registers tracing and the owner guard on db.
func InstallPlugins(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return fmt.Errorf("install otelgorm plugin: %w", err)
	}
	if err := db.Use(NewOwnerGuardPlugin()); err != nil {
		return fmt.Errorf("install owner guard plugin: %w", err)
	}
	return nil
}

func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: schema.NamingStrategy{},
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}
