package migration

import (
	"context"

	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger, seeder *seed.Seeder) error {
		if cfg.MigrationEnabled {
			if cfg.DBType == "postgres" {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				if err := RunMigrations(sqlDB); err != nil {
					return err
				}
			} else if err := AutoMigrate(conn); err != nil {
				return err
			}
			log.Info("database schema up to date", zap.String("type", cfg.DBType))
		}

		if cfg.SeedSampleData {
			return seeder.SampleGyms(context.Background())
		}
		return nil
	}),
)
