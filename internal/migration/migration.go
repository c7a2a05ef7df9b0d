package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accessdomain "github.com/smallbiznis/gymgate/internal/access/domain"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	facedomain "github.com/smallbiznis/gymgate/internal/face/domain"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	hardwaresyncdomain "github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	transferdomain "github.com/smallbiznis/gymgate/internal/transfer/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted model, for databases migrated by GORM.
func Models() []interface{} {
	return []interface{}{
		&memberdomain.Member{},
		&membershipdomain.Membership{},
		&transferdomain.Transfer{},
		&facedomain.FaceEnrollment{},
		&accessdomain.AccessLog{},
		&gymconfigdomain.GymConfiguration{},
		&hardwaresyncdomain.HardwareSync{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema through GORM. SQLite and MySQL deployments
// use it instead of the SQL files.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
