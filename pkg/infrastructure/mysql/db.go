package mysql

import (
	"context"
	"embed"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Open connects to MySQL. parseTime and multiStatements are forced on: repositories scan DATETIME
// columns into time.Time and migration files hold several statements.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid database DSN")
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true

	db, err := sqlx.ConnectContext(ctx, "mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// Migrate applies every pending embedded migration.
func Migrate(db *sqlx.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "failed to open embedded migrations")
	}
	defer source.Close()

	driver, err := migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	// m.Close is not called: it would close the shared *sql.DB as well.
	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrator")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}
