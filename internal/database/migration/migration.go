package migration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres DB and SQL
	_ "github.com/golang-migrate/migrate/v4/source/file"       // register postgres File
)

// Migrate applies every pending up migration. A database left dirty by an
// earlier failed run is refused; it needs a manual force.
func Migrate(dbURL string, migrationsPath string, verbose bool, log *zap.Logger) error {
	log.Info("Running database migration", zap.String("source", migrationsPath))

	dbMigrate, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer dbMigrate.Close()

	dbMigrate.Log = NewLogger(log, verbose)

	if version, dirty, err := dbMigrate.Version(); err == nil && dirty {
		return fmt.Errorf("database is dirty at version %d, fix it and force the version before migrating", version)
	}

	err = dbMigrate.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("Database migration: no change needed")
	case err != nil:
		log.Error("Database migration failed", zap.Error(err))
		return err
	}

	if version, _, err := dbMigrate.Version(); err == nil {
		log.Info("Database schema version", zap.Uint("version", version))
	}
	return nil
}

// Logger adapts zap to the golang-migrate logger interface.
type Logger struct {
	logger  *zap.Logger
	verbose bool
}

func (l *Logger) Printf(format string, v ...any) {
	l.logger.Sugar().Infof("DB Migration: "+strings.TrimRight(format, "\n"), v...)
}

func (l *Logger) Verbose() bool {
	return l.verbose
}

func NewLogger(logger *zap.Logger, verbose bool) *Logger {
	return &Logger{
		logger:  logger,
		verbose: verbose,
	}
}
