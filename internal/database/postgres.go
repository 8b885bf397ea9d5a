package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"farmfleet/internal/repository"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func NewPostgresConnection(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping the database: %w", err)
	}

	return db, nil
}

// OpenStore opens one pool per configured environment. Already opened pools
// are closed again if a later one fails.
func OpenStore(urls map[string]string, defaultEnv string, log *zap.Logger) (*repository.Store, error) {
	store := repository.NewStore(defaultEnv)

	for env, dsn := range urls {
		db, err := NewPostgresConnection(dsn)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("environment %s: %w", env, err)
		}
		store.Register(env, db)
		log.Info("Connected to the database", zap.String("environment", env))
	}

	return store, nil
}
