package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	custom_error "farmfleet/pkg/errors"
)

// DatabaseContext selects the database environment an operation runs
// against. Handlers build it per request and pass it down explicitly.
type DatabaseContext struct {
	Environment string
}

// Store owns one connection pool per database environment for the lifetime
// of the process.
type Store struct {
	mu         sync.RWMutex
	defaultEnv string
	repos      map[string]*Repository
}

func NewStore(defaultEnv string) *Store {
	return &Store{
		defaultEnv: normalizeEnvironment(defaultEnv),
		repos:      make(map[string]*Repository),
	}
}

func (s *Store) Register(env string, db *sql.DB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repos[normalizeEnvironment(env)] = NewRepository(db)
}

// Context builds a DatabaseContext, falling back to the default environment.
func (s *Store) Context(env string) DatabaseContext {
	env = normalizeEnvironment(env)
	if env == "" {
		env = s.defaultEnv
	}
	return DatabaseContext{Environment: env}
}

func (s *Store) Resolve(dbc DatabaseContext) (*Repository, error) {
	env := normalizeEnvironment(dbc.Environment)
	if env == "" {
		env = s.defaultEnv
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, ok := s.repos[env]
	if !ok {
		return nil, custom_error.New(
			custom_error.KindValidation,
			custom_error.CodeUnknownEnvironment,
			fmt.Sprintf("unknown database environment %q", env),
		)
	}
	return repo, nil
}

func (s *Store) Environments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	envs := make([]string, 0, len(s.repos))
	for env := range s.repos {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for env, repo := range s.repos {
		if err := repo.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database %s unreachable: %w", env, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for env, repo := range s.repos {
		if err := repo.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", env, err))
		}
	}
	s.repos = make(map[string]*Repository)
	return errors.Join(errs...)
}

func normalizeEnvironment(env string) string {
	return strings.ToLower(strings.TrimSpace(env))
}
