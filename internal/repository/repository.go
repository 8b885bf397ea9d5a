package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

const Dialect = "postgres"

type Repository struct {
	DB            *sql.DB
	GoquDBWrapper *goqu.Database
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		DB:            db,
		GoquDBWrapper: goqu.New(Dialect, db),
	}
}

// Querier is satisfied by both *goqu.Database and *goqu.TxDatabase so the
// same repository code runs inside or outside a transaction.
type Querier interface {
	From(from ...interface{}) *goqu.SelectDataset
	Select(cols ...interface{}) *goqu.SelectDataset
	Insert(table interface{}) *goqu.InsertDataset
	Update(table interface{}) *goqu.UpdateDataset
	Delete(table interface{}) *goqu.DeleteDataset
	ScanValContext(ctx context.Context, i interface{}, query string, args ...interface{}) (bool, error)
}

var (
	_ Querier = (*goqu.Database)(nil)
	_ Querier = (*goqu.TxDatabase)(nil)
)

func WithTransaction(ctx context.Context, db *goqu.Database, fn func(tx *goqu.TxDatabase) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return
}
