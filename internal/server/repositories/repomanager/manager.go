package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/debtorkeeper/internal/dbx"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/repositories/debtors"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code can run against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Debtors(db dbx.DBTX) debtors.Repository
}
