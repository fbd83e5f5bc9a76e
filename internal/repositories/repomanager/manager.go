package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/paperclip/internal/dbx"
	"github.com/dmitrijs2005/paperclip/internal/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
}
