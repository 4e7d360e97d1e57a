package repomanager

import (
	"context"
	"database/sql"

	"github.com/spec-kit/securevault/internal/dbx"
	"github.com/spec-kit/securevault/internal/server/repositories/secrets"
	"github.com/spec-kit/securevault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Secrets(db dbx.DBTX) secrets.Repository
}
