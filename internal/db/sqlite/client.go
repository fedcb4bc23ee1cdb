package sqlite

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/infra"
	"github.com/iamwavecut/phishguard/resources"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

var _ db.Client = (*sqliteClient)(nil)

// NewSQLiteClient opens name under dir and applies embedded migrations.
func NewSQLiteClient(ctx context.Context, dir, name string) (*sqliteClient, error) {
	workDir, err := infra.GetWorkDir(dir)
	if err != nil {
		return nil, errors.WithMessage(err, "work dir")
	}
	dbx, err := sqlx.ConnectContext(ctx, "sqlite", filepath.Join(workDir, name))
	if err != nil {
		return nil, errors.WithMessage(err, "cant open db")
	}
	dbx.SetMaxOpenConns(1)

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	if _, _, err = migrate.PlanMigration(dbx.DB, "sqlite3", migrationsSource, migrate.Up, 0); err != nil {
		_ = dbx.Close()
		return nil, errors.WithMessage(err, "migrate plan failed")
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, errors.WithMessage(err, "migrate up failed")
	}
	if n > 0 {
		log.WithField("object", "sqlite").Infof("applied %d migrations!", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}
