package sqlstore

import (
	"context"

	"github.com/uptrace/bun"
)

func createTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*queueModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	return createTable(ctx, db)
}

// InitDB initializes the database schema required by the SQL
// persistence backend. InitDB is idempotent and may be safely called
// multiple times.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}
