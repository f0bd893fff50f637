package database

import (
	"context"
	"fmt"

	"sipeta-bknd/internal/models"

	"github.com/uptrace/bun"
)

// EnsureSchema creates the operator tables when they are missing. Region
// and boundary tables are owned by the data pipeline and left alone.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS app`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	for _, model := range []interface{}{(*models.Operator)(nil), (*models.OperatorSession)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*models.OperatorSession)(nil)).
		Index("operator_sessions_jti_idx").
		Column("jti").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}
