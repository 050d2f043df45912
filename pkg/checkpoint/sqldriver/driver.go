// Package sqldriver implements checkpoint.Store over any database/sql
// connection, building dialect-specific statements with ent's SQL builder.
// The sqlite and postgres packages only open the connection.
package sqldriver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/cspr/pkg/checkpoint"
)

// Table is the checkpoint table name.
const Table = "checkpoints"

const (
	columnKey       = "stream_key"
	columnEventID   = "event_id"
	columnUpdatedAt = "updated_at"
)

// Driver implements checkpoint.Store on an ent SQL driver.
type Driver struct {
	drv     *entsql.Driver
	dialect string
}

var _ checkpoint.Store = (*Driver)(nil)

// Open wraps db for the given ent dialect and creates the checkpoint table
// if it does not exist.
func Open(ctx context.Context, dialect string, db *sql.DB) (*Driver, error) {
	d := &Driver{
		drv:     entsql.OpenDB(dialect, db),
		dialect: dialect,
	}

	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return d, nil
}

// Dialect returns the ent dialect name.
func (d *Driver) Dialect() string {
	return d.dialect
}

// DB returns the underlying connection pool.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.dialect)
}

func (d *Driver) migrate(ctx context.Context) error {
	ddl := "CREATE TABLE IF NOT EXISTS " + Table + " (" +
		columnKey + " varchar(512) NOT NULL PRIMARY KEY, " +
		columnEventID + " bigint NOT NULL, " +
		columnUpdatedAt + " bigint NOT NULL)"

	return d.drv.Exec(ctx, ddl, []any{}, nil)
}

// Load returns the event id stored under key.
func (d *Driver) Load(ctx context.Context, key string) (uint64, error) {
	query, args := d.builder().
		Select(columnEventID).
		From(d.builder().Table(Table)).
		Where(entsql.EQ(columnKey, key)).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		return 0, checkpoint.NotFoundError{Key: key}
	}

	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to scan checkpoint: %w", err)
	}
	return uint64(id), nil
}

// Save upserts eventID under key. The update only applies when it moves
// the checkpoint forward.
func (d *Driver) Save(ctx context.Context, key string, eventID uint64) error {
	now := time.Now().UTC().UnixMilli()

	query, args := d.builder().
		Insert(Table).
		Columns(columnKey, columnEventID, columnUpdatedAt).
		Values(key, int64(eventID), now).
		OnConflict(
			entsql.ConflictColumns(columnKey),
			entsql.ResolveWithNewValues(),
			entsql.UpdateWhere(entsql.ExprP(Table+"."+columnEventID+" < excluded."+columnEventID)),
		).
		Query()

	var res sql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// List returns all checkpoints ordered by key.
func (d *Driver) List(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	query, args := d.builder().
		Select(columnKey, columnEventID, columnUpdatedAt).
		From(d.builder().Table(Table)).
		OrderBy(columnKey).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var result []checkpoint.Checkpoint
	for rows.Next() {
		var (
			key       string
			id        int64
			updatedAt int64
		)
		if err := rows.Scan(&key, &id, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		result = append(result, checkpoint.Checkpoint{
			Key:       key,
			EventID:   uint64(id),
			UpdatedAt: time.UnixMilli(updatedAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return result, nil
}

// Delete removes the checkpoint stored under key.
func (d *Driver) Delete(ctx context.Context, key string) error {
	query, args := d.builder().
		Delete(Table).
		Where(entsql.EQ(columnKey, key)).
		Query()

	var res sql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return checkpoint.NotFoundError{Key: key}
	}
	return nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error {
	if d.drv == nil {
		return nil
	}
	return d.drv.Close()
}
