package services

import (
	"context"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/jackc/pgx/v5"
)

const upsertPlaceSQL = `INSERT INTO places
	(id, run_id, schema, key, region, category, field_order, fields, missing, page, ordinal, collected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	region = EXCLUDED.region,
	category = EXCLUDED.category,
	field_order = EXCLUDED.field_order,
	fields = EXCLUDED.fields,
	missing = EXCLUDED.missing,
	page = EXCLUDED.page,
	ordinal = EXCLUDED.ordinal,
	collected_at = EXCLUDED.collected_at,
	updated_at = now()`

const selectPlaceColumns = `id, run_id, schema, key, region, category, field_order, fields, missing, page, ordinal, collected_at`

// PlaceRepository is a PostgreSQL implementation of PlaceService
type PlaceRepository struct {
	db DBTX
}

// NewPlaceRepository creates a new PostgreSQL PlaceRepository
func NewPlaceRepository(db DBTX) PlaceService {
	return &PlaceRepository{
		db: db,
	}
}

func placeArgs(p models.Place) []interface{} {
	return []interface{}{
		p.ID, p.RunID, p.Schema, p.Key, p.Region, p.Category,
		p.FieldOrder, p.Fields, p.Missing, p.Page, p.Ordinal, p.CollectedAt,
	}
}

// Upsert inserts a place or refreshes the stored copy with the same id
func (r *PlaceRepository) Upsert(ctx context.Context, place models.Place) error {
	if _, err := r.db.Exec(ctx, upsertPlaceSQL, placeArgs(place)...); err != nil {
		return fmt.Errorf("upsert place %s: %w", place.ID, err)
	}
	return nil
}

// UpsertBatch upserts several places in one round trip
func (r *PlaceRepository) UpsertBatch(ctx context.Context, places []models.Place) error {
	if len(places) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(upsertPlaceSQL, placeArgs(p)...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range places {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert place %s: %w", places[i].ID, err)
		}
	}
	return nil
}

// ListByRun lists places collected by a run, newest first
func (r *PlaceRepository) ListByRun(ctx context.Context, runID string, limit, offset int) ([]models.Place, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectPlaceColumns+` FROM places WHERE run_id = $1 ORDER BY collected_at DESC LIMIT $2 OFFSET $3`,
		runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var places []models.Place
	for rows.Next() {
		var p models.Place
		if err := rows.Scan(
			&p.ID, &p.RunID, &p.Schema, &p.Key, &p.Region, &p.Category,
			&p.FieldOrder, &p.Fields, &p.Missing, &p.Page, &p.Ordinal, &p.CollectedAt,
		); err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

// CountByRun counts places collected by a run
func (r *PlaceRepository) CountByRun(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM places WHERE run_id = $1`, runID).Scan(&n)
	return n, err
}
