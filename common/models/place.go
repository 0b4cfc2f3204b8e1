package models

import (
	"encoding/json"
	"time"

	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Place is a collected record as stored and published
type Place struct {
	ID          string            `json:"id"`
	RunID       pgtype.Text       `json:"run_id"`
	Schema      string            `json:"schema"`
	Key         string            `json:"key"`
	Region      string            `json:"region"`
	Category    string            `json:"category"`
	FieldOrder  []string          `json:"field_order"`
	Fields      map[string]string `json:"fields"`
	Missing     []string          `json:"missing"`
	Page        int               `json:"page"`
	Ordinal     int               `json:"ordinal"`
	CollectedAt time.Time         `json:"collected_at"`
}

// PlaceID derives a stable id from the schema and record key, so the same
// place collected twice maps to one row
func PlaceID(schema, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(schema+"\x00"+key)).String()
}

// PlaceFromRecord converts rec; runID may be empty
func PlaceFromRecord(rec extract.Record, runID string) Place {
	meta := rec.Meta()
	missing := rec.Missing()
	if missing == nil {
		missing = []string{}
	}
	return Place{
		ID:          PlaceID(rec.Schema(), rec.Key()),
		RunID:       pgtype.Text{String: runID, Valid: runID != ""},
		Schema:      rec.Schema(),
		Key:         rec.Key(),
		Region:      meta.Region,
		Category:    meta.Category,
		FieldOrder:  rec.Fields(),
		Fields:      rec.Map(),
		Missing:     missing,
		Page:        meta.Page,
		Ordinal:     meta.Ordinal,
		CollectedAt: meta.CollectedAt,
	}
}

func (p *Place) ToJson() ([]byte, error) {
	return json.Marshal(p)
}

func PlaceFromJson(j []byte) (*Place, error) {
	var p Place
	if err := json.Unmarshal(j, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
