package extract

import (
	"strings"
	"time"
)

// Meta describes where and when a record was collected
type Meta struct {
	Region      string    `json:"region"`
	Category    string    `json:"category"`
	Page        int       `json:"page"`
	Ordinal     int       `json:"ordinal"`
	CollectedAt time.Time `json:"collected_at"`
}

// Record is an ordered field to value mapping produced by one detail visit.
// It is never modified after creation; WithMeta returns a copy.
type Record struct {
	schema  string
	fields  []string
	values  map[string]string
	missing map[string]bool
	key     []string
	meta    Meta
}

// NewRecord builds a record from values in field order. Fields listed in
// missing hold their sentinel.
func NewRecord(schema string, fields []string, values map[string]string, missing []string) Record {
	r := Record{
		schema:  schema,
		fields:  append([]string(nil), fields...),
		values:  make(map[string]string, len(fields)),
		missing: make(map[string]bool, len(missing)),
	}
	for _, f := range fields {
		r.values[f] = values[f]
	}
	for _, f := range missing {
		r.missing[f] = true
	}
	return r
}

// Schema returns the name of the schema that produced the record
func (r Record) Schema() string {
	return r.schema
}

// Get returns the value of field and whether the record has that field
func (r Record) Get(field string) (string, bool) {
	v, ok := r.values[field]
	return v, ok
}

// IsMissing reports whether field holds its sentinel
func (r Record) IsMissing(field string) bool {
	return r.missing[field]
}

// Missing lists the sentinel-filled fields in field order
func (r Record) Missing() []string {
	var out []string
	for _, f := range r.fields {
		if r.missing[f] {
			out = append(out, f)
		}
	}
	return out
}

func (r Record) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Values returns the values in field order
func (r Record) Values() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = r.values[f]
	}
	return out
}

// Map returns a copy of the field values
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Record) Meta() Meta {
	return r.meta
}

// WithMeta returns a copy of r carrying m
func (r Record) WithMeta(m Meta) Record {
	r.meta = m
	return r
}

// WithKey returns a copy of r identified by fields
func (r Record) WithKey(fields ...string) Record {
	r.key = append([]string(nil), fields...)
	return r
}

// Key joins the key field values with "|". A record without key fields is
// identified by all of its values.
func (r Record) Key() string {
	fields := r.key
	if len(fields) == 0 {
		fields = r.fields
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = r.values[f]
	}
	return strings.Join(parts, "|")
}
