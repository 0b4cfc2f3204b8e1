// Package report maintains the per-run summary of collected places.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/storage"
	"github.com/rs/zerolog"
)

var header = []string{"지역", "카테고리", "수집된 장소 수"}

// FileName is the summary file name for a run timestamp
func FileName(timestamp string) string {
	return fmt.Sprintf("수집_결과_요약_%s.csv", timestamp)
}

// Row is one finished search
type Row struct {
	Region    string
	Category  string
	Collected int
	State     crawler.State
}

// Report accumulates one row per search and rewrites the summary file after
// every addition
type Report struct {
	mu       sync.Mutex
	path     string
	rows     []Row
	uploader storage.StorageService
}

// New prepares a report under dir; uploader may be nil
func New(dir, timestamp string, uploader storage.StorageService) (*Report, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Report{
		path:     filepath.Join(dir, FileName(timestamp)),
		uploader: uploader,
	}, nil
}

func (r *Report) Path() string {
	return r.path
}

func (r *Report) Rows() []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Row(nil), r.rows...)
}

// Total sums the collected places
func (r *Report) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, row := range r.rows {
		total += row.Collected
	}
	return total
}

// Add records summary and rewrites the file
func (r *Report) Add(summary crawler.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = append(r.rows, Row{
		Region:    summary.Search.Region,
		Category:  summary.Search.Category,
		Collected: summary.Counters.Collected,
		State:     summary.State,
	})
	return r.write()
}

func (r *Report) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range r.rows {
		if err := w.Write([]string{row.Region, row.Category, strconv.Itoa(row.Collected)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (r *Report) write() error {
	data, err := r.encode()
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// Upload sends the summary and the given files to storage. Failures are
// logged and skipped; the names of the uploaded objects are returned.
func (r *Report) Upload(ctx context.Context, files ...string) []string {
	if r.uploader == nil {
		return nil
	}
	logger := zerolog.Ctx(ctx)

	var uploaded []string
	for _, file := range append([]string{r.path}, files...) {
		name, err := storage.UploadFile(ctx, r.uploader, file, "", "text/csv; charset=utf-8")
		if err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Failed to upload result file")
			continue
		}
		uploaded = append(uploaded, name)
	}
	logger.Info().Int("files", len(uploaded)).Msg("Uploaded result files")
	return uploaded
}
