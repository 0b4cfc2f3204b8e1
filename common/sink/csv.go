package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/extract"
)

// TimestampLayout formats the run timestamp embedded in output file names
const TimestampLayout = "20060102_150405"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Timestamp formats t for output file names
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// CSVFileName is <region with underscores>_<category>_<timestamp>.csv
func CSVFileName(search crawler.Search, timestamp string) string {
	region := strings.ReplaceAll(search.Region, " ", "_")
	category := strings.ReplaceAll(search.Category, "/", "_")
	return fmt.Sprintf("%s_%s_%s.csv", region, category, timestamp)
}

// CSVSink writes one search's records to a CSV file. The file starts with a
// UTF-8 byte order mark and a header row in schema field order, and is
// flushed after every record.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	fields []string
	file   *os.File
	writer *csv.Writer
	rows   int
}

// NewCSVSink creates the file for search under dir
func NewCSVSink(dir string, search crawler.Search, fields []string, timestamp string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	path := filepath.Join(dir, CSVFileName(search, timestamp))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}
	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, err
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(fields); err != nil {
		file.Close()
		return nil, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return nil, err
	}

	return &CSVSink{
		path:   path,
		fields: append([]string(nil), fields...),
		file:   file,
		writer: writer,
	}, nil
}

func (s *CSVSink) Path() string {
	return s.path
}

// Rows is the number of records written
func (s *CSVSink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Write appends rec in header order; fields the record lacks are left empty
func (s *CSVSink) Write(_ context.Context, rec extract.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("csv %s is closed", s.path)
	}

	row := make([]string, len(s.fields))
	for i, f := range s.fields {
		row[i], _ = rec.Get(f)
	}
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return err
	}
	s.rows++
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	werr := s.writer.Error()
	cerr := s.file.Close()
	s.file = nil
	if werr != nil {
		return werr
	}
	return cerr
}
